package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewSMSLocalClient_Defaults(t *testing.T) {
	client := NewSMSLocalClient("api-key", "", "")
	if client.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", client.BaseURL)
	}
	if client.HTTPClient == nil || client.HTTPClient.Timeout != defaultTimeout {
		t.Fatalf("HTTPClient timeout should be %v", defaultTimeout)
	}
	if c := NewSMSLocalClient("k", "https://custom.sms.local/api", "TEST"); c.BaseURL != "https://custom.sms.local/api" || c.Sender != "TEST" {
		t.Errorf("custom client = %+v", c)
	}
}

func TestSendOTP_Success(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want %q", r.Method, http.MethodPost)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q, want test-api-key", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := NewSMSLocalClient("test-api-key", server.URL, "IDSVC")
	if err := client.SendOTP(context.Background(), "15551234567", "4821"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if body["route"] != "otp" || body["numbers"] != "15551234567" || body["variables"] != "4821" {
		t.Errorf("body = %v", body)
	}
	if body["sender_id"] != "IDSVC" {
		t.Errorf("sender_id = %q, want IDSVC", body["sender_id"])
	}
}

func TestSendOTP_MissingAPIKey(t *testing.T) {
	err := NewSMSLocalClient("", "", "").SendOTP(context.Background(), "1", "4821")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestSendOTP_Non200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer server.Close()

	err := NewSMSLocalClient("api-key", server.URL, "").SendOTP(context.Background(), "1", "4821")
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "status=400") || !strings.Contains(err.Error(), "invalid request") {
		t.Errorf("error message = %q, want status and body", err.Error())
	}
}

func TestSendOTP_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	client := NewSMSLocalClient("api-key", server.URL, "")
	client.HTTPClient = &http.Client{Timeout: time.Millisecond}
	if err := client.SendOTP(context.Background(), "1", "4821"); err == nil {
		t.Fatal("expected error for HTTP failure")
	}
}

func TestNopSender(t *testing.T) {
	var s Sender = NopSender{}
	if err := s.SendOTP(context.Background(), "1", "4821"); err != nil {
		t.Errorf("NopSender: %v", err)
	}
}
