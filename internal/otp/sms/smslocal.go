// Package sms delivers OTP codes by SMS.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// DefaultBaseURL is the SMS Local bulk API endpoint.
const DefaultBaseURL = "https://www.smslocal.com/dev/bulkV2"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("sms: API key not configured")

// Sender delivers an OTP code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// SMSLocalClient sends OTP SMS through the SMS Local API (route=otp).
type SMSLocalClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewSMSLocalClient returns a client that uses the given API key and optional base URL/sender.
func NewSMSLocalClient(apiKey, baseURL, sender string) *SMSLocalClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SMSLocalClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendOTP sends code to phone. Does not log the code.
func (c *SMSLocalClient) SendOTP(ctx context.Context, phone, code string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	body := map[string]string{
		"route":     "otp",
		"numbers":   phone,
		"variables": code,
	}
	if c.Sender != "" {
		body["sender_id"] = c.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// NopSender drops every message. Used when no SMS provider is configured.
type NopSender struct{}

// SendOTP implements Sender.
func (NopSender) SendOTP(context.Context, string, string) error { return nil }
