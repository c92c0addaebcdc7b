package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "identity-service", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) left a provider nil", endpoint)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("second Shutdown: %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(context.Background(), endpoint, "identity-service", false); err == nil {
			t.Errorf("NewProviders(%q) should return error", endpoint)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		endpoint     string
		wantTarget   string
		wantInsecure bool
	}{
		{"localhost:4317", "localhost:4317", true},
		{"http://localhost:4317", "localhost:4317", true},
		{"https://collector:4317", "collector:4317", false},
		{"http://localhost:4317/v1/traces", "localhost:4317", true},
		{"http://localhost:4317?param=value", "localhost:4317", true},
	}
	for _, tc := range testCases {
		target, insecure, err := parseEndpoint(tc.endpoint)
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tc.endpoint, err)
		}
		if target != tc.wantTarget {
			t.Errorf("parseEndpoint(%q) target = %q, want %q", tc.endpoint, target, tc.wantTarget)
		}
		if insecure != tc.wantInsecure {
			t.Errorf("parseEndpoint(%q) insecure = %v, want %v", tc.endpoint, insecure, tc.wantInsecure)
		}
	}
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	ctx := context.Background()
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(ctx) }()

	oldTracer := otel.GetTracerProvider()
	oldMeter := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracer)
		otel.SetMeterProvider(oldMeter)
	}()

	providers := &Providers{TracerProvider: tp, Shutdown: func(context.Context) error { return nil }}
	providers.SetGlobal()

	if otel.GetTracerProvider() != tp {
		t.Error("TracerProvider should be installed globally")
	}
	if otel.GetMeterProvider() != oldMeter {
		t.Error("MeterProvider should not change when nil")
	}
}
