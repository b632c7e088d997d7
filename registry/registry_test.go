package registry

import (
	"testing"
)

func TestNewClientFromEnvUnset(t *testing.T) {
	t.Setenv(EndpointsEnv, "")

	client, err := NewClientFromEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Error("expected nil client when endpoints are not configured")
	}
}

func TestNewClientRequiresEndpoints(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("expected error for empty endpoints")
	}
}

func TestBuildKey(t *testing.T) {
	c := &Client{namespace: "surface"}
	got := c.buildKey("httpx", "abc-123")
	want := "/surface/scanners/httpx/abc-123"
	if got != want {
		t.Errorf("buildKey = %s, want %s", got, want)
	}
}

func TestClientTLSRequiresFiles(t *testing.T) {
	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing cert", TLSConfig{Enabled: true, KeyFile: "k", CAFile: "ca"}},
		{"missing key", TLSConfig{Enabled: true, CertFile: "c", CAFile: "ca"}},
		{"missing ca", TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := clientTLS(&tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
