package utils

import (
	"strings"
	"testing"
)

func TestURLValidation(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		shouldError bool
		errorMsg    string
	}{
		{
			name:        "Valid HTTPS URL",
			url:         "https://example.com",
			shouldError: false,
		},
		{
			name:        "Valid HTTP URL",
			url:         "http://example.com/path",
			shouldError: false,
		},
		{
			name:        "Empty URL",
			url:         "",
			shouldError: true,
			errorMsg:    "URL cannot be empty",
		},
		{
			name:        "Localhost",
			url:         "http://localhost:8080",
			shouldError: true,
			errorMsg:    "requests to localhost are not allowed",
		},
		{
			name:        "127.0.0.1",
			url:         "http://127.0.0.1:3000",
			shouldError: true,
			errorMsg:    "requests to localhost are not allowed",
		},
		{
			name:        "Private IP 192.168.x.x",
			url:         "http://192.168.1.1",
			shouldError: true,
			errorMsg:    "requests to private/internal IP addresses are not allowed",
		},
		{
			name:        "Private IP 10.x.x.x",
			url:         "http://10.0.0.1",
			shouldError: true,
			errorMsg:    "requests to private/internal IP addresses are not allowed",
		},
		{
			name:        "File protocol",
			url:         "file:///etc/passwd",
			shouldError: true,
			errorMsg:    "only HTTP and HTTPS protocols are allowed",
		},
		{
			name:        "Missing host",
			url:         "https://",
			shouldError: true,
			errorMsg:    "URL must have a valid hostname",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.shouldError {
				if err == nil {
					t.Errorf("expected error, got nil")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsPrivateIPv6(t *testing.T) {
	if err := ValidateURL("http://[::1]/"); err == nil {
		t.Error("IPv6 loopback should be rejected")
	}
}
