// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"testing"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST:11434", true},
		{"127.0.0.1", true},
		{"127.0.0.1:8080", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"[::1]:11434", true},
		{"api.openai.com", false},
		{"10.0.0.5:11434", false},
		{"localhost.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsLocalhost(tt.host); got != tt.want {
			t.Errorf("IsLocalhost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		url       string
		localOnly bool
		wantErr   error
	}{
		{"", true, nil},
		{"http://localhost:11434", true, nil},
		{"http://[::1]:11434/api/chat", true, nil},
		{"https://api.anthropic.com/v1/messages", false, nil},
		{"https://api.anthropic.com/v1/messages", true, ErrNonLocalhost},
		{"ftp://localhost/file", false, ErrInvalidURLScheme},
		{"localhost:11434", false, ErrInvalidURLScheme},
	}
	for _, tt := range tests {
		err := ValidateEndpoint(tt.url, tt.localOnly)
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("ValidateEndpoint(%q, %v) = %v", tt.url, tt.localOnly, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateEndpoint(%q, %v) = %v, want %v", tt.url, tt.localOnly, err, tt.wantErr)
		}
	}
}

func TestValidateEndpointsReturnsFirstFailure(t *testing.T) {
	err := ValidateEndpoints(true, "http://127.0.0.1:11434", "", "https://gpu.lan:11434")
	if !errors.Is(err, ErrNonLocalhost) {
		t.Fatalf("err = %v", err)
	}
	if err := ValidateEndpoints(true, "http://localhost:1", "http://127.0.0.1:2"); err != nil {
		t.Fatalf("err = %v", err)
	}
}
