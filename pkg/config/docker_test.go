package config

import (
	"testing"
)

func TestResolveBindAddrForDocker_NonLoopback(t *testing.T) {
	// These addresses should never be modified regardless of Docker status
	tests := []struct {
		input    string
		expected string
	}{
		{"0.0.0.0", "0.0.0.0"},
		{"192.168.1.100", "192.168.1.100"},
		{"patch.internal", "patch.internal"},
	}

	for _, tt := range tests {
		result := ResolveBindAddrForDocker(tt.input)
		if result != tt.expected {
			t.Errorf("ResolveBindAddrForDocker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestResolveBindAddrForDocker_LoopbackVariants(t *testing.T) {
	// The actual replacement only happens when IsRunningInDocker() returns true
	for _, addr := range []string{"localhost", "127.0.0.1"} {
		result := ResolveBindAddrForDocker(addr)
		if IsRunningInDocker() {
			if result != "0.0.0.0" {
				t.Errorf("ResolveBindAddrForDocker(%q) in Docker = %q, want %q", addr, result, "0.0.0.0")
			}
		} else {
			if result != addr {
				t.Errorf("ResolveBindAddrForDocker(%q) not in Docker = %q, want %q", addr, result, addr)
			}
		}
	}
}
