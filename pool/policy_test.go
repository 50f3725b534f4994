package pool

import (
	"errors"
	"testing"
)

func TestParseRecyclingPolicy(t *testing.T) {
	tests := []struct {
		in       string
		expected RecyclingPolicy
	}{
		{"", RecycleLIFO},
		{"lifo", RecycleLIFO},
		{"stack", RecycleLIFO},
		{"fifo", RecycleFIFO},
		{"queue", RecycleFIFO},
		{"disconnect-always", DisconnectAlways},
		{"disconnect", DisconnectAlways},
		{"  FIFO   ", RecycleFIFO},
		{"LIFO", RecycleLIFO},
	}
	for _, tc := range tests {
		got, err := ParseRecyclingPolicy(tc.in)
		if err != nil {
			t.Fatalf("ParseRecyclingPolicy(%q) error: %v", tc.in, err)
		}
		if got != tc.expected {
			t.Fatalf("ParseRecyclingPolicy(%q)=%v want %v", tc.in, got, tc.expected)
		}
	}
}

func TestParseRecyclingPolicyUnknown(t *testing.T) {
	if _, err := ParseRecyclingPolicy("round-robin"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestRecyclingPolicyString(t *testing.T) {
	tests := []struct {
		in       RecyclingPolicy
		expected string
	}{
		{RecycleLIFO, "lifo"},
		{RecycleFIFO, "fifo"},
		{DisconnectAlways, "disconnect-always"},
		{RecyclingPolicy(42), "policy(42)"},
	}
	for _, tc := range tests {
		if got := tc.in.String(); got != tc.expected {
			t.Fatalf("String()=%q want %q", got, tc.expected)
		}
	}
}
