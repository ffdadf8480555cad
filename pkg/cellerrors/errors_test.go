package cellerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CategoryInternal, SeverityMedium, "test error")
	if err == nil {
		t.Fatal("New returned nil")
	}
	if err.Category != CategoryInternal {
		t.Errorf("Expected category %s, got %s", CategoryInternal, err.Category)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Retryable {
		t.Error("Expected non-retryable error")
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")
	err := Wrap(CategoryTransport, SeverityHigh, "wrapped error", underlying)

	if err.Underlying == nil {
		t.Error("Expected underlying error to be set")
	}
	if !errors.Is(err, underlying) {
		t.Error("Wrapped error should unwrap to underlying error")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *CellError
		expected string
	}{
		{
			name:     "simple error",
			err:      New(CategoryRoutingInconsistency, SeverityLow, "bad path"),
			expected: "[routing_inconsistency:low] bad path",
		},
		{
			name:     "wrapped error",
			err:      Wrap(CategoryTransport, SeverityHigh, "send failed", fmt.Errorf("eof")),
			expected: "[transport:high] send failed: eof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsCategory(t *testing.T) {
	err := RoutingInconsistency("destination diverges from path")
	if !IsCategory(err, CategoryRoutingInconsistency) {
		t.Error("expected RoutingInconsistency category match")
	}
	if IsCategory(err, CategoryTimeout) {
		t.Error("expected no match for unrelated category")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryRoutingInconsistency) {
		t.Error("plain errors should never match a category")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"transport error", TransportError("send failed", nil), true},
		{"routing inconsistency", RoutingInconsistency("bad dest"), false},
		{"plain error", fmt.Errorf("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRemoteErrorFormatting(t *testing.T) {
	re := &RemoteError{ClassName: "ValueError", Message: "boom"}
	if got, want := re.Error(), "ValueError: boom"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	bare := &RemoteError{Message: "boom"}
	if got, want := bare.Error(), "boom"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
