package vecturakit

import (
	"strings"
	"testing"
)

func TestValidateText(t *testing.T) {
	if err := validateText(""); err == nil {
		t.Error("empty text should fail validation")
	}
	if err := validateText("hello"); err != nil {
		t.Errorf("valid text should pass: %v", err)
	}
	tooLong := strings.Repeat("a", maxTextLen+1)
	if err := validateText(tooLong); err == nil {
		t.Error("text exceeding maxTextLen should fail validation")
	}
}

func TestParseTimestampRoundTrip(t *testing.T) {
	const ts = "2024-01-15T10:30:00.123456789Z"
	parsed, err := parseTimestamp(ts)
	if err != nil {
		t.Fatalf("parseTimestamp: %v", err)
	}
	if parsed.IsZero() {
		t.Error("parsed timestamp should not be zero")
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	if _, err := parseTimestamp("not-a-timestamp"); err == nil {
		t.Error("expected an error for an invalid timestamp")
	}
}
