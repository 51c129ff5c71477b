package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidEncoding, "witness %s: bad byte", "W1")

	if err.Code != ErrCodeInvalidEncoding {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidEncoding)
	}

	if err.Message != "witness W1: bad byte" {
		t.Errorf("Message = %v, want %v", err.Message, "witness W1: bad byte")
	}

	expected := "INVALID_ENCODING: witness W1: bad byte"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, cause, "building graph")

	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeEmptyWitness, "test"),
			code:     ErrCodeEmptyWitness,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeEmptyWitness, "test"),
			code:     ErrCodeInsufficientData,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			code:     ErrCodeInternal,
			expected: false,
		},
		{
			name:     "wrapped structured error",
			err:      Wrap(ErrCodeInsufficientData, New(ErrCodeEmptyWitness, "inner"), "outer"),
			code:     ErrCodeInsufficientData,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeAlignmentDegeneracy, "tie")); got != ErrCodeAlignmentDegeneracy {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeAlignmentDegeneracy)
	}
	if got := GetCode(errors.New("plain")); got != Code("") {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidInput, "bad flag")); got != "bad flag" {
		t.Errorf("UserMessage() = %v, want %v", got, "bad flag")
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain")
	}
}
