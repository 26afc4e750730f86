package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(42), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.class.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"context canceled", context.Canceled, ErrorTransient},
		{"conflict", ErrConflict, ErrorTransient},
		{"invalid dscp", ErrInvalidDSCP, ErrorInvalid},
		{"wrapped duplicate bssid", fmt.Errorf("tenant: %w", ErrDuplicateBSSID), ErrorInvalid},
		{"missing config", ErrMissingConfig, ErrorFatal},
		{"classified fatal", WrapFatal(errors.New("boom"), "Store", "Open", "open db"), ErrorFatal},
		{"unknown defaults to transient", errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for %v", test.expected, got, test.err)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("eof")
	err := Wrap(base, "Conn", "readFrame", "read header")
	if err.Error() != "Conn.readFrame: read header failed: eof" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error lost its cause")
	}
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestWrapClassified(t *testing.T) {
	err := WrapInvalid(ErrParsingFailed, "Codec", "Decode", "parse body")
	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatal("expected a ClassifiedError")
	}
	if ce.Class != ErrorInvalid || ce.Component != "Codec" || ce.Operation != "Decode" {
		t.Errorf("unexpected classification %+v", ce)
	}
	if !IsInvalid(err) || IsTransient(err) {
		t.Error("classification predicates disagree with class")
	}
	if !errors.Is(err, ErrParsingFailed) {
		t.Error("classified error must unwrap to the sentinel")
	}
}

func TestInvalidf(t *testing.T) {
	err := Invalidf(ErrInvalidAddress, "malformed address %q", "zz:00")
	if err.Error() != `malformed address "zz:00"` {
		t.Errorf("reason not preserved: %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidAddress) {
		t.Error("Invalidf must wrap its target")
	}
	if Classify(err) != ErrorInvalid {
		t.Error("Invalidf must classify as invalid")
	}
}
