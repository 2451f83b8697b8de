package utils

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateShortCode(t *testing.T) {
	code := GenerateShortCode(ShortCodeLength)
	if len(code) != ShortCodeLength {
		t.Fatalf("expected length %d, got %q", ShortCodeLength, code)
	}
	for _, c := range code {
		if !strings.ContainsRune(shortCodeChars, c) {
			t.Fatalf("unexpected character %q in %q", c, code)
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[GenerateShortCode(ShortCodeLength)] = true
	}
	if len(seen) < 95 {
		t.Errorf("expected mostly distinct codes, got %d of 100", len(seen))
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithExponentialBackoff(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}, 5, time.Millisecond)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryGivesUpOnPermanentError(t *testing.T) {
	permanent := errors.New("no such table: clips")
	attempts := 0
	err := RetryWithExponentialBackoff(func() error {
		attempts++
		return permanent
	}, 5, time.Millisecond)
	if !errors.Is(err, permanent) || attempts != 1 {
		t.Fatalf("expected one attempt returning the error, got %d attempts, %v", attempts, err)
	}
}

func TestRetryExhausted(t *testing.T) {
	timeout := errors.New("i/o timeout")
	attempts := 0
	err := RetryWithExponentialBackoff(func() error {
		attempts++
		return timeout
	}, 3, time.Millisecond)
	if !errors.Is(err, timeout) {
		t.Fatalf("expected the last error to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}
