package utils

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"clipshare/logging"
)

const shortCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ShortCodeLength is the length of generated short codes.
const ShortCodeLength = 6

func GenerateShortCode(length int) string {
	shortCode := make([]byte, length)
	for i := 0; i < length; i++ {
		shortCode[i] = shortCodeChars[rand.Intn(len(shortCodeChars))]
	}
	return string(shortCode)
}

// isRecoverableError reports whether err looks like a connection problem that may
// go away on its own.
func isRecoverableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "database is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RetryWithExponentialBackoff runs operation until it succeeds, fails with an error
// that is not recoverable, or maxRetries attempts have been made. The delay doubles
// after each attempt, plus up to half of it as jitter.
func RetryWithExponentialBackoff(operation func() error, maxRetries int, initialDelay time.Duration) error {
	delay := initialDelay
	var err error

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRecoverableError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		logging.AuditLogger.Printf("Attempt %d failed: %v. Retrying in %v...", i+1, err, delay)

		var jitter time.Duration
		if half := int64(delay / 2); half > 0 {
			jitter = time.Duration(rand.Int63n(half))
		}
		time.Sleep(delay + jitter)
		delay *= 2
	}
	logging.AuditLogger.Printf("operation failed after %d attempts: %v", maxRetries, err)
	return fmt.Errorf("operation failed after %d attempts: %w", maxRetries, err)
}
