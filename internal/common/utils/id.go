// Package utils holds small helpers shared across the subscriber:
// request ids for tracing and the extended duration syntax used by
// retention configuration.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateRandomID returns a random hex string of the given length.
// Odd lengths round down to an even count since every byte encodes to
// two hex characters.
func GenerateRandomID(length int) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("invalid ID length: %d", length)
	}

	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return hex.EncodeToString(bytes), nil
}

// GenerateRequestID returns an id of the form "req-{hex}-{unix}". The
// random part keeps ids unique across instances and the timestamp keeps
// them roughly sortable.
func GenerateRequestID() (string, error) {
	id, err := GenerateRandomID(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return fmt.Sprintf("req-%s-%d", id, time.Now().Unix()), nil
}

// MustGenerateRequestID panics when the random source fails, which only
// happens when the operating system is in serious trouble.
func MustGenerateRequestID() string {
	id, err := GenerateRequestID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate request ID: %v", err))
	}
	return id
}
