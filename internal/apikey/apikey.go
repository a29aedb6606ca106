// Package apikey generates the opaque credentials handed to customers.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	prefix = "sx-"
	// 24 random bytes; the hex form plus prefix is 51 characters.
	entropyBytes = 24
)

// New returns a fresh high-entropy API key.
func New() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}
