package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Byte lengths for random values (before encoding).
const (
	// Size128 provides 128 bits of entropy (22 chars base64url).
	Size128 = 16
	// Size256 provides 256 bits of entropy (43 chars base64url).
	Size256 = 32
)

// RandomBytes returns size cryptographically secure random bytes.
func RandomBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cryptox: size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: failed to read random source: %w", err)
	}
	return buf, nil
}

// RandomToken creates a cryptographically secure random token of the
// specified byte length, returned base64url-encoded without padding.
func RandomToken(size int) (string, error) {
	buf, err := RandomBytes(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustRandomToken is like RandomToken but panics on error. Use this only
// during initialization or in contexts where failure is unrecoverable.
func MustRandomToken(size int) string {
	token, err := RandomToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}
