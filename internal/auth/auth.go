// Package auth provides Robinhood Crypto API authentication using Ed25519 signatures.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names sent on every authenticated request.
const (
	HeaderAPIKey    = "x-api-key"
	HeaderSignature = "x-signature"
	HeaderTimestamp = "x-timestamp"
)

// ErrInvalidKeyMaterial is returned when the private key cannot be used for signing.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// Credentials holds the API key and private key for signing requests.
// Immutable after construction; safe for concurrent use.
type Credentials struct {
	APIKey     string             // API key from the Robinhood crypto dashboard
	PrivateKey ed25519.PrivateKey // derived from the 32-byte seed
}

// LoadCredentials decodes a base64 private key seed and pairs it with the API key.
func LoadCredentials(apiKey, base64PrivateKey string) (*Credentials, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base64PrivateKey == "" {
		return nil, fmt.Errorf("private key is required")
	}

	privateKey, err := ParsePrivateKey(base64PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Credentials{
		APIKey:     apiKey,
		PrivateKey: privateKey,
	}, nil
}

// ParsePrivateKey decodes a base64 Ed25519 seed.
// The decoded value must be exactly ed25519.SeedSize bytes.
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidKeyMaterial, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKeyMaterial, len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Message builds the canonical string that gets signed.
// Message format: api_key + timestamp + path + method + body
func Message(apiKey string, timestamp int64, path, method, body string) string {
	return apiKey + strconv.FormatInt(timestamp, 10) + path + method + body
}

// Sign generates authentication headers for a request at the given unix timestamp (seconds).
func (c *Credentials) Sign(method, path, body string, timestamp int64) (map[string]string, error) {
	if len(c.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKeyMaterial, len(c.PrivateKey))
	}

	message := Message(c.APIKey, timestamp, path, method, body)
	signature := ed25519.Sign(c.PrivateKey, []byte(message))

	return map[string]string{
		HeaderAPIKey:    c.APIKey,
		HeaderSignature: base64.StdEncoding.EncodeToString(signature),
		HeaderTimestamp: strconv.FormatInt(timestamp, 10),
	}, nil
}

// SignRequest signs a request using the current wall-clock time.
// Signatures are never cached; every call gets a fresh timestamp.
func (c *Credentials) SignRequest(method, path, body string) (map[string]string, error) {
	return c.Sign(method, path, body, time.Now().UTC().Unix())
}

// PublicKey returns the base64 public key, which is what gets registered with Robinhood.
func (c *Credentials) PublicKey() string {
	pub, _ := c.PrivateKey.Public().(ed25519.PublicKey)
	return base64.StdEncoding.EncodeToString(pub)
}
