package model

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes (128 bits).
	TagSize = 16
)

// EncryptedPayload is an authenticated-encryption envelope. Ciphertext and tag
// are kept as separate base64 fields so the envelope matches what browser-side
// AES-GCM produces; the tag must always be verified before any plaintext is
// trusted.
type EncryptedPayload struct {
	Data        string    `json:"data"`
	IV          string    `json:"iv"`
	AuthTag     string    `json:"authTag"`
	KeyVersion  string    `json:"keyVersion"`
	EncryptedAt time.Time `json:"encryptedAt"`
}

// Validate checks the structural shape of the envelope: all fields present,
// base64-decodable, nonce and tag of the expected GCM lengths. It says nothing
// about authenticity; that is decided at decryption time.
func (p *EncryptedPayload) Validate() error {
	if p.Data == "" || p.IV == "" || p.AuthTag == "" || p.KeyVersion == "" {
		return fmt.Errorf("encrypted payload missing required fields")
	}
	if _, err := base64.StdEncoding.DecodeString(p.Data); err != nil {
		return fmt.Errorf("encrypted payload data is not valid base64")
	}
	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil {
		return fmt.Errorf("encrypted payload iv is not valid base64")
	}
	if len(iv) != NonceSize {
		return fmt.Errorf("encrypted payload iv must be %d bytes, got %d", NonceSize, len(iv))
	}
	tag, err := base64.StdEncoding.DecodeString(p.AuthTag)
	if err != nil {
		return fmt.Errorf("encrypted payload authTag is not valid base64")
	}
	if len(tag) != TagSize {
		return fmt.Errorf("encrypted payload authTag must be %d bytes, got %d", TagSize, len(tag))
	}
	return nil
}
