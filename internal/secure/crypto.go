package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/solsticehq/solstice/internal/model"
)

const (
	keySize   = 32
	saltSize  = 16
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// KeyVersion labels envelopes produced by the current key so a future key
// rotation can be detected at decrypt time.
const KeyVersion = "v1"

// ErrDecrypt is returned for every decryption failure: tampered ciphertext,
// truncated envelope, wrong key. The causes are deliberately indistinguishable.
var ErrDecrypt = errors.New("secure decryption failed")

// Keychain holds the symmetric key material for envelope encryption.
type Keychain struct {
	key []byte
}

// NewKeychain builds a keychain from a base64-encoded 256-bit key.
func NewKeychain(encodedKey string) (*Keychain, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	return &Keychain{key: key}, nil
}

// NewKeychainFromPassphrase derives a 256-bit key from a passphrase and a
// base64-encoded salt using Argon2id.
func NewKeychainFromPassphrase(passphrase, encodedSalt string) (*Keychain, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is empty")
	}
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", saltSize, len(salt))
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
	return &Keychain{key: key}, nil
}

// GenerateSalt returns a base64-encoded random salt for passphrase derivation.
func GenerateSalt() (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// Encrypt serializes value as JSON and seals it under AES-256-GCM with a fresh
// 96-bit nonce. Ciphertext and the 128-bit tag are emitted as separate base64
// fields. The serialized plaintext is zeroed before returning.
func (k *Keychain) Encrypt(value any) (*model.EncryptedPayload, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serialize value: %w", err)
	}
	defer zero(plaintext)

	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, model.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	// gcm.Seal appends the tag; split it out to match the envelope shape.
	ciphertext := sealed[:len(sealed)-model.TagSize]
	tag := sealed[len(sealed)-model.TagSize:]

	return &model.EncryptedPayload{
		Data:        base64.StdEncoding.EncodeToString(ciphertext),
		IV:          base64.StdEncoding.EncodeToString(nonce),
		AuthTag:     base64.StdEncoding.EncodeToString(tag),
		KeyVersion:  KeyVersion,
		EncryptedAt: time.Now().UTC(),
	}, nil
}

// Decrypt opens the envelope and parses the plaintext into out. Any failure,
// whether a malformed envelope, a tampered field, or the wrong key, yields
// ErrDecrypt with no partial output.
func (k *Keychain) Decrypt(payload *model.EncryptedPayload, out any) error {
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return ErrDecrypt
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.IV)
	if err != nil || len(nonce) != model.NonceSize {
		return ErrDecrypt
	}
	tag, err := base64.StdEncoding.DecodeString(payload.AuthTag)
	if err != nil || len(tag) != model.TagSize {
		return ErrDecrypt
	}

	gcm, err := k.aead()
	if err != nil {
		return ErrDecrypt
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ErrDecrypt
	}
	defer zero(plaintext)

	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrDecrypt
	}
	return nil
}

func (k *Keychain) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Scrub best-effort clears decrypted structures: byte slices are zeroed in
// place, maps have their values scrubbed and keys deleted, slices are scrubbed
// element-wise. Strings in Go are immutable, so string values can only be
// dropped, not overwritten; this is advisory, not a memory-safety guarantee.
func Scrub(data any) {
	switch v := data.(type) {
	case []byte:
		zero(v)
	case map[string]any:
		for key := range v {
			Scrub(v[key])
			delete(v, key)
		}
	case []any:
		for i := range v {
			Scrub(v[i])
			v[i] = nil
		}
	case []string:
		for i := range v {
			v[i] = ""
		}
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
