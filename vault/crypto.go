package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

const (
	// envelopeVersion is the current envelope format version byte,
	// written ahead of the nonce so future formats stay distinguishable.
	envelopeVersion byte = 0x01

	// gcmNonceSize is the AES-GCM nonce length in bytes.
	gcmNonceSize = 12

	// derivedKeyLen is the key length produced for secrets that are not
	// already a valid AES key size.
	derivedKeyLen = 32
)

// errEnvelope is the sentinel wrapped by every decode failure, so the
// vault can classify them uniformly without inspecting messages.
var errEnvelope = errors.New("invalid envelope")

// deriveKey turns the configured secret into an AES key. Secrets that
// are already exactly 16, 24, or 32 bytes are used as-is. Anything else
// is NFKC-normalized and stretched to 32 bytes with HKDF-SHA256, so
// visually identical passphrases in different Unicode forms derive the
// same key.
func deriveKey(secret string) ([]byte, error) {
	switch len(secret) {
	case 16, 24, 32:
		return []byte(secret), nil
	}

	ikm := []byte(norm.NFKC.String(secret))

	r := hkdf.New(sha256.New, ikm, nil, []byte("credlink-vault-key"))

	key := make([]byte, derivedKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving vault key: %w", err)
	}

	return key, nil
}

// zeroKey overwrites key material once the cipher holds its own copy.
func zeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

// Cipher seals credential bundles into versioned envelopes and opens
// them again. Envelope layout: [version byte][nonce][ciphertext+tag],
// base64-encoded for storage.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher builds a Cipher from the configured vault secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault secret must not be empty")
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	zeroKey(key)

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce under the current
// format version.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ct := c.gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+len(nonce)+len(ct))
	out = append(out, envelopeVersion)
	out = append(out, nonce...)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts an envelope. The current versioned format is decoded by
// its version byte; buffers that do not start with a known version byte
// are tried once as the legacy unversioned [nonce][ciphertext+tag]
// layout, which is read-only and never written. Any decoding or
// authentication failure fails closed.
func (c *Cipher) Open(envelope string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %w", errEnvelope, err)
	}

	if len(data) > 0 && data[0] == envelopeVersion {
		return c.open(data[1:])
	}

	// Legacy format carried no version byte. A modern envelope that
	// merely lost its version byte cannot authenticate, so a failed
	// legacy attempt still fails closed.
	return c.open(data)
}

func (c *Cipher) open(data []byte) ([]byte, error) {
	if len(data) <= gcmNonceSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", errEnvelope, len(data))
	}

	plaintext, err := c.gcm.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", errEnvelope)
	}

	return plaintext, nil
}
