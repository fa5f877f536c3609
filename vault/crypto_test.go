package vault

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sealLegacy writes the unversioned [nonce][ciphertext+tag] format that
// production code no longer emits, to prove the read path keeps working.
func sealLegacy(t *testing.T, c *Cipher, plaintext []byte) string {
	t.Helper()

	nonce := make([]byte, gcmNonceSize)
	_, err := rand.Read(nonce)
	require.NoError(t, err)

	ct := c.gcm.Seal(nil, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(append(nonce, ct...))
}

const testSecret = "correct-horse-battery-staple-secret"

func testCipherC(t *testing.T) *Cipher {
	t.Helper()

	c, err := NewCipher(testSecret)
	require.NoError(t, err)

	return c
}

// --- key handling ---

func TestNewCipher_EmptySecret(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)
}

func TestNewCipher_ExactSizeKeyUsedRaw(t *testing.T) {
	// 32-byte secrets are AES keys as-is; sealing with one and opening
	// with the same one must round-trip.
	secret := "0123456789abcdef0123456789abcdef"

	c1, err := NewCipher(secret)
	require.NoError(t, err)

	c2, err := NewCipher(secret)
	require.NoError(t, err)

	env, err := c1.Seal([]byte("payload"))
	require.NoError(t, err)

	got, err := c2.Open(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestNewCipher_NFKCEquivalentSecrets(t *testing.T) {
	// The fullwidth 'A' (U+FF21) normalizes to ASCII 'A' under NFKC, so
	// both spellings must derive the same key. Only applies to derived
	// (non-exact-size) secrets.
	c1, err := NewCipher("Ａ-some-long-passphrase")
	require.NoError(t, err)

	c2, err := NewCipher("A-some-long-passphrase")
	require.NoError(t, err)

	env, err := c1.Seal([]byte("cross-form payload"))
	require.NoError(t, err)

	got, err := c2.Open(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("cross-form payload"), got)
}

func TestNewCipher_DifferentSecretsCannotOpen(t *testing.T) {
	c1, err := NewCipher("first-secret-passphrase")
	require.NoError(t, err)

	c2, err := NewCipher("second-secret-passphrase")
	require.NoError(t, err)

	env, err := c1.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = c2.Open(env)
	assert.Error(t, err)
}

// --- envelope format ---

func TestSeal_VersionByteAndFreshNonce(t *testing.T) {
	c := testCipherC(t)

	e1, err := c.Seal([]byte("same plaintext"))
	require.NoError(t, err)

	e2, err := c.Seal([]byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, e1, e2, "fresh nonce per seal")

	raw, err := base64.StdEncoding.DecodeString(e1)
	require.NoError(t, err)
	require.Greater(t, len(raw), 1+gcmNonceSize)
	assert.Equal(t, envelopeVersion, raw[0])
}

func TestOpen_RoundTrip(t *testing.T) {
	c := testCipherC(t)

	env, err := c.Seal([]byte(`{"access":"a","refresh":"r"}`))
	require.NoError(t, err)

	got, err := c.Open(env)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"access":"a","refresh":"r"}`), got)
}

func TestOpen_TamperAnyByteFails(t *testing.T) {
	c := testCipherC(t)

	env, err := c.Seal([]byte("tamper target"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)

	for i := range raw {
		mutated := append([]byte(nil), raw...)
		mutated[i] ^= 0x01

		_, err := c.Open(base64.StdEncoding.EncodeToString(mutated))
		assert.Error(t, err, "flipping byte %d must fail closed", i)
	}
}

func TestOpen_GarbageInputs(t *testing.T) {
	c := testCipherC(t)

	for _, in := range []string{"", "not base64!!!", base64.StdEncoding.EncodeToString([]byte{0x01}), base64.StdEncoding.EncodeToString(make([]byte, 5))} {
		_, err := c.Open(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestOpen_LegacyUnversionedFormat(t *testing.T) {
	c := testCipherC(t)

	// Redraw if the random nonce happens to start with the current
	// version byte, which would make the blob indistinguishable from a
	// versioned envelope.
	var env string

	for {
		env = sealLegacy(t, c, []byte("old wine"))

		raw, err := base64.StdEncoding.DecodeString(env)
		require.NoError(t, err)

		if raw[0] != envelopeVersion {
			break
		}
	}

	got, err := c.Open(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("old wine"), got, "legacy envelopes stay readable")
}
