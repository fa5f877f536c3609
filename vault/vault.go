// Package vault stores OAuth credential bundles encrypted at rest.
// Bundles are serialized to JSON, sealed into versioned AES-GCM
// envelopes, and persisted under token/{platform}/{userId} in the
// shared store. Every operation is reported to the access auditor,
// fire-and-forget.
package vault

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/credlink/credlink/fault"
	"github.com/credlink/credlink/store"
)

// keyspace is the vault's namespace inside the shared store.
const keyspace = "token/"

// CredentialBundle holds the third-party credentials for one
// (platform, platform-user-id) pair. Replaced wholesale on refresh.
type CredentialBundle struct {
	// Access is the access secret used on platform API calls.
	Access string `json:"access"`

	// Refresh is the refresh secret, when the platform issued one.
	Refresh string `json:"refresh,omitempty"`

	// Legacy carries a platform-specific secondary secret from older
	// auth schemes (e.g. an OAuth 1.0a token secret).
	Legacy string `json:"legacy,omitempty"`

	// ExpiresAt is when the access secret expires. Nil means
	// non-expiring.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope string.
	Scope string `json:"scope,omitempty"`

	// Scheme discriminates the auth scheme the bundle belongs to.
	Scheme string `json:"scheme,omitempty"`
}

// Expired reports whether the access secret has expired. Bundles
// without an expiry never expire.
func (b *CredentialBundle) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// Refreshable reports whether the bundle carries a refresh secret.
func (b *CredentialBundle) Refreshable() bool {
	return b.Refresh != ""
}

// Recorder receives audit events for vault operations. Implemented by
// audit.Auditor; it must never fail or block the caller.
type Recorder interface {
	Record(ctx context.Context, operation, userID string, success bool, opErr error, platform string)
}

// Vault encrypts, persists, and retrieves credential bundles.
type Vault struct {
	store   store.Store
	cipher  *Cipher
	auditor Recorder
	logger  *slog.Logger
}

// New creates a Vault over the shared store. The secret is the
// configured vault encryption secret; auditor may be nil to disable
// auditing (tests only).
func New(st store.Store, secret string, auditor Recorder, logger *slog.Logger) (*Vault, error) {
	cipher, err := NewCipher(secret)
	if err != nil {
		return nil, err
	}

	return &Vault{
		store:   store.Namespaced(st, keyspace),
		cipher:  cipher,
		auditor: auditor,
		logger:  logger,
	}, nil
}

func bundleKey(platform, userID string) string {
	return platform + "/" + userID
}

func (v *Vault) record(ctx context.Context, op, userID string, opErr error, platform string) {
	if v.auditor == nil {
		return
	}

	v.auditor.Record(ctx, op, userID, opErr == nil, opErr, platform)
}

// Get returns the stored bundle for (platform, userID). Absent bundles
// return a not-found error; any crypto or structural failure returns a
// corrupt-credential error and never a partially decoded bundle. The
// bundle is returned exactly as stored: expiry handling belongs to the
// auth flow orchestrator, never the vault.
func (v *Vault) Get(ctx context.Context, platform, userID string) (*CredentialBundle, error) {
	envelope, err := v.store.Get(ctx, bundleKey(platform, userID))
	if err != nil {
		if fault.IsNotFound(err) {
			err = fault.NotFound("no credential for user", err)
		}

		v.record(ctx, "get", userID, err, platform)

		return nil, err
	}

	plaintext, err := v.cipher.Open(string(envelope))
	if err != nil {
		cerr := fault.CorruptCredential("opening credential envelope", err)
		v.record(ctx, "get", userID, cerr, platform)

		return nil, cerr
	}

	var bundle CredentialBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		cerr := fault.CorruptCredential("decoding credential bundle", err)
		v.record(ctx, "get", userID, cerr, platform)

		return nil, cerr
	}

	v.record(ctx, "get", userID, nil, platform)

	return &bundle, nil
}

// Save seals bundle with a fresh nonce under the current format version
// and unconditionally overwrites any previous envelope. Concurrent
// saves for the same key are last-writer-wins.
func (v *Vault) Save(ctx context.Context, platform, userID string, bundle *CredentialBundle) error {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		v.record(ctx, "save", userID, err, platform)
		return fault.CorruptCredential("encoding credential bundle", err)
	}

	envelope, err := v.cipher.Seal(plaintext)
	if err != nil {
		v.record(ctx, "save", userID, err, platform)
		return fault.CorruptCredential("sealing credential envelope", err)
	}

	if err := v.store.Set(ctx, bundleKey(platform, userID), []byte(envelope), 0); err != nil {
		v.record(ctx, "save", userID, err, platform)
		return err
	}

	v.record(ctx, "save", userID, nil, platform)

	return nil
}

// Delete removes the stored bundle. Deleting an absent bundle succeeds.
func (v *Vault) Delete(ctx context.Context, platform, userID string) error {
	err := v.store.Delete(ctx, bundleKey(platform, userID))
	v.record(ctx, "delete", userID, err, platform)

	return err
}

// Exists reports whether a bundle is stored, without decrypting it.
func (v *Vault) Exists(ctx context.Context, platform, userID string) (bool, error) {
	_, err := v.store.Get(ctx, bundleKey(platform, userID))
	if fault.IsNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
