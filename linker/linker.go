// Package linker maintains the many-to-many index between a wallet
// identity and the platform accounts it has linked, plus a separate
// per-wallet authorization flag. Index mutations go through the store's
// conditional update primitive so concurrent link/unlink calls for the
// same wallet cannot lose entries.
package linker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/credlink/credlink/fault"
	"github.com/credlink/credlink/store"
)

// Store namespaces.
const (
	indexKeyspace = "wallet-index/"
	authKeyspace  = "wallet-auth/"
)

// LinkedAccount is one (platform, platform-user-id) entry in a wallet's
// link index.
type LinkedAccount struct {
	Platform string    `json:"platform"`
	UserID   string    `json:"user_id"`
	LinkedAt time.Time `json:"linked_at"`
}

// authRecord is the per-wallet authorization flag.
type authRecord struct {
	Authorized bool      `json:"authorized"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CredentialDeleter removes stored credentials for a platform account.
// Implemented by vault.Vault.
type CredentialDeleter interface {
	Delete(ctx context.Context, platform, userID string) error
}

// Linker owns the wallet link index and authorization records.
type Linker struct {
	index  store.Store
	auth   store.Store
	creds  CredentialDeleter
	logger *slog.Logger
}

// New creates a Linker over the shared store. creds is consulted only
// by Unlink, to drop the account's stored credential alongside the
// index entry.
func New(st store.Store, creds CredentialDeleter, logger *slog.Logger) *Linker {
	return &Linker{
		index:  store.Namespaced(st, indexKeyspace),
		auth:   store.Namespaced(st, authKeyspace),
		creds:  creds,
		logger: logger,
	}
}

// Link adds (platform, userID) to the wallet's index. Linking an
// already-linked pair is a no-op: at most one entry exists per pair.
func (l *Linker) Link(ctx context.Context, walletID, platform, userID string) error {
	return l.index.Update(ctx, walletID, func(old []byte) ([]byte, error) {
		accounts, err := decodeIndex(old)
		if err != nil {
			return nil, err
		}

		for _, a := range accounts {
			if a.Platform == platform && a.UserID == userID {
				return old, nil
			}
		}

		accounts = append(accounts, LinkedAccount{
			Platform: platform,
			UserID:   userID,
			LinkedAt: time.Now().UTC(),
		})

		return json.Marshal(accounts)
	})
}

// Unlink removes (platform, userID) from the wallet's index and deletes
// the account's stored credential. The two steps are attempted
// independently: a failure in one never prevents the other, and both
// failures are reported together.
func (l *Linker) Unlink(ctx context.Context, walletID, platform, userID string) error {
	idxErr := l.index.Update(ctx, walletID, func(old []byte) ([]byte, error) {
		accounts, err := decodeIndex(old)
		if err != nil {
			return nil, err
		}

		kept := accounts[:0]

		for _, a := range accounts {
			if a.Platform == platform && a.UserID == userID {
				continue
			}

			kept = append(kept, a)
		}

		if len(kept) == 0 {
			return nil, nil
		}

		return json.Marshal(kept)
	})
	if idxErr != nil {
		idxErr = fmt.Errorf("removing index entry: %w", idxErr)
	}

	credErr := l.creds.Delete(ctx, platform, userID)
	if credErr != nil {
		credErr = fmt.Errorf("deleting credential: %w", credErr)
	}

	return errors.Join(idxErr, credErr)
}

// ListLinked returns the wallet's linked accounts in link order. A
// wallet with no index record has no links; that is not an error.
func (l *Linker) ListLinked(ctx context.Context, walletID string) ([]LinkedAccount, error) {
	raw, err := l.index.Get(ctx, walletID)
	if fault.IsNotFound(err) {
		return []LinkedAccount{}, nil
	}

	if err != nil {
		return nil, err
	}

	return decodeIndex(raw)
}

// HasAccess reports whether the wallet has linked (platform, userID).
func (l *Linker) HasAccess(ctx context.Context, walletID, platform, userID string) (bool, error) {
	accounts, err := l.ListLinked(ctx, walletID)
	if err != nil {
		return false, err
	}

	for _, a := range accounts {
		if a.Platform == platform && a.UserID == userID {
			return true, nil
		}
	}

	return false, nil
}

// Authorize marks the wallet as authorized.
func (l *Linker) Authorize(ctx context.Context, walletID string) error {
	data, err := json.Marshal(authRecord{Authorized: true, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding authorization record: %w", err)
	}

	return l.auth.Set(ctx, walletID, data, 0)
}

// Unauthorize clears the wallet's authorization. Unauthorizing a wallet
// that was never authorized succeeds.
func (l *Linker) Unauthorize(ctx context.Context, walletID string) error {
	return l.auth.Delete(ctx, walletID)
}

// AuthorizationStatus is the canonical readiness signal:
//
//	-1  wallet has not authorized (caller must prompt for authorization)
//	 0  authorized but no linked accounts (caller must prompt to link)
//	>0  authorized with that many linked accounts (ready)
func (l *Linker) AuthorizationStatus(ctx context.Context, walletID string) (int, error) {
	raw, err := l.auth.Get(ctx, walletID)
	if fault.IsNotFound(err) {
		return -1, nil
	}

	if err != nil {
		return 0, err
	}

	var rec authRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, fmt.Errorf("decoding authorization record: %w", err)
	}

	if !rec.Authorized {
		return -1, nil
	}

	accounts, err := l.ListLinked(ctx, walletID)
	if err != nil {
		return 0, err
	}

	return len(accounts), nil
}

func decodeIndex(raw []byte) ([]LinkedAccount, error) {
	if raw == nil {
		return nil, nil
	}

	var accounts []LinkedAccount
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding link index: %w", err)
	}

	return accounts, nil
}
