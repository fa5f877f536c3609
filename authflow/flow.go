// Package authflow drives the OAuth2 state machine for one platform:
// flow initialization, single-use callback handling, refresh, and
// revocation. Platform-specific protocol work is delegated to an
// injected Strategy; persistence goes through the token vault and the
// identity linker.
package authflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/credlink/credlink/fault"
	"github.com/credlink/credlink/linker"
	"github.com/credlink/credlink/store"
	"github.com/credlink/credlink/vault"
)

const (
	// keyspace is where transient auth state lives in the shared store.
	keyspace = "auth/"

	// stateTTL bounds how long a started flow may wait for its
	// callback.
	stateTTL = 10 * time.Minute

	// stateTokenBytes is the number of random bytes in a state token
	// (hex-encoded to twice this length).
	stateTokenBytes = 32
)

// transientState is the persisted snapshot of one in-flight flow,
// keyed by its state token and consumed exactly once at callback time.
type transientState struct {
	WalletID     string    `json:"wallet_id"`
	RedirectURI  string    `json:"redirect_uri"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	SuccessURL   string    `json:"success_url,omitempty"`
	ErrorURL     string    `json:"error_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthInit is returned by InitializeAuth.
type AuthInit struct {
	// AuthURL is where the caller sends the user's browser.
	AuthURL string

	// State is the flow's state token, echoed back in the callback.
	State string

	// CodeVerifier is the PKCE verifier, empty when the platform does
	// not use PKCE. Exposed for callers that complete the exchange
	// out-of-band.
	CodeVerifier string
}

// CallbackResult is returned by HandleCallback.
type CallbackResult struct {
	// UserID is the platform user id now linked to the wallet.
	UserID string

	// Bundle is the freshly stored credential bundle.
	Bundle vault.CredentialBundle

	// SuccessRedirect is the caller-supplied redirect target captured
	// at flow initialization.
	SuccessRedirect string
}

// Orchestrator runs the OAuth flow for a single platform.
type Orchestrator struct {
	strategy Strategy
	vault    *vault.Vault
	linker   *linker.Linker
	states   store.Store
	logger   *slog.Logger
}

// New creates an Orchestrator. One instance serves one platform, named
// by its strategy.
func New(st store.Store, strategy Strategy, v *vault.Vault, l *linker.Linker, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		strategy: strategy,
		vault:    v,
		linker:   l,
		states:   store.Namespaced(st, keyspace),
		logger:   logger,
	}
}

// Platform returns the platform this orchestrator serves.
func (o *Orchestrator) Platform() string {
	return o.strategy.Name()
}

// randomState generates a cryptographically random state token.
func randomState() string {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}

// InitializeAuth starts a flow for walletID: it asks the strategy for
// an authorization URL, persists the transient state under the new
// state token with a TTL, and returns what the caller needs to redirect
// the user. Strategy failures propagate unchanged.
func (o *Orchestrator) InitializeAuth(ctx context.Context, walletID, redirectURI string, scopes []string, successURL, errorURL string) (*AuthInit, error) {
	state := randomState()

	authURL, verifier, err := o.strategy.BuildAuthURL(ctx, AuthRequest{
		RedirectURI: redirectURI,
		Scopes:      scopes,
		State:       state,
	})
	if err != nil {
		return nil, err
	}

	ts := transientState{
		WalletID:     walletID,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
		SuccessURL:   successURL,
		ErrorURL:     errorURL,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("encoding auth state: %w", err)
	}

	if err := o.states.Set(ctx, state, data, stateTTL); err != nil {
		return nil, err
	}

	o.logger.Info("auth flow initialized",
		slog.String("platform", o.Platform()),
		slog.String("wallet", walletID),
	)

	return &AuthInit{AuthURL: authURL, State: state, CodeVerifier: verifier}, nil
}

// consumeState loads and deletes the transient state for a token in one
// conditional update, so a replayed callback observes absence.
func (o *Orchestrator) consumeState(ctx context.Context, state string) (*transientState, error) {
	var ts *transientState

	err := o.states.Update(ctx, state, func(old []byte) ([]byte, error) {
		// The closure can run more than once under contention; reset
		// the capture each attempt.
		ts = nil

		if old == nil {
			return nil, fault.InvalidState("auth state missing, expired, or already used", nil)
		}

		decoded := &transientState{}
		if err := json.Unmarshal(old, decoded); err != nil {
			return nil, fault.InvalidState("auth state undecodable", err)
		}

		ts = decoded

		// Returning nil deletes the key: consumption and validation
		// are one atomic step.
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return ts, nil
}

// HandleCallback consumes the single-use state, exchanges the code via
// the strategy, stores the resulting bundle, and links the initiating
// wallet to the platform user id.
func (o *Orchestrator) HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error) {
	ts, err := o.consumeState(ctx, state)
	if err != nil {
		return nil, err
	}

	result, err := o.strategy.ExchangeCode(ctx, code, ts.CodeVerifier, ts.RedirectURI)
	if err != nil {
		return nil, err
	}

	platform := o.Platform()

	if err := o.vault.Save(ctx, platform, result.UserID, &result.Bundle); err != nil {
		return nil, err
	}

	if err := o.linker.Link(ctx, ts.WalletID, platform, result.UserID); err != nil {
		return nil, err
	}

	o.logger.Info("account linked",
		slog.String("platform", platform),
		slog.String("wallet", ts.WalletID),
	)

	return &CallbackResult{
		UserID:          result.UserID,
		Bundle:          result.Bundle,
		SuccessRedirect: ts.SuccessURL,
	}, nil
}

// RefreshToken replaces the stored bundle for userID with a freshly
// refreshed one. A bundle without a refresh secret is not recoverable:
// the caller must re-authenticate and the stored bundle is left
// untouched. When the platform reports the refresh secret itself dead,
// the stored bundle is deleted before the unauthorized error
// propagates, so subsequent reads fail fast with not-found instead of
// retrying a dead credential.
func (o *Orchestrator) RefreshToken(ctx context.Context, userID string) (*vault.CredentialBundle, error) {
	platform := o.Platform()

	bundle, err := o.vault.Get(ctx, platform, userID)
	if err != nil {
		return nil, err
	}

	if !bundle.Refreshable() {
		return nil, fault.Unauthorized("credential has no refresh secret", nil)
	}

	refreshed, err := o.strategy.Refresh(ctx, *bundle)
	if err != nil {
		if fault.IsKind(err, fault.KindUnauthorized) {
			if derr := o.vault.Delete(ctx, platform, userID); derr != nil {
				o.logger.Warn("purging dead credential failed",
					slog.String("platform", platform),
					slog.String("error", derr.Error()),
				)
			}
		}

		return nil, err
	}

	if err := o.vault.Save(ctx, platform, userID, refreshed); err != nil {
		return nil, err
	}

	return refreshed, nil
}

// RevokeToken revokes userID's credential. The server-side revoke is
// best effort: its failure is logged and does not abort. The local
// bundle is deleted unconditionally, and that deletion decides the
// overall result. An absent bundle counts as success.
func (o *Orchestrator) RevokeToken(ctx context.Context, userID string) error {
	platform := o.Platform()

	bundle, err := o.vault.Get(ctx, platform, userID)
	if fault.IsNotFound(err) {
		return nil
	}

	if err != nil && !fault.IsKind(err, fault.KindCorruptCredential) {
		return err
	}

	// A corrupt bundle cannot be revoked remotely but must still be
	// purged locally.
	if bundle != nil {
		if rerr := o.strategy.Revoke(ctx, *bundle); rerr != nil {
			o.logger.Warn("server-side revoke failed",
				slog.String("platform", platform),
				slog.String("error", rerr.Error()),
			)
		}
	}

	return o.vault.Delete(ctx, platform, userID)
}
