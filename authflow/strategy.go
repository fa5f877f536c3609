package authflow

//go:generate mockgen -source=strategy.go -destination=mock_strategy_test.go -package=authflow

import (
	"context"

	"github.com/credlink/credlink/vault"
)

// AuthRequest carries the caller's parameters for building an
// authorization URL.
type AuthRequest struct {
	// RedirectURI is where the platform sends the user after consent.
	RedirectURI string

	// Scopes are the requested grant scopes.
	Scopes []string

	// State is the opaque token the orchestrator generated for this
	// flow; strategies must carry it into the authorization URL.
	State string
}

// ExchangeResult is the outcome of a successful code exchange.
type ExchangeResult struct {
	// UserID is the platform's id for the authenticated user.
	UserID string

	// Bundle holds the issued credentials.
	Bundle vault.CredentialBundle
}

// Strategy implements the platform-specific half of the OAuth flow. The
// orchestrator owns the state machine; strategies own the wire
// protocol. All network I/O in the subsystem happens behind this
// interface, so callers apply their own timeouts via ctx.
type Strategy interface {
	// Name identifies the platform (e.g. "twitter").
	Name() string

	// BuildAuthURL returns the platform authorization URL for req and,
	// when the platform uses PKCE, the locally held code verifier.
	BuildAuthURL(ctx context.Context, req AuthRequest) (authURL, codeVerifier string, err error)

	// ExchangeCode swaps an authorization code for credentials and the
	// platform user id. verifier is empty when PKCE was not used.
	ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*ExchangeResult, error)

	// Refresh exchanges the bundle's refresh secret for a new bundle.
	// A platform-reported dead refresh secret must surface as a
	// fault.KindUnauthorized error.
	Refresh(ctx context.Context, bundle vault.CredentialBundle) (*vault.CredentialBundle, error)

	// Revoke invalidates the bundle's secrets server-side.
	Revoke(ctx context.Context, bundle vault.CredentialBundle) error
}
