package authflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/credlink/credlink/fault"
	"github.com/credlink/credlink/vault"
)

// userInfoMaxBody caps how much of a userinfo response is read.
const userInfoMaxBody = 1 << 20

// ProviderConfig describes a standards-compliant OAuth2 platform for
// the generic strategy. Platforms with bespoke SDKs implement Strategy
// directly instead.
type ProviderConfig struct {
	// Name identifies the platform.
	Name string `yaml:"name"`

	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// Endpoint URLs. RevokeURL may be empty when the platform offers
	// no RFC 7009 revocation endpoint.
	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	UserInfoURL string `yaml:"user_info_url"`
	RevokeURL   string `yaml:"revoke_url,omitempty"`

	// Scopes are default scopes, used when the caller requests none.
	Scopes []string `yaml:"scopes,omitempty"`

	// UserIDPath is the gjson path of the user id inside the userinfo
	// response body. Defaults to "id"; some platforms nest it (e.g.
	// "data.id").
	UserIDPath string `yaml:"user_id_path,omitempty"`

	// UsePKCE enables the S256 code challenge. Should stay on unless
	// the platform rejects PKCE parameters.
	UsePKCE bool `yaml:"use_pkce"`
}

// OAuth2Strategy implements Strategy for any platform speaking plain
// OAuth2 with a JSON userinfo endpoint.
type OAuth2Strategy struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewOAuth2Strategy validates cfg and builds the strategy. client may
// be nil to use http.DefaultClient.
func NewOAuth2Strategy(cfg ProviderConfig, client *http.Client) (*OAuth2Strategy, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("provider %s: client_id is required", cfg.Name)
	}

	for field, val := range map[string]string{
		"auth_url":      cfg.AuthURL,
		"token_url":     cfg.TokenURL,
		"user_info_url": cfg.UserInfoURL,
	} {
		if val == "" {
			return nil, fmt.Errorf("provider %s: %s is required", cfg.Name, field)
		}
	}

	if cfg.UserIDPath == "" {
		cfg.UserIDPath = "id"
	}

	return &OAuth2Strategy{cfg: cfg, client: client}, nil
}

// Name returns the platform name.
func (s *OAuth2Strategy) Name() string {
	return s.cfg.Name
}

// oauthConfig assembles the x/oauth2 config for one flow.
func (s *OAuth2Strategy) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = s.cfg.Scopes
	}

	return &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  s.cfg.AuthURL,
			TokenURL: s.cfg.TokenURL,
		},
	}
}

// httpContext makes x/oauth2 use the strategy's HTTP client.
func (s *OAuth2Strategy) httpContext(ctx context.Context) context.Context {
	if s.client == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

// BuildAuthURL constructs the authorization URL, with an S256 code
// challenge when PKCE is enabled.
func (s *OAuth2Strategy) BuildAuthURL(_ context.Context, req AuthRequest) (string, string, error) {
	conf := s.oauthConfig(req.RedirectURI, req.Scopes)

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}

	verifier := ""
	if s.cfg.UsePKCE {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	return conf.AuthCodeURL(req.State, opts...), verifier, nil
}

// ExchangeCode swaps the authorization code for a token and resolves
// the platform user id from the userinfo endpoint.
func (s *OAuth2Strategy) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*ExchangeResult, error) {
	conf := s.oauthConfig(redirectURI, nil)
	ctx = s.httpContext(ctx)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, classify("exchanging code", err)
	}

	userID, err := s.fetchUserID(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	return &ExchangeResult{UserID: userID, Bundle: bundleFromToken(tok)}, nil
}

// Refresh exchanges the refresh secret for a new bundle.
func (s *OAuth2Strategy) Refresh(ctx context.Context, bundle vault.CredentialBundle) (*vault.CredentialBundle, error) {
	conf := s.oauthConfig("", nil)
	ctx = s.httpContext(ctx)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: bundle.Refresh}).Token()
	if err != nil {
		return nil, classify("refreshing token", err)
	}

	refreshed := bundleFromToken(tok)
	if refreshed.Refresh == "" {
		// Platforms that do not rotate refresh secrets omit them from
		// the refresh response; the old one stays valid.
		refreshed.Refresh = bundle.Refresh
	}

	return &refreshed, nil
}

// Revoke posts the access secret to the RFC 7009 revocation endpoint.
// Platforms without one make this a no-op.
func (s *OAuth2Strategy) Revoke(ctx context.Context, bundle vault.CredentialBundle) error {
	if s.cfg.RevokeURL == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", bundle.Access)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building revoke request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(s.cfg.ClientID), url.QueryEscape(s.cfg.ClientSecret))

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return fault.TransientNetwork("revoking token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke endpoint returned %s", resp.Status)
	}

	return nil
}

func (s *OAuth2Strategy) httpClient() *http.Client {
	if s.client != nil {
		return s.client
	}

	return http.DefaultClient
}

// fetchUserID calls the userinfo endpoint with the fresh access token
// and extracts the user id at the configured gjson path.
func (s *OAuth2Strategy) fetchUserID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UserInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("building userinfo request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", fault.TransientNetwork("fetching userinfo", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, userInfoMaxBody))
	if err != nil {
		return "", fault.TransientNetwork("reading userinfo response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fault.Unauthorized("userinfo rejected the access token", nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fault.TransientNetwork(fmt.Sprintf("userinfo returned %s", resp.Status), nil)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("userinfo returned %s", resp.Status)
	}

	id := gjson.GetBytes(body, s.cfg.UserIDPath)
	if !id.Exists() || id.String() == "" {
		return "", fault.CorruptCredential("userinfo response missing user id at "+s.cfg.UserIDPath, nil)
	}

	return id.String(), nil
}

// bundleFromToken maps an x/oauth2 token onto a credential bundle.
func bundleFromToken(tok *oauth2.Token) vault.CredentialBundle {
	bundle := vault.CredentialBundle{
		Access:  tok.AccessToken,
		Refresh: tok.RefreshToken,
		Scheme:  "oauth2",
	}

	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		bundle.ExpiresAt = &exp
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		bundle.Scope = scope
	}

	return bundle
}

// classify maps transport and token-endpoint failures onto the error
// taxonomy. invalid_grant and auth rejections mean the user must
// re-authenticate; rate limiting and server errors are retryable.
func classify(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}

		switch {
		case rerr.ErrorCode == "invalid_grant",
			status == http.StatusUnauthorized,
			status == http.StatusForbidden:
			return fault.Unauthorized(op+": platform rejected the grant", err)
		case status == http.StatusTooManyRequests, status >= 500:
			return fault.TransientNetwork(op+": platform unavailable", err)
		default:
			return fault.Unauthorized(op+": platform refused the request", err)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fault.TransientNetwork(op+": request cancelled", err)
	}

	return fault.TransientNetwork(op+": network failure", err)
}
