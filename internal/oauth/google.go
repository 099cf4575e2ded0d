package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"account-service/internal/config"
)

const (
	ProviderGoogle = "google"
	googleIssuer   = "https://accounts.google.com"
)

var ErrNoIDToken = errors.New("no id_token field in oauth2 token")

// Identity is what we keep from a verified ID token.
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

type GoogleProvider struct {
	*oidc.Provider
	oauth2.Config
}

func NewGoogleProvider(ctx context.Context, cfg config.OAuthConfig) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &GoogleProvider{
		Provider: provider,
		Config: oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

func (g *GoogleProvider) Name() string {
	return ProviderGoogle
}

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for tokens and verifies the
// returned ID token against the client id.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := g.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	idToken, err := g.Verifier(&oidc.Config{ClientID: g.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	var identity Identity
	if err := idToken.Claims(&identity); err != nil {
		return nil, errors.New("invalid id token")
	}
	return normalize(&identity)
}

func normalize(identity *Identity) (*Identity, error) {
	if identity.Subject == "" {
		return nil, errors.New("id token has no subject")
	}
	if identity.Email == "" {
		return nil, errors.New("id token has no email")
	}
	if identity.Name == "" {
		identity.Name = identity.Email
	}
	return identity, nil
}
