package oauth

import (
	"context"
	"fmt"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/service"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

type GoogleProvider struct {
	Config *oauth2.Config
	// Validate checks the ID token signature and audience.
	Validate func(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

func NewGoogleProvider(creds Credentials) *GoogleProvider {
	return &GoogleProvider{
		Config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Validate: idtoken.Validate,
	}
}

func (p *GoogleProvider) Name() entity.Provider {
	return entity.ProviderGoogle
}

func (p *GoogleProvider) AuthorizationURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*service.ExternalIdentity, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google exchange: %w", err)
	}
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return nil, ErrMissingIDToken
	}

	payload, err := p.Validate(ctx, raw, p.Config.ClientID)
	if err != nil {
		return nil, fmt.Errorf("google id token: %w", err)
	}

	subject := payload.Subject
	if subject == "" {
		subject = claimString(payload.Claims, "sub")
	}
	return &service.ExternalIdentity{
		Provider:      entity.ProviderGoogle,
		ProviderID:    subject,
		Email:         claimString(payload.Claims, "email"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
		GivenName:     claimString(payload.Claims, "given_name"),
		FamilyName:    claimString(payload.Claims, "family_name"),
	}, nil
}
