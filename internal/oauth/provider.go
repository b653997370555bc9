// Package oauth exchanges authorization codes with external identity
// providers and turns the result into a service.ExternalIdentity.
package oauth

import (
	"errors"
	"strings"

	"github.com/AhmadIb227/syria-gpt/internal/service"
)

var (
	ErrMissingIDToken     = errors.New("oauth: token response has no id_token")
	ErrMissingAccessToken = errors.New("oauth: token response has no access_token")
)

// Credentials are the client settings of one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// Providers builds the providers whose credentials are configured.
func Providers(google Credentials, facebook Credentials) []service.IdentityProvider {
	var providers []service.IdentityProvider
	if google.Configured() {
		providers = append(providers, NewGoogleProvider(google))
	}
	if facebook.Configured() {
		providers = append(providers, NewFacebookProvider(facebook))
	}
	return providers
}

func claimString(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func claimBool(claims map[string]any, key string) bool {
	switch value := claims[key].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(value, "true")
	}
	return false
}
