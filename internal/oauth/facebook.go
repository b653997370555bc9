package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/service"

	"golang.org/x/oauth2"
)

const (
	facebookAuthURL  = "https://www.facebook.com/v21.0/dialog/oauth"
	facebookTokenURL = "https://graph.facebook.com/v21.0/oauth/access_token"
	facebookGraphURL = "https://graph.facebook.com/me"
)

type FacebookProvider struct {
	Config   *oauth2.Config
	GraphURL string
}

func NewFacebookProvider(creds Credentials) *FacebookProvider {
	return &FacebookProvider{
		Config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   facebookAuthURL,
				TokenURL:  facebookTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		GraphURL: facebookGraphURL,
	}
}

func (p *FacebookProvider) Name() entity.Provider {
	return entity.ProviderFacebook
}

func (p *FacebookProvider) AuthorizationURL(state string) string {
	return p.Config.AuthCodeURL(state)
}

type facebookProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Verified  bool   `json:"verified"`
}

func (p *FacebookProvider) Exchange(ctx context.Context, code string) (*service.ExternalIdentity, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("facebook exchange: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	endpoint, err := url.Parse(p.GraphURL)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("fields", "id,email,first_name,last_name,verified")
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	response, err := p.Config.Client(ctx, token).Do(request)
	if err != nil {
		return nil, fmt.Errorf("facebook profile: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook profile: status %d", response.StatusCode)
	}

	var profile facebookProfile
	if err := json.NewDecoder(response.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("facebook profile: %w", err)
	}
	return &service.ExternalIdentity{
		Provider:      entity.ProviderFacebook,
		ProviderID:    profile.ID,
		Email:         profile.Email,
		EmailVerified: profile.Verified,
		GivenName:     profile.FirstName,
		FamilyName:    profile.LastName,
	}, nil
}
