package trello

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-trellolink/core"
)

const DefaultAuthorizeURL = "https://trello.com/1/authorize"

type AuthorizeURLBuilder struct {
	BaseURL     string
	APIKey      string
	AppName     string
	Scope       string
	Expiration  string
	RedirectURI string
}

func NewAuthorizeURLBuilder(cfg core.TrelloConfig) *AuthorizeURLBuilder {
	return &AuthorizeURLBuilder{
		BaseURL:     cfg.AuthorizeURL,
		APIKey:      cfg.APIKey,
		AppName:     cfg.AppName,
		Scope:       cfg.Scope,
		Expiration:  cfg.Expiration,
		RedirectURI: cfg.RedirectURI,
	}
}

// AuthorizeURL returns the Trello consent page address. Trello sends the
// user back to RedirectURI with the state in the query and the token in the
// fragment.
func (b *AuthorizeURLBuilder) AuthorizeURL(state string) (string, error) {
	if b == nil {
		return "", fmt.Errorf("trello: authorize url builder is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return "", core.InvalidRequestError("state is required")
	}
	if strings.TrimSpace(b.APIKey) == "" {
		return "", fmt.Errorf("trello: api key is required")
	}

	returnURL, err := url.Parse(strings.TrimSpace(b.RedirectURI))
	if err != nil || returnURL.Scheme == "" || returnURL.Host == "" {
		return "", fmt.Errorf("trello: invalid redirect uri %q", b.RedirectURI)
	}
	returnQuery := returnURL.Query()
	returnQuery.Set("state", state)
	returnURL.RawQuery = returnQuery.Encode()

	base := strings.TrimSpace(b.BaseURL)
	if base == "" {
		base = DefaultAuthorizeURL
	}
	authorizeURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("trello: invalid authorize url: %w", err)
	}

	query := authorizeURL.Query()
	query.Set("expiration", valueOr(b.Expiration, "never"))
	query.Set("name", valueOr(b.AppName, "Trello Dashboard"))
	query.Set("scope", valueOr(b.Scope, "read,write"))
	query.Set("response_type", "token")
	query.Set("key", strings.TrimSpace(b.APIKey))
	query.Set("return_url", returnURL.String())
	authorizeURL.RawQuery = query.Encode()
	return authorizeURL.String(), nil
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

var _ core.AuthorizeURLBuilder = (*AuthorizeURLBuilder)(nil)
