// Package federation exchanges OAuth authorization codes with identity providers and reads the
// account email back.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"identity-service/internal/apperror"
)

// LinkedIn endpoints used when none are configured.
const (
	DefaultLinkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	DefaultLinkedInEmailURL = "https://api.linkedin.com/v2/emailAddress?q=members&projection=(elements*(handle~))"
)

const (
	defaultTimeout = 5 * time.Second
	maxRedirects   = 5
	maxBodyBytes   = 1 << 20
)

// ErrFederationProvider is returned when the provider exchange or profile call fails.
var ErrFederationProvider = apperror.New(apperror.KindFederationProvider, "Federation provider request failed")

// ExchangeParams are the caller-supplied values of an authorization code exchange.
type ExchangeParams struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
}

// LinkedInClient resolves a LinkedIn authorization code to the member's primary email.
type LinkedInClient struct {
	tokenURL   string
	emailURL   string
	httpClient *http.Client
}

// NewLinkedInClient returns a client for the given endpoints. Empty URLs select the LinkedIn
// defaults; timeout <= 0 selects 5s. Redirects are followed at most five times.
func NewLinkedInClient(tokenURL, emailURL string, timeout time.Duration) *LinkedInClient {
	if tokenURL == "" {
		tokenURL = DefaultLinkedInTokenURL
	}
	if emailURL == "" {
		emailURL = DefaultLinkedInEmailURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &LinkedInClient{
		tokenURL: tokenURL,
		emailURL: emailURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// PrimaryEmail exchanges the authorization code for an access token and returns the email of
// the authorizing member. Any provider failure is reported as ErrFederationProvider.
func (c *LinkedInClient) PrimaryEmail(ctx context.Context, p ExchangeParams) (string, error) {
	accessToken, err := c.exchange(ctx, p)
	if err != nil {
		return "", apperror.Wrap(apperror.KindFederationProvider, ErrFederationProvider.Message, err)
	}
	email, err := c.fetchEmail(ctx, accessToken)
	if err != nil {
		return "", apperror.Wrap(apperror.KindFederationProvider, ErrFederationProvider.Message, err)
	}
	return email, nil
}

func (c *LinkedInClient) exchange(ctx context.Context, p ExchangeParams) (string, error) {
	cfg := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	var opts []oauth2.AuthCodeOption
	if p.GrantType != "" {
		opts = append(opts, oauth2.SetAuthURLParam("grant_type", p.GrantType))
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.Exchange(ctx, p.Code, opts...)
	if err != nil {
		return "", fmt.Errorf("linkedin token exchange: %w", err)
	}
	return tok.AccessToken, nil
}

type emailResponse struct {
	Elements []struct {
		Handle struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"handle~"`
	} `json:"elements"`
}

func (c *LinkedInClient) fetchEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.emailURL, nil)
	if err != nil {
		return "", fmt.Errorf("linkedin email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin email request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("linkedin email response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("linkedin email request: status %d", resp.StatusCode)
	}
	var out emailResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("linkedin email response: %w", err)
	}
	if len(out.Elements) == 0 {
		return "", errors.New("linkedin email response: no elements")
	}
	email := strings.TrimSpace(out.Elements[0].Handle.EmailAddress)
	if email == "" {
		return "", errors.New("linkedin email response: empty email")
	}
	return email, nil
}
