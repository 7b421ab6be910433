// Package auth exchanges the API credential pair for a bearer token using
// the OAuth2 client-credentials grant.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/eox-report/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credential is the client ID and secret of the registered API application.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// Token is the bearer token used for every lookup in a run.
// Expiry is recorded but not acted upon; runs are short and never refresh.
type Token struct {
	Value  string
	Type   string
	Expiry time.Time
}

// Header returns the Authorization header value for the token.
func (t Token) Header() string {
	typ := t.Type
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}

// ErrEmptyToken is returned when the identity endpoint answers without an access token.
var ErrEmptyToken = errors.New("identity endpoint returned an empty access token")

// AuthError means no token could be obtained. It is always fatal.
type AuthError struct {
	// StatusCode is the HTTP status of the token response, 0 when the endpoint was unreachable.
	StatusCode int
	// Code is the OAuth2 error code (e.g. invalid_client), if the endpoint sent one.
	Code string
	Err  error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("authentication failed (status %d, %s): %v", e.StatusCode, e.Code, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("authentication failed (status %d): %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticator performs the client-credentials grant.
type Authenticator struct {
	config     clientcredentials.Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates an Authenticator for the given token endpoint.
// A nil httpClient uses a client with a 30 second timeout.
func New(cred Credential, tokenURL string, httpClient *http.Client) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Authenticator{
		config: clientcredentials.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     tokenURL,
			// credentials travel in the form body, not basic auth
			AuthStyle: oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		logger:     logging.NewLogger("auth"),
	}
}

// Authenticate makes a single token request. There is no retry: a failure
// here aborts the run.
func (a *Authenticator) Authenticate(ctx context.Context) (Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	a.logger.Debug().Str("token_url", a.config.TokenURL).Msg("Requesting access token")

	tok, err := a.config.Token(ctx)
	if err != nil {
		aerr := &AuthError{Err: err}

		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			if rerr.Response != nil {
				aerr.StatusCode = rerr.Response.StatusCode
			}
			aerr.Code = rerr.ErrorCode
		}

		a.logger.Error().
			Int("status_code", aerr.StatusCode).
			Str("error_code", aerr.Code).
			Err(err).
			Msg("Token request failed")
		return Token{}, aerr
	}

	if tok.AccessToken == "" {
		return Token{}, &AuthError{Err: ErrEmptyToken}
	}

	a.logger.Debug().Time("expiry", tok.Expiry).Msg("Obtained access token")

	return Token{
		Value:  tok.AccessToken,
		Type:   tok.Type(),
		Expiry: tok.Expiry,
	}, nil
}
