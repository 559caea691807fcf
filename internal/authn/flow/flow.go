// Package flow drives a single provider login attempt through its state
// machine: Idle -> AuthorizationRequested -> CallbackReceived ->
// TokenValidated (or Failed). An attempt owns its own key pair and nonce, so
// no locking is needed; concurrent logins each get their own Attempt.
package flow

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// State names the phases of a login attempt.
type State string

const (
	StateIdle                   State = "idle"
	StateAuthorizationRequested State = "authorization_requested"
	StateCallbackReceived       State = "callback_received"
	StateTokenValidated         State = "token_validated"
	StateFailed                 State = "failed"
)

var (
	// ErrNonceMismatch means the token's embedded nonce does not equal the
	// nonce of this attempt's key pair. Possible tampering or a stale
	// redirect; the attempt is dead and a fresh key pair is required.
	ErrNonceMismatch = errors.New("flow: nonce mismatch")

	// ErrProviderDenied covers provider-side failures: user denied consent,
	// an explicit error redirect, or a redirect with no identity token.
	ErrProviderDenied = errors.New("flow: provider error")

	// ErrMalformedToken means the redirect carried something that does not
	// parse as a compact JWT.
	ErrMalformedToken = errors.New("flow: malformed identity token")

	// ErrInvalidState reports an operation called out of order, e.g. a
	// callback before an authorization URL was built.
	ErrInvalidState = errors.New("flow: invalid state transition")
)

// Attempt is one in-flight login. It is owned by a single caller; it is not
// safe for concurrent use and does not need to be.
type Attempt struct {
	ID       idx.ID
	Provider domain.ProviderConfig
	Network  domain.Network
	KeyPair  domain.EphemeralKeyPair
	Nonce    string

	RedirectURI string

	state State
}

// NewAttempt starts an attempt in the Idle state.
func NewAttempt(cfg domain.ProviderConfig, network domain.Network, kp domain.EphemeralKeyPair, nonce, redirectURI string) *Attempt {
	return &Attempt{
		ID:          idx.New(),
		Provider:    cfg,
		Network:     network,
		KeyPair:     kp,
		Nonce:       nonce,
		RedirectURI: redirectURI,
		state:       StateIdle,
	}
}

// State returns the attempt's current phase.
func (a *Attempt) State() State { return a.state }

func (a *Attempt) fail() {
	a.state = StateFailed
}

// BuildAuthorizationURL constructs the provider authorization request with
// the attempt nonce embedded. Pure construction; nothing is sent.
func (a *Attempt) BuildAuthorizationURL() (string, error) {
	if a.state != StateIdle {
		return "", fmt.Errorf("%w: build from %q", ErrInvalidState, a.state)
	}

	clientID := os.Getenv(a.Provider.ClientIDEnvKey)
	if clientID == "" {
		return "", fmt.Errorf("flow: %s is not set for provider %q", a.Provider.ClientIDEnvKey, a.Provider.ID)
	}

	conf := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: a.RedirectURI,
		Scopes:      []string{"openid"},
		Endpoint: oauth2.Endpoint{
			AuthURL: a.Provider.AuthorizationEndpoint,
		},
	}

	// The implicit variant returns the id_token directly on the redirect.
	// The attempt ULID doubles as the OAuth state parameter.
	authURL := conf.AuthCodeURL(a.ID.String(),
		oauth2.SetAuthURLParam("response_type", "id_token"),
		oauth2.SetAuthURLParam("nonce", a.Nonce),
	)

	a.state = StateAuthorizationRequested
	return authURL, nil
}

// HandleCallback parses the provider's redirect, extracts the identity token
// and verifies its embedded nonce equals expectedNonce. Both failure modes
// are terminal for the attempt: the caller must restart from a fresh key
// pair. The token signature is NOT checked here; that is the proving
// service's job.
func (a *Attempt) HandleCallback(rawRedirectURL, expectedNonce string) (domain.IdentityToken, error) {
	if a.state != StateAuthorizationRequested {
		return domain.IdentityToken{}, fmt.Errorf("%w: callback from %q", ErrInvalidState, a.state)
	}
	a.state = StateCallbackReceived

	params, err := redirectParams(rawRedirectURL)
	if err != nil {
		a.fail()
		return domain.IdentityToken{}, fmt.Errorf("%w: %v", ErrProviderDenied, err)
	}

	if errCode := params.Get("error"); errCode != "" {
		a.fail()
		return domain.IdentityToken{}, fmt.Errorf("%w: %s: %s",
			ErrProviderDenied, errCode, params.Get("error_description"))
	}

	raw := params.Get("id_token")
	if raw == "" {
		a.fail()
		return domain.IdentityToken{}, fmt.Errorf("%w: redirect carries no id_token", ErrProviderDenied)
	}

	token, err := parseIdentityToken(raw, a.Provider.KeyClaimName)
	if err != nil {
		a.fail()
		return domain.IdentityToken{}, err
	}

	if token.Nonce != expectedNonce {
		a.fail()
		return domain.IdentityToken{}, fmt.Errorf("%w: token nonce %q", ErrNonceMismatch, token.Nonce)
	}

	a.state = StateTokenValidated
	return token, nil
}

// redirectParams merges query and fragment parameters. Providers using the
// implicit variant return the token in the fragment; error redirects often
// use the query string.
func redirectParams(rawRedirectURL string) (url.Values, error) {
	u, err := url.Parse(rawRedirectURL)
	if err != nil {
		return nil, err
	}

	params := u.Query()

	if u.Fragment != "" {
		frag, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, err
		}
		for key, vals := range frag {
			for _, v := range vals {
				params.Add(key, v)
			}
		}
	}

	return params, nil
}

// parseIdentityToken decodes the compact JWT without verifying its
// signature and pulls out the claims the rest of the pipeline needs.
func parseIdentityToken(raw, keyClaimName string) (domain.IdentityToken, error) {
	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return domain.IdentityToken{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	issuer, _ := claims.GetIssuer()
	subject, _ := claims.GetSubject()
	audience, _ := claims.GetAudience()
	nonce, _ := claims["nonce"].(string)
	kid, _ := token.Header["kid"].(string)

	aud := ""
	if len(audience) > 0 {
		aud = audience[0]
	}

	keyClaimValue, _ := claims[keyClaimName].(string)
	if keyClaimValue == "" {
		return domain.IdentityToken{}, fmt.Errorf("%w: missing %q claim", ErrMalformedToken, keyClaimName)
	}

	return domain.IdentityToken{
		Raw:           raw,
		Issuer:        issuer,
		Audience:      aud,
		Subject:       subject,
		KeyClaimValue: keyClaimValue,
		Nonce:         nonce,
		Kid:           kid,
	}, nil
}
