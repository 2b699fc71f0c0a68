package core

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// Auth schemes accepted on the HTTP surface.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

// authFloor is the minimum time a credential check takes, so failures and
// successes are indistinguishable by latency.
const authFloor = time.Millisecond

var weakTokenFragments = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "qwerty", "letmein",
}

// SecureCompareString compares a and b in constant time.
func SecureCompareString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken rejects empty, short or guessable secrets.
func ValidateAuthToken(token string) error {
	switch {
	case token == "":
		return NewError(ErrEmptyParameter, "Authentication token cannot be empty").
			WithGuidance("Set --auth-token or ECOROUTE_AUTH_TOKEN.")
	case len(token) < 16:
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lower := strings.ToLower(token)
	for _, weak := range weakTokenFragments {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated token.")
		}
	}
	return nil
}

// AuthResult is the outcome of one credential check.
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// Authenticator checks request credentials for one scheme. For basic auth
// the secret is "user:password".
type Authenticator struct {
	scheme string
	secret string
}

// NewAuthenticator returns an authenticator for scheme. An empty scheme is
// treated as AuthNone.
func NewAuthenticator(scheme, secret string) *Authenticator {
	if scheme == "" {
		scheme = AuthNone
	}
	return &Authenticator{scheme: scheme, secret: secret}
}

// Scheme returns the configured scheme.
func (a *Authenticator) Scheme() string { return a.scheme }

// Required reports whether requests must carry credentials.
func (a *Authenticator) Required() bool { return a.scheme != AuthNone }

// Challenge is the WWW-Authenticate value sent with a 401.
func (a *Authenticator) Challenge() string {
	if a.scheme == AuthBasic {
		return `Basic realm="ecoroute"`
	}
	return `Bearer realm="ecoroute"`
}

// Check authenticates r.
func (a *Authenticator) Check(r *http.Request) AuthResult {
	start := time.Now()
	res := a.check(r)
	if d := time.Since(start); d < authFloor {
		time.Sleep(authFloor - d)
	}
	res.Duration = time.Since(start)
	return res
}

func (a *Authenticator) check(r *http.Request) AuthResult {
	switch a.scheme {
	case AuthNone:
		return AuthResult{Authorized: true}

	case AuthBearer:
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return AuthResult{Error: "missing or malformed bearer token"}
		}
		if !SecureCompareString(token, a.secret) {
			return AuthResult{Error: "invalid bearer token"}
		}
		return AuthResult{Authorized: true}

	case AuthBasic:
		user, pass, ok := r.BasicAuth()
		if !ok || user == "" || pass == "" {
			return AuthResult{Error: "missing basic auth credentials"}
		}
		if !SecureCompareString(user+":"+pass, a.secret) {
			return AuthResult{Error: "invalid basic auth credentials"}
		}
		return AuthResult{Authorized: true}

	default:
		return AuthResult{Error: "unknown auth scheme " + a.scheme}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
