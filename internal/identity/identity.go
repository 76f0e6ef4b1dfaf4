// Package identity verifies the Bearer JWT carried by end-user requests
// and extracts the opaque user id spec.md §1 treats as given (spec.md §6.1
// identity boundary).
package identity

import (
	"fmt"
	"net/http"
	"strings"

	"docweave/internal/api"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderTokenHeader carries the end user's provider (GitHub) OAuth access
// token, kept separate from the identity JWT — the core never interprets
// its contents (spec.md §6.1).
const ProviderTokenHeader = "X-Provider-Token"

// Identity is the verified result of a request's bearer token: an opaque
// user id and, when present, the provider access token to use on the
// user's behalf.
type Identity struct {
	UserID        string
	ProviderToken string
}

// Verifier checks bearer tokens against a single HMAC secret
// (IDENTITY_PROVIDER_JWT_SECRET).
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier around secret. An empty secret means no
// request can ever be authenticated.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// FromRequest extracts and verifies the Authorization header's bearer
// token, returning the caller's Identity.
func (v *Verifier) FromRequest(r *http.Request) (Identity, error) {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return Identity{}, err
	}

	userID, err := v.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		UserID:        userID,
		ProviderToken: r.Header.Get(ProviderTokenHeader),
	}, nil
}

// Verify parses and validates tokenString, returning the "sub" claim.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if len(v.secret) == 0 {
		return "", api.New(api.KindConfigurationMissing, "identity provider secret is not configured")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return "", api.Wrap(api.KindUnauthorized, "invalid bearer token", err)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", api.New(api.KindUnauthorized, "bearer token is missing a sub claim")
	}
	return sub, nil
}

func bearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", api.New(api.KindUnauthorized, "missing Authorization: Bearer header")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", api.New(api.KindUnauthorized, "empty bearer token")
	}
	return token, nil
}
