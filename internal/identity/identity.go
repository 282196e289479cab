// Package identity resolves the calling user from a bearer credential.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenParam is the query parameter accepted when a client cannot
// set headers, e.g. a browser opening a websocket.
const AccessTokenParam = "access_token"

type contextKey int

const userIDKey contextKey = iota

// ErrMissingCredential is returned when the request carries no bearer token.
var ErrMissingCredential = errors.New("missing bearer credential")

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Verifier resolves a bearer credential to a user ID.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier verifies HS256 access tokens issued by the auth provider.
// The user ID is the token subject.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
// An empty audience disables the audience check.
func NewJWTVerifier(secret, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

// Verify validates token and returns its subject.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingCredential
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("verify token: subject claim is empty")
	}
	return claims.Subject, nil
}

// BearerToken extracts the credential from the Authorization header,
// falling back to the access_token query parameter.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(AccessTokenParam)
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SanitizeClientID returns id when it is a safe client identifier, or
// "default" otherwise.
func SanitizeClientID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !clientIDPattern.MatchString(id) {
		return "default"
	}
	return id
}

// Middleware attaches the verified user ID to the request context.
// Requests without a valid credential pass through anonymously; each
// handler decides how to reject them.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := v.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
