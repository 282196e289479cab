package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "user-123",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier(testSecret, "authenticated")
	ctx := context.Background()

	userID, err := v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	require.NoError(t, err)
	require.Equal(t, "user-123", userID)

	_, err = v.Verify(ctx, "")
	require.ErrorIs(t, err, ErrMissingCredential)

	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims()))
	require.Error(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired))
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	noExp := validClaims()
	noExp.ExpiresAt = nil
	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExp))
	require.Error(t, err)

	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"anon"}
	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud))
	require.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)

	noSub := validClaims()
	noSub.Subject = ""
	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSub))
	require.Error(t, err)

	_, err = v.Verify(ctx, signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()))
	require.Error(t, err, "only HS256 is accepted")
}

func TestJWTVerifierWithoutAudience(t *testing.T) {
	v := NewJWTVerifier(testSecret, "")
	claims := validClaims()
	claims.Audience = nil
	userID, err := v.Verify(context.Background(), signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims))
	require.NoError(t, err)
	require.Equal(t, "user-123", userID)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	require.Equal(t, "abc.def", BearerToken(r))

	r.Header.Set("Authorization", "bearer xyz")
	require.Equal(t, "xyz", BearerToken(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Empty(t, BearerToken(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/chat?access_token=qtoken", nil)
	require.Equal(t, "qtoken", BearerToken(r))
}

func TestSanitizeClientID(t *testing.T) {
	require.Equal(t, "tab-1", SanitizeClientID(" tab-1 "))
	require.Equal(t, "default", SanitizeClientID(""))
	require.Equal(t, "default", SanitizeClientID("../etc/passwd"))
}

func TestMiddleware(t *testing.T) {
	v := NewJWTVerifier(testSecret, "authenticated")
	var seen string
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "user-123", seen)

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Empty(t, seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	require.Empty(t, seen)
}
