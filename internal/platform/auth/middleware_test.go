package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return s
}

func run(mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := run(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, err := run(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "nurse-7",
			Issuer:    "medicai",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"nurse"},
	}, testSigningKey)

	c, err := run(JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "medicai"}), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "nurse-7" {
		t.Errorf("expected nurse-7, got %q", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "nurse" {
		t.Errorf("unexpected roles %v", roles)
	}
	if c.Get("user_id") != "nurse-7" {
		t.Errorf("expected user_id on echo context")
	}
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	expired := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}, testSigningKey)
	wrongKey := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, []byte("other"))
	wrongIssuer := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "evil"}}, testSigningKey)

	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "medicai"})
	for name, tok := range map[string]string{"expired": expired, "wrong key": wrongKey, "wrong issuer": wrongIssuer} {
		t.Run(name, func(t *testing.T) {
			_, err := run(mw, "Bearer "+tok)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(priv.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "device-1"},
		Roles:            []string{"device"},
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	c, err := run(JWTMiddleware(JWTConfig{JWKSURL: srv.URL}), "Bearer "+signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(c.Request().Context()) != "device-1" {
		t.Errorf("expected device-1 subject")
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	c, err := run(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("expected admin role, got %v", roles)
	}
}

func TestDevAuthMiddleware_ValidatesPresentedToken(t *testing.T) {
	_, err := run(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer garbage")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestFromContext_Empty(t *testing.T) {
	if UserIDFromContext(context.Background()) != "" || RolesFromContext(context.Background()) != nil {
		t.Error("expected zero values from empty context")
	}
}
