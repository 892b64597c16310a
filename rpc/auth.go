package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"treasuryvault/crypto"
)

type contextKey string

const contextKeyCaller contextKey = "treasury_caller"

// Authenticator verifies the bearer JWT on every request and extracts the
// caller's treasury address from its subject claim (SPEC_FULL.md §3.2).
// The engine itself never sees a token, only the decoded crypto.Address
// this middleware attaches to the request context.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator constructs an HS256 authenticator bound to secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

var errMissingBearer = errors.New("rpc: missing bearer token")

func (a *Authenticator) parse(r *http.Request) (crypto.Address, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return crypto.Address{}, errMissingBearer
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("rpc: unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return crypto.Address{}, err
	}
	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return crypto.Address{}, errors.New("rpc: token missing subject claim")
	}
	return crypto.DecodeAddress(subject)
}

// Middleware authenticates the request and stores the resolved caller
// address in its context, rejecting with 401 on any failure.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.parse(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFromContext returns the authenticated caller address attached by
// Middleware. ok is false when the request did not pass through Middleware,
// as on a Server built without an Authenticator.
func CallerFromContext(ctx context.Context) (crypto.Address, bool) {
	addr, ok := ctx.Value(contextKeyCaller).(crypto.Address)
	return addr, ok
}

// IssueToken mints an HS256 JWT whose subject is addr's bech32 string.
// Used by cmd/treasuryctl to produce local test tokens and by any
// operator-facing admin console authenticating against the same secret.
func IssueToken(secret []byte, addr crypto.Address, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = addr.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
