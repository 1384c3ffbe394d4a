// Package auth resolves the authenticated user identity for API requests.
//
// The engine never trusts a caller-supplied user id in a request body; every
// state operation is keyed by the identity the provider resolves from the
// request itself.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clarioapp/clario/internal/models"
)

// Identity is an authenticated caller.
type Identity struct {
	// ID keys all assessment state for this caller.
	ID string
	// DisplayName is optional and only used to personalize replies.
	DisplayName string
}

// Provider resolves the identity behind an HTTP request. Implementations
// return models.ErrUnauthenticated when no valid identity is present.
type Provider interface {
	Authenticate(r *http.Request) (Identity, error)
}

// StaticTokenProvider authenticates requests by bearer token against a fixed
// token-to-identity table. Suitable for service-to-service deployments where
// an upstream gateway issues the tokens.
type StaticTokenProvider struct {
	identities map[string]Identity
}

// NewStaticTokenProvider builds a provider from a token-to-identity table.
func NewStaticTokenProvider(identities map[string]Identity) *StaticTokenProvider {
	table := make(map[string]Identity, len(identities))
	for token, id := range identities {
		table[token] = id
	}
	return &StaticTokenProvider{identities: table}
}

// Authenticate resolves the identity for the request's bearer token.
func (p *StaticTokenProvider) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, fmt.Errorf("missing Authorization header: %w", models.ErrUnauthenticated)
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return Identity{}, fmt.Errorf("malformed Authorization header: %w", models.ErrUnauthenticated)
	}
	identity, ok := p.identities[token]
	if !ok {
		slog.Warn("StaticTokenProvider.Authenticate: unknown token presented")
		return Identity{}, fmt.Errorf("unknown token: %w", models.ErrUnauthenticated)
	}
	return identity, nil
}

// Trusted header names set by an authenticating reverse proxy.
const (
	HeaderUserID      = "X-Auth-User"
	HeaderDisplayName = "X-Auth-Name"
)

// TrustedHeaderProvider trusts identity headers injected by a fronting proxy
// that has already authenticated the caller. It must never be exposed
// directly to the public network.
type TrustedHeaderProvider struct{}

// NewTrustedHeaderProvider creates a trusted-header provider.
func NewTrustedHeaderProvider() *TrustedHeaderProvider {
	return &TrustedHeaderProvider{}
}

// Authenticate reads the proxy-injected identity headers.
func (p *TrustedHeaderProvider) Authenticate(r *http.Request) (Identity, error) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return Identity{}, fmt.Errorf("missing %s header: %w", HeaderUserID, models.ErrUnauthenticated)
	}
	return Identity{ID: userID, DisplayName: r.Header.Get(HeaderDisplayName)}, nil
}
