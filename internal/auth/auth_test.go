package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/clarioapp/clario/internal/models"
)

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider(map[string]Identity{
		"secret-token": {ID: "u1", DisplayName: "Maya"},
	})

	r := httptest.NewRequest("GET", "/api/assessment", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	identity, err := p.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.ID != "u1" || identity.DisplayName != "Maya" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestStaticTokenProviderRejects(t *testing.T) {
	p := NewStaticTokenProvider(map[string]Identity{"good": {ID: "u1"}})

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic Zm9vOmJhcg==",
		"unknown token":   "Bearer bad",
		"empty token":     "Bearer ",
		"bare token only": "good",
	}
	for name, header := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if _, err := p.Authenticate(r); !errors.Is(err, models.ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestTrustedHeaderProvider(t *testing.T) {
	p := NewTrustedHeaderProvider()

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderUserID, "u1")
	r.Header.Set(HeaderDisplayName, "Maya")
	identity, err := p.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.ID != "u1" || identity.DisplayName != "Maya" {
		t.Errorf("unexpected identity: %+v", identity)
	}

	r = httptest.NewRequest("GET", "/", nil)
	if _, err := p.Authenticate(r); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated without headers, got %v", err)
	}
}
