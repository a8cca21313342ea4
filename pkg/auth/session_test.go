package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"rentalmgmt/pkg/domain"
)

func newTestService(t *testing.T, revoker TokenRevoker) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenServiceOptions{
		Secret:  "unit-test-secret",
		TTL:     time.Minute,
		Revoker: revoker,
	})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestIssueAndResolve(t *testing.T) {
	svc := newTestService(t, nil)
	user := domain.User{ID: 7, Username: "anna", Role: domain.RoleOwner}
	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "anna" || claims.Role != domain.RoleOwner {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenID == "" {
		t.Fatalf("expected token id")
	}
}

func TestResolveRejectsTamperedToken(t *testing.T) {
	svc := newTestService(t, nil)
	token, err := svc.Issue(domain.User{ID: 1, Username: "bob", Role: domain.RoleTenant})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Resolve(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got: %v", err)
	}
	if _, err := svc.Resolve(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for empty input, got: %v", err)
	}
}

func TestResolveRejectsWrongSecret(t *testing.T) {
	issuing := newTestService(t, nil)
	other, err := NewTokenService(TokenServiceOptions{Secret: "different-secret"})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	token, err := issuing.Issue(domain.User{ID: 2, Username: "carol", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Resolve(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got: %v", err)
	}
}

func TestRevokeBlocksToken(t *testing.T) {
	svc := newTestService(t, NewMemoryTokenRevoker())
	token, err := svc.Issue(domain.User{ID: 3, Username: "dora", Role: domain.RoleTenant})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.Revoke(claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Resolve(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token, got: %v", err)
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	redis := miniredis.RunT(t)
	revoker := NewRedisTokenRevoker(redis.Addr(), "")

	revoked, err := revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("expected token to start unrevoked")
	}
	if err := revoker.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to be revoked")
	}

	redis.FastForward(2 * time.Minute)
	revoked, err = revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("expected revocation to expire with the token")
	}
}
