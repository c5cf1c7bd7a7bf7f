package auth

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash format = %q, want $argon2id$ prefix", hash[:20])
	}

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = VerifyPassword(hash, "wrong password")
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("empty password accepted")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	ok, err := VerifyPassword("not-a-real-hash", "anything")
	if err != nil {
		t.Fatalf("verify malformed: %v", err)
	}
	if ok {
		t.Error("malformed hash verified")
	}
}

func testTokenService(t *testing.T, duration time.Duration) *TokenService {
	t.Helper()
	keyHex := hex.EncodeToString(make([]byte, 32))
	svc, err := NewTokenService(keyHex, duration)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testTokenService(t, time.Hour)
	user := &domain.User{ID: "user-abc", Role: domain.RoleLibrarian}

	token, err := svc.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-abc" {
		t.Errorf("user_id = %q, want user-abc", claims.UserID)
	}
	if claims.Role != string(domain.RoleLibrarian) {
		t.Errorf("role = %q, want librarian", claims.Role)
	}
	if claims.Subject != "user-abc" {
		t.Errorf("sub = %q, want user-abc", claims.Subject)
	}
}

func TestTokenExpired(t *testing.T) {
	svc := testTokenService(t, -time.Minute)
	user := &domain.User{ID: "user-abc", Role: domain.RoleMember}

	token, err := svc.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.VerifyAccessToken(token); err == nil {
		t.Error("expired token verified")
	}
}

func TestTokenGarbage(t *testing.T) {
	svc := testTokenService(t, time.Hour)
	if _, err := svc.VerifyAccessToken("v4.local.garbage"); err == nil {
		t.Error("garbage token verified")
	}
}

func TestNewTokenServiceBadKey(t *testing.T) {
	if _, err := NewTokenService("short", time.Hour); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewTokenService(strings.Repeat("zz", 32), time.Hour); err == nil {
		t.Error("non-hex key accepted")
	}
}
