package auth

import (
	"errors"
	"testing"
	"time"
)

var secret = []byte("test-secret")

func TestIssueAndParseToken(t *testing.T) {
	id := Identity{
		UserID:   "usr_1",
		Email:    "kim@example.com",
		FullName: "Kim Ortiz",
		Role:     "admin",
		JTI:      "jti-1",
	}

	raw, err := IssueToken(secret, id, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parsed, err := ParseToken(secret, raw)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.UserID != id.UserID || parsed.Email != id.Email || parsed.FullName != id.FullName {
		t.Fatalf("identity mismatch: %+v", parsed)
	}
	if parsed.Role != "admin" || parsed.JTI != "jti-1" {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
	if parsed.Expires.Before(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	raw, err := IssueToken(secret, Identity{UserID: "usr_1", JTI: "jti-1"}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	raw, err := IssueToken(secret, Identity{UserID: "usr_1", JTI: "jti-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(secret, raw); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken(secret, "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHashTokenStable(t *testing.T) {
	a := HashToken("refresh-token")
	b := HashToken("refresh-token")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == HashToken("other") {
		t.Fatal("distinct tokens must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}
