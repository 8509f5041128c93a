package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	token, claims, err := GenerateToken("secret", time.Hour, "user-1", PurposeAccess, time.Now())
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if claims.TokenID() == "" {
		t.Fatalf("missing token id")
	}

	parsed, err := ParseToken("secret", token, PurposeAccess)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if parsed.UserID != "user-1" || parsed.TokenID() != claims.TokenID() {
		t.Fatalf("parsed claims = %+v", parsed)
	}
}

func TestParseRejects(t *testing.T) {
	valid, _, err := GenerateToken("secret", time.Hour, "user-1", PurposeConfirm, time.Now())
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	expired, _, err := GenerateToken("secret", time.Minute, "user-1", PurposeAccess, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := ParseToken("secret", valid, PurposeAccess); !errors.Is(err, ErrWrongPurpose) {
		t.Fatalf("wrong purpose error = %v", err)
	}
	if _, err := ParseToken("other", valid, PurposeConfirm); err == nil {
		t.Fatalf("wrong secret accepted")
	}
	if _, err := ParseToken("secret", expired, PurposeAccess); err == nil {
		t.Fatalf("expired token accepted")
	}
}
