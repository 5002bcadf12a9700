package auth

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken("reviewer-1")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if claims.Reviewer != "reviewer-1" {
		t.Fatalf("expected reviewer-1, got %q", claims.Reviewer)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).GenerateToken("reviewer")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	if _, err := NewJWTManager("secret-b", time.Hour).ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestJWTExpired(t *testing.T) {
	token, err := NewJWTManager("secret", -time.Minute).GenerateToken("reviewer")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	if _, err := NewJWTManager("secret", -time.Minute).ValidateToken(token); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}

func TestVerifyAdminTokenPlain(t *testing.T) {
	if !VerifyAdminToken("shared-secret", "shared-secret") {
		t.Fatal("expected matching plain secrets to verify")
	}
	if VerifyAdminToken("shared-secret", "wrong") {
		t.Fatal("expected mismatched secrets to fail")
	}
	if VerifyAdminToken("", "") {
		t.Fatal("an empty configured credential must never verify")
	}
}

func TestVerifyAdminTokenHashed(t *testing.T) {
	hash, err := HashToken("shared-secret")
	if err != nil {
		t.Fatalf("HashToken returned error: %v", err)
	}

	if !VerifyAdminToken(hash, "shared-secret") {
		t.Fatal("expected the hashed credential to verify")
	}
	if VerifyAdminToken(hash, "wrong") {
		t.Fatal("expected a wrong credential to fail against the hash")
	}
}
