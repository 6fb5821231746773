package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	gate := NewGate("test-secret")

	token, err := gate.Sign(Identity{UserID: "user-1", Email: "u@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}

	identity, err := gate.Verify(token)
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if identity.UserID != "user-1" {
		t.Fatalf("unexpected user id: %s", identity.UserID)
	}
	if identity.Email != "u@example.com" {
		t.Fatalf("unexpected email: %s", identity.Email)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	gate := NewGate("test-secret")

	if _, err := gate.Verify(""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	gate := NewGate("test-secret")

	token, err := gate.Sign(Identity{UserID: "user-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}

	if _, err := gate.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	gate := NewGate("test-secret")
	other := NewGate("other-secret")

	token, err := other.Sign(Identity{UserID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}

	if _, err := gate.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
