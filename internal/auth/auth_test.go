package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	u := &models.User{ID: "u-1", Username: "alice", Role: models.RoleAdmin}

	tok, err := svc.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.UserID != "u-1" || c.Username != "alice" || c.Role != models.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", c)
	}
	if c.Expires.IsZero() {
		t.Fatalf("expected expiry to be set")
	}
}

func TestIssue_MissingUser(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	if _, err := svc.Issue(nil); err == nil {
		t.Fatalf("expected error for nil user")
	}
	if _, err := svc.Issue(&models.User{Username: "x"}); err == nil {
		t.Fatalf("expected error for user without id")
	}
}

func TestVerify_Rejects(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	u := &models.User{ID: "u-1", Username: "alice", Role: models.RoleUser}

	otherKey, _ := NewTokenService("other", time.Hour).Issue(u)

	expiredSvc := NewTokenService("secret", time.Hour)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredSvc.Issue(u)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "u-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "Garbage", token: "not-a-token"},
		{name: "Empty", token: ""},
		{name: "WrongKey", token: otherKey},
		{name: "Expired", token: expired},
		{name: "AlgNone", token: none},
		{name: "MissingUserID", token: noUser},
		{name: "MissingExpiry", token: noExp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatalf("hash must not equal the password")
	}
	if !CheckPassword("s3cret!", hash) {
		t.Fatalf("expected password to match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected wrong password to fail")
	}
	if CheckPassword("s3cret!", "not-a-hash") {
		t.Fatalf("expected malformed digest to fail")
	}
}
