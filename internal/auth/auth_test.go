package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	a := NewAuthenticator("test-secret", time.Hour)

	token, err := a.Mint("507f1f77bcf86cd799439011", "alice@example.com")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "507f1f77bcf86cd799439011" {
		t.Errorf("subject = %q, want user ID", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", claims.Email)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	a := NewAuthenticator("secret-a", time.Hour)
	b := NewAuthenticator("secret-b", time.Hour)

	token, err := a.Mint("507f1f77bcf86cd799439011", "alice@example.com")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := b.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify with wrong secret: err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	a := NewAuthenticator("test-secret", -time.Minute)

	token, err := a.Mint("507f1f77bcf86cd799439011", "alice@example.com")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := a.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify of expired token: err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	a := NewAuthenticator("test-secret", time.Hour)
	if _, err := a.Verify("not.a.token"); err != ErrInvalidToken {
		t.Errorf("Verify of garbage: err = %v, want ErrInvalidToken", err)
	}
}

func TestRequireAuth(t *testing.T) {
	a := NewAuthenticator("test-secret", time.Hour)

	var gotUserID string
	handler := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No cookie: 401.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", rec.Code)
	}

	// Invalid cookie: 403.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "bogus"})
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("invalid cookie: status = %d, want 403", rec.Code)
	}

	// Valid cookie: 200 with user ID in context.
	token, err := a.Mint("507f1f77bcf86cd799439011", "alice@example.com")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid cookie: status = %d, want 200", rec.Code)
	}
	if gotUserID != "507f1f77bcf86cd799439011" {
		t.Errorf("UserID in context = %q, want the token subject", gotUserID)
	}
}

func TestPasswordHashCompare(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash equals plaintext")
	}

	if err := ComparePassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("ComparePassword with correct password: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err != ErrPasswordMismatch {
		t.Errorf("ComparePassword with wrong password: err = %v, want ErrPasswordMismatch", err)
	}
}
