package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestLogin(t *testing.T) {
	a, err := New("test", "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name     string
		user     string
		password string
		want     error
	}{
		{"ok", "test", "test", nil},
		{"wrong password", "test", "nope", ErrInvalidCredentials},
		{"wrong user", "admin", "test", ErrInvalidCredentials},
		{"empty user", "", "test", ErrMissingFields},
		{"empty password", "test", "", ErrMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.Login(tt.user, tt.password); !errors.Is(err, tt.want) {
				t.Fatalf("Login() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewFromHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewFromHash("omni", string(hash))
	if err != nil {
		t.Fatalf("NewFromHash: %v", err)
	}
	if err := a.Login("omni", "s3cret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := NewFromHash("omni", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
	if _, err := New("", "x"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("New with empty user = %v", err)
	}
}
