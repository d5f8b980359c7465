package devserver

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestUserDirectory_Authenticate(t *testing.T) {
	dir, err := NewUserDirectory([]string{"Ana:secret", " bob:hunter2 ", ""}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dir.Len() != 2 {
		t.Fatalf("expected 2 users, got %d", dir.Len())
	}

	user, err := dir.Authenticate("ana", "secret")
	if err != nil {
		t.Fatalf("expected login ok, got %v", err)
	}
	again, _ := dir.Authenticate("ANA", "secret")
	if user.ID == "" || user.ID != again.ID {
		t.Fatalf("expected stable user id, got %q / %q", user.ID, again.ID)
	}
	if _, err := dir.Authenticate("ana", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := dir.Authenticate("nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNewUserDirectory_RejectsMalformedEntry(t *testing.T) {
	if _, err := NewUserDirectory([]string{"no-password"}, bcrypt.MinCost); !errors.Is(err, ErrInvalidUserEntry) {
		t.Fatalf("expected ErrInvalidUserEntry, got %v", err)
	}
}
