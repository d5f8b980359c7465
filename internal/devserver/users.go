package devserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUserEntry   = errors.New("invalid user entry")
)

// User es una cuenta del backend de desarrollo.
type User struct {
	ID           string
	Username     string
	passwordHash []byte
}

// UserDirectory guarda las cuentas configuradas con su hash bcrypt.
type UserDirectory struct {
	users map[string]User
}

// NewUserDirectory parsea entradas "usuario:clave". cost 0 usa bcrypt.DefaultCost.
func NewUserDirectory(entries []string, cost int) (*UserDirectory, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dir := &UserDirectory{users: make(map[string]User, len(entries))}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, password, ok := strings.Cut(entry, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUserEntry, entry)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		dir.users[name] = User{
			ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte("chat-devserver:"+name)).String(),
			Username:     name,
			passwordHash: hash,
		}
	}
	return dir, nil
}

func (d *UserDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.users)
}

// Authenticate compara la clave contra el hash guardado.
func (d *UserDirectory) Authenticate(username, password string) (User, error) {
	if d == nil {
		return User{}, ErrInvalidCredentials
	}
	user, ok := d.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
