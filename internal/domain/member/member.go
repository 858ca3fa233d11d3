// Package member holds store members and their credential checks.
package member

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when no member has the requested email.
	ErrNotFound = errors.New("member not found")
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Member is an authenticated store customer.
type Member struct {
	ID           int64
	Email        string
	PasswordHash string
}

// Repository looks members up for authentication.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Member, error)
}

// Authenticator verifies member credentials against stored bcrypt hashes.
type Authenticator struct {
	repo Repository
}

// NewAuthenticator returns an Authenticator backed by repo.
func NewAuthenticator(repo Repository) *Authenticator {
	return &Authenticator{repo: repo}
}

// Authenticate returns the member owning email if password matches. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	m, err := a.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find member")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return m, nil
}

// HashPassword returns the bcrypt hash stored for a plain password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}
