// Package auth manages user accounts and issues the access tokens that
// guard the API.
package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const minPasswordLength = 8

var (
	// ErrNotFound is returned when a user does not exist
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when an email is already registered
	ErrDuplicate = errors.New("email already registered")
	// ErrInvalidInput is returned for malformed account data
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned when email and password do not match
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned for a missing, malformed or expired token
	ErrInvalidToken = errors.New("invalid or expired token")
)

// User is an account holder
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail lowercases and validates an email address
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}
