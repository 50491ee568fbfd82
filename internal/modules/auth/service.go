package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence the service needs
type UserStore interface {
	Create(email, name, passwordHash string) (*User, error)
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	UpdateProfile(id, email, name string) error
	UpdatePassword(id, passwordHash string) error
}

// Service registers users, checks credentials and issues HS256 access tokens
type Service struct {
	users      UserStore
	secret     []byte
	expiry     time.Duration
	bcryptCost int
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a new auth service
func NewService(users UserStore, secret string, expiry time.Duration, log zerolog.Logger) *Service {
	return &Service{
		users:      users,
		secret:     []byte(secret),
		expiry:     expiry,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		log:        log.With().Str("service", "auth").Logger(),
	}
}

// Register creates an account
func (s *Service) Register(email, password, name string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.Create(email, strings.TrimSpace(name), string(hash))
}

// Login checks credentials and returns a signed access token
func (s *Service) Login(email, password string) (string, *User, error) {
	user, err := s.users.GetByEmail(strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Debug().Str("user_id", user.ID).Msg("Login rejected")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) issueToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the user id it was issued to
func (s *Service) ParseToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// GetUser returns a user by id
func (s *Service) GetUser(id string) (*User, error) {
	return s.users.GetByID(id)
}

// UpdateProfile changes a user's name and email. Empty values keep the
// current ones.
func (s *Service) UpdateProfile(id, email, name string) (*User, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if email != "" {
		if user.Email, err = NormalizeEmail(email); err != nil {
			return nil, err
		}
	}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}

	if err := s.users.UpdateProfile(id, user.Email, user.Name); err != nil {
		return nil, err
	}
	return s.users.GetByID(id)
}

// ChangePassword replaces a password after verifying the current one
func (s *Service) ChangePassword(id, current, next string) error {
	user, err := s.users.GetByID(id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(id, string(hash)); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("Password changed")
	return nil
}
