package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles user persistence in accounts.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

const userColumns = "id, email, name, password_hash, created_at, updated_at"

// Create stores a new user. email must already be normalized.
func (r *Repository) Create(email, name, passwordHash string) (*User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.Exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, now.Unix(), now.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.log.Info().Str("user_id", user.ID).Msg("User created")
	return user, nil
}

// GetByID returns the user with the given id or ErrNotFound
func (r *Repository) GetByID(id string) (*User, error) {
	return r.get("id", id)
}

// GetByEmail returns the user with the given email or ErrNotFound
func (r *Repository) GetByEmail(email string) (*User, error) {
	return r.get("email", strings.ToLower(email))
}

func (r *Repository) get(column, value string) (*User, error) {
	var user User
	var createdAt, updatedAt int64
	err := r.db.QueryRow("SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &user, nil
}

// UpdateProfile changes a user's name and email
func (r *Repository) UpdateProfile(id, email, name string) error {
	result, err := r.db.Exec("UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ?",
		email, name, time.Now().Unix(), id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(result)
}

// UpdatePassword replaces a user's password hash
func (r *Repository) UpdatePassword(id, passwordHash string) error {
	result, err := r.db.Exec("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
