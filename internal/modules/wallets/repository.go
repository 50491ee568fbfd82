package wallets

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles wallet persistence in ledger.db.
// Deleting a wallet cascades to its transactions through the foreign key.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

const walletColumns = `id, address, label, network, last_sync, created_at, updated_at`

// NewRepository creates a new wallet repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "wallets").Logger(),
	}
}

// Create validates and stores a new wallet. ID and timestamps are assigned here.
func (r *Repository) Create(address, label, network string) (*Wallet, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	network, err = ValidateNetwork(network)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	wallet := &Wallet{
		ID:        uuid.New().String(),
		Address:   normalized,
		Label:     label,
		Network:   network,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.Exec(`INSERT INTO wallets (id, address, label, network, last_sync, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		wallet.ID, wallet.Address, wallet.Label, wallet.Network, now.Unix(), now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, normalized)
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	r.log.Info().Str("wallet_id", wallet.ID).Str("address", wallet.Address).Msg("Wallet created")
	return wallet, nil
}

// GetByID returns the wallet with the given id or ErrNotFound
func (r *Repository) GetByID(id string) (*Wallet, error) {
	row := r.db.QueryRow("SELECT "+walletColumns+" FROM wallets WHERE id = ?", id)
	wallet, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %s: %w", id, err)
	}
	return wallet, nil
}

// GetByAddress looks a wallet up by address in any letter case
func (r *Repository) GetByAddress(address string) (*Wallet, error) {
	row := r.db.QueryRow("SELECT "+walletColumns+" FROM wallets WHERE address = ?",
		strings.ToLower(strings.TrimSpace(address)))
	wallet, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet by address: %w", err)
	}
	return wallet, nil
}

// List returns all wallets, oldest first
func (r *Repository) List() ([]Wallet, error) {
	rows, err := r.db.Query("SELECT " + walletColumns + " FROM wallets ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	wallets := make([]Wallet, 0)
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}
	return wallets, nil
}

// Update changes label and network. Empty values keep the current ones.
func (r *Repository) Update(id, label, network string) (*Wallet, error) {
	wallet, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if label = strings.TrimSpace(label); label != "" {
		wallet.Label = label
	}
	if strings.TrimSpace(network) != "" {
		if wallet.Network, err = ValidateNetwork(network); err != nil {
			return nil, err
		}
	}
	wallet.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	_, err = r.db.Exec("UPDATE wallets SET label = ?, network = ?, updated_at = ? WHERE id = ?",
		wallet.Label, wallet.Network, wallet.UpdatedAt.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet %s: %w", id, err)
	}
	return wallet, nil
}

// Delete removes a wallet and, through the cascade, its transactions
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM wallets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete wallet %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.log.Info().Str("wallet_id", id).Msg("Wallet deleted")
	return nil
}

// MarkSynced records the time of the last successful sync
func (r *Repository) MarkSynced(id string, at time.Time) error {
	result, err := r.db.Exec("UPDATE wallets SET last_sync = ?, updated_at = ? WHERE id = ?",
		at.Unix(), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark wallet %s synced: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWallet(row rowScanner) (*Wallet, error) {
	var w Wallet
	var lastSync sql.NullInt64
	var createdAt, updatedAt int64

	if err := row.Scan(&w.ID, &w.Address, &w.Label, &w.Network, &lastSync, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if lastSync.Valid {
		t := time.Unix(lastSync.Int64, 0).UTC()
		w.LastSync = &t
	}
	w.CreatedAt = time.Unix(createdAt, 0).UTC()
	w.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &w, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
