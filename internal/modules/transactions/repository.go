package transactions

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 500
)

// transactionColumns must match the Scan order in scanTransaction
const transactionColumns = `id, wallet_id, tx_hash, block_number, timestamp, from_address, to_address,
value, decimals, fiat_value, gas_used, gas_price, method, status, asset, type, category, notes,
created_at, updated_at`

// Repository handles transaction persistence in ledger.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

// Create inserts tx unless a row for the same wallet, hash and asset exists.
// It reports whether a new row was added; on insert tx.ID and the
// timestamps are populated.
func (r *Repository) Create(tx *Transaction) (bool, error) {
	if tx.WalletID == "" || tx.TxHash == "" {
		return false, fmt.Errorf("%w: wallet id and tx hash are required", ErrInvalidInput)
	}
	tx.TxHash = strings.ToLower(tx.TxHash)
	if tx.Asset == "" {
		tx.Asset = NativeAsset
	}
	if tx.Type == "" {
		tx.Type = TypeOther
	}
	if tx.Category == "" {
		tx.Category = CategoryUncategorized
	}
	if !ValidType(tx.Type) {
		return false, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, tx.Type)
	}
	if !ValidCategory(tx.Category) {
		return false, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, tx.Category)
	}
	if _, ok := new(big.Int).SetString(tx.Value, 10); !ok {
		return false, fmt.Errorf("%w: value %q is not an integer", ErrInvalidInput, tx.Value)
	}

	now := time.Now().UTC().Truncate(time.Second)
	result, err := r.db.Exec(`INSERT INTO transactions
		(wallet_id, tx_hash, block_number, timestamp, from_address, to_address, value, decimals,
		 fiat_value, gas_used, gas_price, method, status, asset, type, category, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wallet_id, tx_hash, asset) DO NOTHING`,
		tx.WalletID,
		tx.TxHash,
		tx.BlockNumber,
		tx.Timestamp.Unix(),
		strings.ToLower(tx.From),
		strings.ToLower(tx.To),
		tx.Value,
		tx.Decimals,
		nullDecimal(tx.FiatValue),
		defaultString(tx.GasUsed, "0"),
		defaultString(tx.GasPrice, "0"),
		tx.Method,
		boolToInt(tx.Status),
		tx.Asset,
		tx.Type,
		tx.Category,
		tx.Notes,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create transaction %s: %w", tx.TxHash, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get insert ID: %w", err)
	}
	tx.ID = id
	tx.CreatedAt = now
	tx.UpdatedAt = now
	return true, nil
}

// GetByID returns the transaction with the given id or ErrNotFound
func (r *Repository) GetByID(id int64) (*Transaction, error) {
	row := r.db.QueryRow("SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return tx, nil
}

// GetByHash returns every row recorded for an on-chain hash across wallets
// and assets
func (r *Repository) GetByHash(txHash string) ([]Transaction, error) {
	return r.query("SELECT "+transactionColumns+" FROM transactions WHERE tx_hash = ? ORDER BY id ASC",
		strings.ToLower(txHash))
}

// List returns one page of a wallet's transactions, newest first, together
// with the total number of rows matching the filter.
func (r *Repository) List(walletID string, filter Filter) (*Page, error) {
	where, args, err := buildWhere(walletID, filter)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	txs, err := r.query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, err
	}

	return &Page{
		Transactions: txs,
		Total:        total,
		Page:         page,
		Limit:        limit,
		Pages:        (total + limit - 1) / limit,
	}, nil
}

// GetInRange returns a wallet's transactions with start <= timestamp <= end,
// oldest first. A zero start means from the beginning of the history.
func (r *Repository) GetInRange(walletID string, start, end time.Time) ([]Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE wallet_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC`

	var startUnix int64
	if !start.IsZero() {
		startUnix = start.Unix()
	}
	return r.query(query, walletID, startUnix, end.Unix())
}

// UpdateCategory sets the tax category of a transaction
func (r *Repository) UpdateCategory(id int64, category string) (*Transaction, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: category must be one of %s", ErrInvalidInput, strings.Join(Categories(), ", "))
	}
	return r.update(id, "category = ?", category)
}

// UpdateNotes replaces the free-form notes of a transaction
func (r *Repository) UpdateNotes(id int64, notes string) (*Transaction, error) {
	return r.update(id, "notes = ?", notes)
}

// SetFiatValue records the fiat value of the whole transaction amount.
// A nil value clears it, which excludes the row from tax reports.
func (r *Repository) SetFiatValue(id int64, value *decimal.Decimal) (*Transaction, error) {
	if value != nil && value.IsNegative() {
		return nil, fmt.Errorf("%w: fiat value must not be negative", ErrInvalidInput)
	}
	return r.update(id, "fiat_value = ?", nullDecimal(value))
}

func (r *Repository) update(id int64, assignment string, value interface{}) (*Transaction, error) {
	result, err := r.db.Exec("UPDATE transactions SET "+assignment+", updated_at = ? WHERE id = ?",
		value, time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(id)
}

func (r *Repository) query(query string, args ...interface{}) ([]Transaction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func buildWhere(walletID string, filter Filter) (string, []interface{}, error) {
	clauses := []string{"wallet_id = ?"}
	args := []interface{}{walletID}

	if len(filter.Types) > 0 {
		for _, t := range filter.Types {
			if !ValidType(t) {
				return "", nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, t)
			}
			args = append(args, t)
		}
		clauses = append(clauses, "type IN ("+placeholders(len(filter.Types))+")")
	}
	if len(filter.Categories) > 0 {
		for _, c := range filter.Categories {
			if !ValidCategory(c) {
				return "", nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, c)
			}
			args = append(args, c)
		}
		clauses = append(clauses, "category IN ("+placeholders(len(filter.Categories))+")")
	}
	if filter.Asset != "" {
		clauses = append(clauses, "asset = ?")
		args = append(args, filter.Asset)
	}
	if filter.StartDate != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.StartDate.Unix())
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.EndDate.Unix())
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var tx Transaction
	var timestamp, createdAt, updatedAt int64
	var fiatValue sql.NullString
	var status int

	err := row.Scan(
		&tx.ID, &tx.WalletID, &tx.TxHash, &tx.BlockNumber, &timestamp, &tx.From, &tx.To,
		&tx.Value, &tx.Decimals, &fiatValue, &tx.GasUsed, &tx.GasPrice, &tx.Method, &status,
		&tx.Asset, &tx.Type, &tx.Category, &tx.Notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fiatValue.Valid {
		value, err := decimal.NewFromString(fiatValue.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt fiat value %q on transaction %d: %w", fiatValue.String, tx.ID, err)
		}
		tx.FiatValue = &value
	}
	tx.Status = status != 0
	tx.Timestamp = time.Unix(timestamp, 0).UTC()
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()
	tx.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &tx, nil
}

func nullDecimal(value *decimal.Decimal) interface{} {
	if value == nil {
		return nil
	}
	return value.String()
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
