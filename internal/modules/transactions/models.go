// Package transactions stores the synced on-chain history of each wallet and
// the user-supplied classification and valuation of every record.
package transactions

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TypeSend                = "send"
	TypeReceive             = "receive"
	TypeSwap                = "swap"
	TypeApproval            = "approval"
	TypeContractInteraction = "contract_interaction"
	TypeOther               = "other"
)

// Tax categories
const (
	CategoryIncome        = "income"
	CategoryExpense       = "expense"
	CategoryTrade         = "trade"
	CategoryTransfer      = "transfer"
	CategoryFee           = "fee"
	CategoryUncategorized = "uncategorized"
)

// NativeAsset is the asset symbol used for native-chain value transfers
const NativeAsset = "ETH"

// NativeDecimals is the base-unit exponent of NativeAsset (wei)
const NativeDecimals = 18

var (
	// ErrNotFound is returned when a transaction does not exist
	ErrNotFound = errors.New("transaction not found")
	// ErrInvalidInput is returned for malformed transaction fields or filters
	ErrInvalidInput = errors.New("invalid transaction input")
)

var validTypes = map[string]bool{
	TypeSend: true, TypeReceive: true, TypeSwap: true,
	TypeApproval: true, TypeContractInteraction: true, TypeOther: true,
}

var validCategories = map[string]bool{
	CategoryIncome: true, CategoryExpense: true, CategoryTrade: true,
	CategoryTransfer: true, CategoryFee: true, CategoryUncategorized: true,
}

// Transaction is one asset movement recorded for a wallet. A single on-chain
// hash can produce several rows, one per asset moved.
type Transaction struct {
	ID          int64            `json:"id"`
	WalletID    string           `json:"walletId"`
	TxHash      string           `json:"txHash"`
	BlockNumber int64            `json:"blockNumber"`
	Timestamp   time.Time        `json:"timestamp"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Value       string           `json:"value"` // raw integer amount in base units
	Decimals    int32            `json:"decimals"`
	FiatValue   *decimal.Decimal `json:"fiatValue,omitempty"`
	GasUsed     string           `json:"gasUsed"`
	GasPrice    string           `json:"gasPrice"`
	Method      string           `json:"method"`
	Status      bool             `json:"status"`
	Asset       string           `json:"asset"`
	Type        string           `json:"type"`
	Category    string           `json:"category"`
	Notes       string           `json:"notes"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Filter narrows a transaction listing. Zero values mean no restriction.
type Filter struct {
	Types      []string
	Categories []string
	Asset      string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int // 1-based
	Limit      int
}

// Page is one page of a filtered listing
type Page struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	Pages        int           `json:"pages"`
}

// ValidType reports whether t is a known transaction type
func ValidType(t string) bool {
	return validTypes[t]
}

// ValidCategory reports whether c is a known tax category
func ValidCategory(c string) bool {
	return validCategories[c]
}

// Categories lists every tax category
func Categories() []string {
	return []string{CategoryIncome, CategoryExpense, CategoryTrade, CategoryTransfer, CategoryFee, CategoryUncategorized}
}
