// Package taxreport builds capital-gains reports for a wallet over a date
// window, caches them and renders them for tax software.
package taxreport

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/cointax/internal/modules/taxlots"
	"github.com/aristath/cointax/internal/modules/valuation"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRequest is returned for a malformed report request
	ErrInvalidRequest = errors.New("invalid report request")
	// ErrNotFound is returned when a stored report does not exist
	ErrNotFound = errors.New("report not found")
)

// Request selects the wallet, inclusive window and accounting method
type Request struct {
	WalletID  string
	StartDate time.Time
	EndDate   time.Time
	Method    taxlots.Method
}

// Transactions holds the valued events and matched gains inside the window
type Transactions struct {
	Trades []taxlots.ValuedEvent `json:"trades"`
	Gains  []taxlots.CapitalGain `json:"gains"`
}

// Report is a generated tax report
type Report struct {
	ID             string                      `json:"id"`
	WalletID       string                      `json:"walletId"`
	StartDate      time.Time                   `json:"startDate"`
	EndDate        time.Time                   `json:"endDate"`
	Method         taxlots.Method              `json:"method"`
	GeneratedAt    time.Time                   `json:"generatedAt"`
	ShortTermGains decimal.Decimal             `json:"shortTermGains"`
	LongTermGains  decimal.Decimal             `json:"longTermGains"`
	TotalGains     decimal.Decimal             `json:"totalGains"`
	Transactions   Transactions                `json:"transactions"`
	Unmatched      []taxlots.UnmatchedDisposal `json:"unmatched"`
	Skipped        []valuation.Skipped         `json:"skipped"`
}

// SnapshotInfo describes a stored report without its payload
type SnapshotInfo struct {
	ID        string         `json:"id"`
	WalletID  string         `json:"walletId"`
	Method    taxlots.Method `json:"method"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (r Request) validate() error {
	switch {
	case r.WalletID == "":
		return fmt.Errorf("%w: wallet id is required", ErrInvalidRequest)
	case r.StartDate.IsZero() || r.EndDate.IsZero():
		return fmt.Errorf("%w: start date and end date are required", ErrInvalidRequest)
	case r.StartDate.After(r.EndDate):
		return fmt.Errorf("%w: start date must not be after end date", ErrInvalidRequest)
	case !r.Method.Valid():
		return fmt.Errorf("%w: invalid tax calculation method", ErrInvalidRequest)
	}
	return nil
}

func (r Request) contains(t time.Time) bool {
	return !t.Before(r.StartDate) && !t.After(r.EndDate)
}
