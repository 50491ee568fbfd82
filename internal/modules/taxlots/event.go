package taxlots

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuedEvent is one historical acquisition or disposal of a single asset,
// already valued in fiat by the caller.
type ValuedEvent struct {
	AssetID   string          `json:"asset"`
	Timestamp time.Time       `json:"timestamp"`
	Quantity  decimal.Decimal `json:"amount"` // > 0 acquisition, < 0 disposal
	FiatValue decimal.Decimal `json:"value"`  // absolute value of |Quantity| at Timestamp
	SourceID  string          `json:"txHash"`
}

// IsAcquisition reports whether the event adds to holdings.
func (e ValuedEvent) IsAcquisition() bool {
	return e.Quantity.IsPositive()
}

// IsDisposal reports whether the event removes from holdings.
func (e ValuedEvent) IsDisposal() bool {
	return e.Quantity.IsNegative()
}

// UnitCost is the fiat value per unit: the cost basis rate of an
// acquisition or the proceeds rate of a disposal. Zero for a zero quantity.
func (e ValuedEvent) UnitCost() decimal.Decimal {
	if e.Quantity.IsZero() {
		return decimal.Zero
	}
	return e.FiatValue.Div(e.Quantity.Abs())
}

// valueOf prorates the event's fiat value over qty units, multiplying
// before dividing.
func (e ValuedEvent) valueOf(qty decimal.Decimal) decimal.Decimal {
	return e.FiatValue.Mul(qty).Div(e.Quantity.Abs())
}

func (e ValuedEvent) validate() error {
	if e.Quantity.IsZero() {
		return invalid("quantity", e.SourceID, "must be nonzero")
	}
	if e.FiatValue.IsNegative() {
		return invalid("fiatValue", e.SourceID, "must not be negative")
	}
	if e.Timestamp.IsZero() {
		return invalid("timestamp", e.SourceID, "is required")
	}
	return nil
}
