// Package valuation turns stored wallet transactions into the per-asset
// valued events consumed by lot matching.
package valuation

import (
	"math/big"
	"sort"
	"time"

	"github.com/aristath/cointax/internal/modules/taxlots"
	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/shopspring/decimal"
)

// Skip reasons
const (
	ReasonFailed          = "failed transaction"
	ReasonNotTransfer     = "not a value transfer"
	ReasonInternal        = "internal transfer"
	ReasonZeroAmount      = "zero amount"
	ReasonUnparseable     = "unparseable amount"
	ReasonMissingValue    = "missing fiat value"
	ReasonMissingAsset    = "missing asset"
	ReasonNegativeDecimal = "negative decimals"
)

// Skipped records a transaction left out of the tax computation
type Skipped struct {
	SourceID  string    `json:"txHash"`
	Timestamp time.Time `json:"timestamp"`
	Asset     string    `json:"asset"`
	Reason    string    `json:"reason"`
}

// Batch holds valued events grouped by asset, each group in input order
type Batch struct {
	Events  map[string][]taxlots.ValuedEvent
	Skipped []Skipped
}

// Assets returns the assets present in the batch in sorted order
func (b Batch) Assets() []string {
	assets := make([]string, 0, len(b.Events))
	for asset := range b.Events {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Valuate converts transactions into valued events. Receives become
// acquisitions and sends become disposals; the raw base-unit amount is
// scaled by the asset's decimals. Everything else is reported as skipped.
func Valuate(txs []transactions.Transaction) Batch {
	batch := Batch{Events: make(map[string][]taxlots.ValuedEvent)}

	for _, tx := range txs {
		event, reason := valuate(tx)
		if reason != "" {
			batch.Skipped = append(batch.Skipped, Skipped{SourceID: tx.TxHash, Timestamp: tx.Timestamp, Asset: tx.Asset, Reason: reason})
			continue
		}
		batch.Events[event.AssetID] = append(batch.Events[event.AssetID], event)
	}

	return batch
}

func valuate(tx transactions.Transaction) (taxlots.ValuedEvent, string) {
	if !tx.Status {
		return taxlots.ValuedEvent{}, ReasonFailed
	}
	if tx.Type != transactions.TypeReceive && tx.Type != transactions.TypeSend {
		return taxlots.ValuedEvent{}, ReasonNotTransfer
	}
	if tx.Category == transactions.CategoryTransfer {
		return taxlots.ValuedEvent{}, ReasonInternal
	}
	if tx.Asset == "" {
		return taxlots.ValuedEvent{}, ReasonMissingAsset
	}
	if tx.Decimals < 0 {
		return taxlots.ValuedEvent{}, ReasonNegativeDecimal
	}

	raw, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok {
		return taxlots.ValuedEvent{}, ReasonUnparseable
	}
	if raw.Sign() == 0 {
		return taxlots.ValuedEvent{}, ReasonZeroAmount
	}
	if tx.FiatValue == nil {
		return taxlots.ValuedEvent{}, ReasonMissingValue
	}

	quantity := decimal.NewFromBigInt(raw, -tx.Decimals).Abs()
	if tx.Type == transactions.TypeSend {
		quantity = quantity.Neg()
	}

	return taxlots.ValuedEvent{
		AssetID:   tx.Asset,
		Timestamp: tx.Timestamp,
		Quantity:  quantity,
		FiatValue: *tx.FiatValue,
		SourceID:  tx.TxHash,
	}, ""
}
