// Package taxlots matches disposals of an asset against its acquisition lots
// and computes realized capital gains.
//
// Matching is a pure, synchronous computation over one asset's events. Lot
// balances live in a per-call arena and nothing is retained between calls,
// so independent assets can be matched concurrently by the caller.
package taxlots

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LongTermThreshold is the holding period a lot must strictly exceed for its
// gain to count as long-term. Compared at millisecond resolution.
const LongTermThreshold = 365 * 24 * time.Hour

// CapitalGain is the result of matching one disposal (fully or partially)
// against one acquisition lot.
type CapitalGain struct {
	DisposalSourceID     string          `json:"txHash"`
	DisposalTimestamp    time.Time       `json:"timestamp"`
	AssetID              string          `json:"asset"`
	AcquisitionTimestamp time.Time       `json:"acquiredAt"`
	AcquisitionSourceID  string          `json:"acquiredTxHash"`
	MatchedQuantity      decimal.Decimal `json:"soldAmount"`
	Proceeds             decimal.Decimal `json:"soldValue"`
	CostBasis            decimal.Decimal `json:"costBasis"`
	GainOrLoss           decimal.Decimal `json:"gainLoss"`
	IsLongTerm           bool            `json:"isLongTerm"`
}

// UnmatchedDisposal records disposed quantity that no acquisition lot could
// cover. It is a data-quality signal, not an error.
type UnmatchedDisposal struct {
	AssetID           string          `json:"asset"`
	SourceID          string          `json:"txHash"`
	Timestamp         time.Time       `json:"timestamp"`
	DisposedQuantity  decimal.Decimal `json:"disposedAmount"`
	UnmatchedQuantity decimal.Decimal `json:"unmatchedAmount"`
}

// Result is the output of Match.
type Result struct {
	Gains     []CapitalGain
	Unmatched []UnmatchedDisposal
}

// Report summarizes the gains and attaches the unmatched disposals.
func (r Result) Report() Report {
	report := Summarize(r.Gains)
	report.Unmatched = r.Unmatched
	return report
}

// lot is the matcher's private, mutable view of one event.
type lot struct {
	event          ValuedEvent
	position       int
	unitCost       decimal.Decimal
	remaining      decimal.Decimal
	remainingValue decimal.Decimal
}

// take consumes qty units and returns their fiat share. The final take of a
// lot receives whatever value is left so prorating never leaks rounding dust.
func (l *lot) take(qty decimal.Decimal) decimal.Decimal {
	var value decimal.Decimal
	if qty.Equal(l.remaining) {
		value = l.remainingValue
	} else {
		value = l.event.valueOf(qty)
	}
	l.remaining = l.remaining.Sub(qty)
	l.remainingValue = l.remainingValue.Sub(value)
	return value
}

// Match partitions the disposals in events against the acquisition lots in
// events using method. Disposals are processed oldest first; method only
// decides which lot each disposal draws from. The events slice is not
// modified.
func Match(events []ValuedEvent, method Method) (Result, error) {
	order, err := method.lotOrder()
	if err != nil {
		return Result{}, err
	}
	if err := validateEvents(events); err != nil {
		return Result{}, err
	}

	var acquisitions, disposals []*lot
	for i, ev := range events {
		l := &lot{
			event:          ev,
			position:       i,
			unitCost:       ev.UnitCost(),
			remaining:      ev.Quantity.Abs(),
			remainingValue: ev.FiatValue,
		}
		if ev.IsAcquisition() {
			acquisitions = append(acquisitions, l)
		} else {
			disposals = append(disposals, l)
		}
	}

	byTimestamp := func(a, b *lot) int {
		return a.event.Timestamp.Compare(b.event.Timestamp)
	}
	slices.SortStableFunc(disposals, tieBroken(byTimestamp))
	// Timestamps and unit costs never change while matching, so one sort
	// serves every disposal; exhausted lots are skipped during the walk.
	slices.SortStableFunc(acquisitions, tieBroken(order))

	result := Result{Gains: make([]CapitalGain, 0, len(disposals))}
	for _, disposal := range disposals {
		disposed := disposal.remaining

		for _, candidate := range acquisitions {
			if disposal.remaining.IsZero() {
				break
			}
			if !candidate.remaining.IsPositive() {
				continue
			}

			use := decimal.Min(disposal.remaining, candidate.remaining)
			proceeds := disposal.take(use)
			costBasis := candidate.take(use)

			result.Gains = append(result.Gains, CapitalGain{
				DisposalSourceID:     disposal.event.SourceID,
				DisposalTimestamp:    disposal.event.Timestamp,
				AssetID:              disposal.event.AssetID,
				AcquisitionTimestamp: candidate.event.Timestamp,
				AcquisitionSourceID:  candidate.event.SourceID,
				MatchedQuantity:      use,
				Proceeds:             proceeds,
				CostBasis:            costBasis,
				GainOrLoss:           proceeds.Sub(costBasis),
				IsLongTerm:           IsLongTerm(candidate.event.Timestamp, disposal.event.Timestamp),
			})
		}

		if disposal.remaining.IsPositive() {
			result.Unmatched = append(result.Unmatched, UnmatchedDisposal{
				AssetID:           disposal.event.AssetID,
				SourceID:          disposal.event.SourceID,
				Timestamp:         disposal.event.Timestamp,
				DisposedQuantity:  disposed,
				UnmatchedQuantity: disposal.remaining,
			})
		}
	}

	return result, nil
}

// IsLongTerm reports whether the holding period from acquired to disposed
// strictly exceeds LongTermThreshold.
func IsLongTerm(acquired, disposed time.Time) bool {
	return disposed.UnixMilli()-acquired.UnixMilli() > LongTermThreshold.Milliseconds()
}

func validateEvents(events []ValuedEvent) error {
	if len(events) == 0 {
		return nil
	}

	asset := events[0].AssetID
	if strings.TrimSpace(asset) == "" {
		return invalid("assetId", events[0].SourceID, "is required")
	}
	for _, ev := range events {
		if ev.AssetID != asset {
			return invalid("assetId", ev.SourceID, "mixed assets "+asset+" and "+ev.AssetID)
		}
		if err := ev.validate(); err != nil {
			return err
		}
	}
	return nil
}

// tieBroken extends a primary ordering with source id and input position so
// that equal keys always resolve the same way.
func tieBroken(primary func(a, b *lot) int) func(a, b *lot) int {
	return func(a, b *lot) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		if c := strings.Compare(a.event.SourceID, b.event.SourceID); c != 0 {
			return c
		}
		return a.position - b.position
	}
}
