package taxlots

import "github.com/shopspring/decimal"

// Report aggregates capital gains into short-term, long-term and total sums.
type Report struct {
	ShortTermGains decimal.Decimal     `json:"shortTermGains"`
	LongTermGains  decimal.Decimal     `json:"longTermGains"`
	TotalGains     decimal.Decimal     `json:"totalGains"`
	Gains          []CapitalGain       `json:"gains"`
	Unmatched      []UnmatchedDisposal `json:"unmatched"`
}

// Summarize partitions gains by holding period and sums each partition.
// The gains slice is attached as given.
func Summarize(gains []CapitalGain) Report {
	report := Report{
		ShortTermGains: decimal.Zero,
		LongTermGains:  decimal.Zero,
		Gains:          gains,
	}

	for _, g := range gains {
		if g.IsLongTerm {
			report.LongTermGains = report.LongTermGains.Add(g.GainOrLoss)
		} else {
			report.ShortTermGains = report.ShortTermGains.Add(g.GainOrLoss)
		}
	}
	report.TotalGains = report.ShortTermGains.Add(report.LongTermGains)

	return report
}
