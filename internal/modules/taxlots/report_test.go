package taxlots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	gains := []CapitalGain{
		{GainOrLoss: d("350"), IsLongTerm: false},
		{GainOrLoss: d("-40.5"), IsLongTerm: false},
		{GainOrLoss: d("1000"), IsLongTerm: true},
		{GainOrLoss: d("-0.25"), IsLongTerm: true},
	}

	report := Summarize(gains)
	assertDecimal(t, "309.5", report.ShortTermGains)
	assertDecimal(t, "999.75", report.LongTermGains)
	assertDecimal(t, "1309.25", report.TotalGains)
	assert.Len(t, report.Gains, 4)
}

func TestSummarize_Empty(t *testing.T) {
	report := Summarize(nil)
	assert.True(t, report.ShortTermGains.IsZero())
	assert.True(t, report.LongTermGains.IsZero())
	assert.True(t, report.TotalGains.IsZero())
	assert.Empty(t, report.Gains)
}

func TestReport_TotalsAreConsistent(t *testing.T) {
	events := []ValuedEvent{
		buy("old", day(2021, 1, 1), "2", "2000"),
		buy("new", day(2023, 6, 1), "1", "1800"),
		sell("S1", day(2023, 7, 1), "1.5", "2700"),
		sell("S2", day(2023, 8, 1), "2", "3000"),
	}

	for _, method := range Methods() {
		t.Run(method.String(), func(t *testing.T) {
			result, err := Match(events, method)
			require.NoError(t, err)

			report := result.Report()
			assertDecimal(t, report.ShortTermGains.Add(report.LongTermGains).String(), report.TotalGains)

			sum := d("0")
			for _, g := range report.Gains {
				assertDecimal(t, g.Proceeds.Sub(g.CostBasis).String(), g.GainOrLoss)
				sum = sum.Add(g.GainOrLoss)
			}
			assertDecimal(t, sum.String(), report.TotalGains)

			require.Len(t, report.Unmatched, 1)
			assert.Equal(t, "S2", report.Unmatched[0].SourceID)
			assertDecimal(t, "0.5", report.Unmatched[0].UnmatchedQuantity)
		})
	}
}

func TestReport_FIFOSplitsHoldingPeriods(t *testing.T) {
	events := []ValuedEvent{
		buy("old", day(2021, 1, 1), "1", "1000"),
		buy("new", day(2023, 6, 1), "1", "1800"),
		sell("S", day(2023, 7, 1), "2", "4000"),
	}

	result, err := Match(events, FIFO)
	require.NoError(t, err)
	report := result.Report()

	assertDecimal(t, "1000", report.LongTermGains)
	assertDecimal(t, "200", report.ShortTermGains)
	assertDecimal(t, "1200", report.TotalGains)
	assert.Empty(t, report.Unmatched)
}
