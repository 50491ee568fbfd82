package taxreport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/aristath/cointax/internal/modules/taxlots"
	"github.com/aristath/cointax/internal/utils"
)

// FiatCurrency is the currency every fiat value is expressed in
const FiatCurrency = "USD"

// ExportNetwork is the exchange name reported to CoinTracker
const ExportNetwork = "Arbitrum One"

// ErrUnknownTemplate is returned for a template id not in Templates()
var ErrUnknownTemplate = errors.New("unknown export template")

// Template describes a CSV export layout
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type rowWriter func(w *csv.Writer, report *Report) error

type templateDef struct {
	Template
	header []string
	write  rowWriter
}

var templates = []templateDef{
	{
		Template: Template{"general", "General Format", "A general format compatible with most spreadsheet applications"},
		header:   []string{"Date Sold", "Date Acquired", "Asset", "Amount", "Sale Value (USD)", "Cost Basis (USD)", "Gain/Loss (USD)", "Long Term"},
		write: gainRows(func(g taxlots.CapitalGain) []string {
			return []string{
				date(g.DisposalTimestamp), date(g.AcquisitionTimestamp), g.AssetID, g.MatchedQuantity.StringFixed(8),
				g.Proceeds.StringFixed(2), g.CostBasis.StringFixed(2), g.GainOrLoss.StringFixed(2), yesNo(g.IsLongTerm),
			}
		}),
	},
	{
		Template: Template{"turbotax", "TurboTax", "Compatible with Intuit TurboTax software"},
		header:   []string{"Description", "Date Acquired", "Date Sold", "Proceeds", "Cost Basis", "Wash Sale Loss Disallowed", "Gain Or Loss", "Term"},
		write: gainRows(func(g taxlots.CapitalGain) []string {
			return []string{
				describe(g), date(g.AcquisitionTimestamp), date(g.DisposalTimestamp), g.Proceeds.StringFixed(2),
				g.CostBasis.StringFixed(2), "0.00", g.GainOrLoss.StringFixed(2), term(g.IsLongTerm, "Long", "Short"),
			}
		}),
	},
	{
		Template: Template{"hrblock", "H&R Block", "Compatible with H&R Block tax software"},
		header:   []string{"Asset Name", "Purchase Date", "Cost Basis", "Date Sold", "Proceeds", "Gain/Loss", "Term"},
		write: gainRows(func(g taxlots.CapitalGain) []string {
			return []string{
				describe(g), date(g.AcquisitionTimestamp), g.CostBasis.StringFixed(2), date(g.DisposalTimestamp),
				g.Proceeds.StringFixed(2), g.GainOrLoss.StringFixed(2), term(g.IsLongTerm, "Long Term", "Short Term"),
			}
		}),
	},
	{
		Template: Template{"koinly", "Koinly", "Compatible with Koinly crypto tax software"},
		header: []string{"Date", "Sent Amount", "Sent Currency", "Received Amount", "Received Currency", "Fee Amount",
			"Fee Currency", "Net Worth Amount", "Net Worth Currency", "Label", "Description", "TxHash"},
		write: tradeRows(func(e taxlots.ValuedEvent) []string {
			amount := e.Quantity.Abs().StringFixed(8)
			fiat := e.FiatValue.StringFixed(2)
			if e.IsAcquisition() {
				return []string{
					e.Timestamp.UTC().Format(time.RFC3339), fiat, FiatCurrency, amount, e.AssetID, "0", FiatCurrency,
					fiat, FiatCurrency, "Buy", fmt.Sprintf("Bought %s %s", amount, e.AssetID), e.SourceID,
				}
			}
			return []string{
				e.Timestamp.UTC().Format(time.RFC3339), amount, e.AssetID, fiat, FiatCurrency, "0", FiatCurrency,
				fiat, FiatCurrency, "Sell", fmt.Sprintf("Sold %s %s", amount, e.AssetID), e.SourceID,
			}
		}),
	},
	{
		Template: Template{"cointracker", "CoinTracker", "Compatible with CoinTracker crypto tax software"},
		header: []string{"Date", "Type", "Received Quantity", "Received Currency", "Sent Quantity", "Sent Currency",
			"Fee", "Fee Currency", "Exchange", "Tag"},
		write: tradeRows(func(e taxlots.ValuedEvent) []string {
			amount := e.Quantity.Abs().StringFixed(8)
			fiat := e.FiatValue.StringFixed(2)
			if e.IsAcquisition() {
				return []string{date(e.Timestamp), "Buy", amount, e.AssetID, fiat, FiatCurrency, "0", FiatCurrency, ExportNetwork, ""}
			}
			return []string{date(e.Timestamp), "Sell", fiat, FiatCurrency, amount, e.AssetID, "0", FiatCurrency, ExportNetwork, ""}
		}),
	},
	{
		Template: Template{"taxact", "TaxAct", "Compatible with TaxAct software"},
		header: []string{"Security Description", "Date Acquired", "Date Sold", "Sales Price", "Cost or Other Basis",
			"Codes", "Amount of Adjustment", "Gain or Loss"},
		write: gainRows(func(g taxlots.CapitalGain) []string {
			return []string{
				describe(g), date(g.AcquisitionTimestamp), date(g.DisposalTimestamp), g.Proceeds.StringFixed(2),
				g.CostBasis.StringFixed(2), term(g.IsLongTerm, "L", "S"), "0.00", g.GainOrLoss.StringFixed(2),
			}
		}),
	},
}

// Templates lists the supported export layouts
func Templates() []Template {
	list := make([]Template, 0, len(templates))
	for _, t := range templates {
		list = append(list, t.Template)
	}
	return list
}

// WriteCSV renders report in the layout named by templateID. An empty id
// selects the general layout.
func WriteCSV(w io.Writer, report *Report, templateID string) error {
	if templateID == "" {
		templateID = "general"
	}
	idx := slices.IndexFunc(templates, func(t templateDef) bool { return t.ID == templateID })
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}
	def := templates[idx]

	cw := csv.NewWriter(w)
	if err := cw.Write(def.header); err != nil {
		return err
	}
	if err := def.write(cw, report); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// gainRows writes one row per capital gain, ordered by disposal date
func gainRows(row func(taxlots.CapitalGain) []string) rowWriter {
	return func(w *csv.Writer, report *Report) error {
		gains := slices.Clone(report.Transactions.Gains)
		slices.SortStableFunc(gains, func(a, b taxlots.CapitalGain) int {
			return a.DisposalTimestamp.Compare(b.DisposalTimestamp)
		})
		for _, g := range gains {
			if err := w.Write(row(g)); err != nil {
				return err
			}
		}
		return nil
	}
}

// tradeRows writes one row per valued event, ordered by date
func tradeRows(row func(taxlots.ValuedEvent) []string) rowWriter {
	return func(w *csv.Writer, report *Report) error {
		trades := slices.Clone(report.Transactions.Trades)
		slices.SortStableFunc(trades, func(a, b taxlots.ValuedEvent) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		for _, e := range trades {
			if err := w.Write(row(e)); err != nil {
				return err
			}
		}
		return nil
	}
}

func date(t time.Time) string {
	return utils.FormatDate(t)
}

func describe(g taxlots.CapitalGain) string {
	return g.MatchedQuantity.StringFixed(8) + " " + g.AssetID
}

func yesNo(b bool) string {
	return term(b, "Yes", "No")
}

func term(longTerm bool, long, short string) string {
	if longTerm {
		return long
	}
	return short
}
