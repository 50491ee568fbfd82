package taxreport

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/cointax/internal/modules/taxlots"
	"github.com/aristath/cointax/internal/modules/valuation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotRepository stores generated reports in cache.db as msgpack blobs.
// Decimals are encoded as strings and times as unix milliseconds.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "report_snapshots").Logger(),
	}
}

type eventRecord struct {
	AssetID   string `msgpack:"a"`
	Timestamp int64  `msgpack:"t"`
	Quantity  string `msgpack:"q"`
	FiatValue string `msgpack:"v"`
	SourceID  string `msgpack:"s"`
}

type gainRecord struct {
	DisposalSourceID     string `msgpack:"ds"`
	DisposalTimestamp    int64  `msgpack:"dt"`
	AssetID              string `msgpack:"a"`
	AcquisitionTimestamp int64  `msgpack:"at"`
	AcquisitionSourceID  string `msgpack:"as"`
	MatchedQuantity      string `msgpack:"q"`
	Proceeds             string `msgpack:"p"`
	CostBasis            string `msgpack:"c"`
	GainOrLoss           string `msgpack:"g"`
	IsLongTerm           bool   `msgpack:"l"`
}

type unmatchedRecord struct {
	AssetID           string `msgpack:"a"`
	SourceID          string `msgpack:"s"`
	Timestamp         int64  `msgpack:"t"`
	DisposedQuantity  string `msgpack:"d"`
	UnmatchedQuantity string `msgpack:"u"`
}

type skippedRecord struct {
	SourceID  string `msgpack:"s"`
	Timestamp int64  `msgpack:"t"`
	Asset     string `msgpack:"a"`
	Reason    string `msgpack:"r"`
}

type snapshotPayload struct {
	Version        int               `msgpack:"version"`
	ID             string            `msgpack:"id"`
	WalletID       string            `msgpack:"wallet"`
	StartDate      int64             `msgpack:"start"`
	EndDate        int64             `msgpack:"end"`
	Method         string            `msgpack:"method"`
	GeneratedAt    int64             `msgpack:"generated"`
	ShortTermGains string            `msgpack:"short"`
	LongTermGains  string            `msgpack:"long"`
	TotalGains     string            `msgpack:"total"`
	Trades         []eventRecord     `msgpack:"trades"`
	Gains          []gainRecord      `msgpack:"gains"`
	Unmatched      []unmatchedRecord `msgpack:"unmatched"`
	Skipped        []skippedRecord   `msgpack:"skipped"`
}

const snapshotVersion = 1

// Save stores report under its ID, replacing any previous payload
func (r *SnapshotRepository) Save(report *Report) error {
	payload, err := msgpack.Marshal(toPayload(report))
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.ID, err)
	}

	_, err = r.db.Exec(`INSERT OR REPLACE INTO report_snapshots (id, wallet_id, method, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		report.ID, report.WalletID, report.Method.String(), payload, report.GeneratedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ID, err)
	}

	r.log.Debug().Str("report_id", report.ID).Int("bytes", len(payload)).Msg("Report snapshot stored")
	return nil
}

// Get loads a stored report or returns ErrNotFound
func (r *SnapshotRepository) Get(id string) (*Report, error) {
	var payload []byte
	err := r.db.QueryRow("SELECT payload FROM report_snapshots WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var decoded snapshotPayload
	if err := msgpack.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	if decoded.Version != snapshotVersion {
		return nil, fmt.Errorf("report %s has unsupported snapshot version %d", id, decoded.Version)
	}
	return fromPayload(&decoded)
}

// ListByWallet returns the most recent snapshots of a wallet, newest first
func (r *SnapshotRepository) ListByWallet(walletID string, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT id, wallet_id, method, created_at FROM report_snapshots
		WHERE wallet_id = ? ORDER BY created_at DESC, id ASC LIMIT ?`, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list report snapshots: %w", err)
	}
	defer rows.Close()

	infos := make([]SnapshotInfo, 0)
	for rows.Next() {
		var info SnapshotInfo
		var method string
		var createdAt int64
		if err := rows.Scan(&info.ID, &info.WalletID, &method, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan report snapshot: %w", err)
		}
		info.Method = taxlots.Method(method)
		info.CreatedAt = time.Unix(createdAt, 0).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteOlderThan removes snapshots created before cutoff
func (r *SnapshotRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM report_snapshots WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune report snapshots: %w", err)
	}
	return result.RowsAffected()
}

func toPayload(report *Report) snapshotPayload {
	p := snapshotPayload{
		Version:        snapshotVersion,
		ID:             report.ID,
		WalletID:       report.WalletID,
		StartDate:      report.StartDate.UnixMilli(),
		EndDate:        report.EndDate.UnixMilli(),
		Method:         report.Method.String(),
		GeneratedAt:    report.GeneratedAt.UnixMilli(),
		ShortTermGains: report.ShortTermGains.String(),
		LongTermGains:  report.LongTermGains.String(),
		TotalGains:     report.TotalGains.String(),
		Trades:         make([]eventRecord, 0, len(report.Transactions.Trades)),
		Gains:          make([]gainRecord, 0, len(report.Transactions.Gains)),
		Unmatched:      make([]unmatchedRecord, 0, len(report.Unmatched)),
		Skipped:        make([]skippedRecord, 0, len(report.Skipped)),
	}

	for _, e := range report.Transactions.Trades {
		p.Trades = append(p.Trades, eventRecord{
			AssetID:   e.AssetID,
			Timestamp: e.Timestamp.UnixMilli(),
			Quantity:  e.Quantity.String(),
			FiatValue: e.FiatValue.String(),
			SourceID:  e.SourceID,
		})
	}
	for _, g := range report.Transactions.Gains {
		p.Gains = append(p.Gains, gainRecord{
			DisposalSourceID:     g.DisposalSourceID,
			DisposalTimestamp:    g.DisposalTimestamp.UnixMilli(),
			AssetID:              g.AssetID,
			AcquisitionTimestamp: g.AcquisitionTimestamp.UnixMilli(),
			AcquisitionSourceID:  g.AcquisitionSourceID,
			MatchedQuantity:      g.MatchedQuantity.String(),
			Proceeds:             g.Proceeds.String(),
			CostBasis:            g.CostBasis.String(),
			GainOrLoss:           g.GainOrLoss.String(),
			IsLongTerm:           g.IsLongTerm,
		})
	}
	for _, u := range report.Unmatched {
		p.Unmatched = append(p.Unmatched, unmatchedRecord{
			AssetID:           u.AssetID,
			SourceID:          u.SourceID,
			Timestamp:         u.Timestamp.UnixMilli(),
			DisposedQuantity:  u.DisposedQuantity.String(),
			UnmatchedQuantity: u.UnmatchedQuantity.String(),
		})
	}
	for _, s := range report.Skipped {
		p.Skipped = append(p.Skipped, skippedRecord{
			SourceID:  s.SourceID,
			Timestamp: s.Timestamp.UnixMilli(),
			Asset:     s.Asset,
			Reason:    s.Reason,
		})
	}
	return p
}

// decoder collects the first decimal parse failure of a payload
type decoder struct {
	err error
}

func (d *decoder) decimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("corrupt decimal %q: %w", s, err)
	}
	return v
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromPayload(p *snapshotPayload) (*Report, error) {
	var d decoder
	report := &Report{
		ID:             p.ID,
		WalletID:       p.WalletID,
		StartDate:      millis(p.StartDate),
		EndDate:        millis(p.EndDate),
		Method:         taxlots.Method(p.Method),
		GeneratedAt:    millis(p.GeneratedAt),
		ShortTermGains: d.decimal(p.ShortTermGains),
		LongTermGains:  d.decimal(p.LongTermGains),
		TotalGains:     d.decimal(p.TotalGains),
		Transactions: Transactions{
			Trades: make([]taxlots.ValuedEvent, 0, len(p.Trades)),
			Gains:  make([]taxlots.CapitalGain, 0, len(p.Gains)),
		},
		Unmatched: make([]taxlots.UnmatchedDisposal, 0, len(p.Unmatched)),
		Skipped:   make([]valuation.Skipped, 0, len(p.Skipped)),
	}

	for _, e := range p.Trades {
		report.Transactions.Trades = append(report.Transactions.Trades, taxlots.ValuedEvent{
			AssetID:   e.AssetID,
			Timestamp: millis(e.Timestamp),
			Quantity:  d.decimal(e.Quantity),
			FiatValue: d.decimal(e.FiatValue),
			SourceID:  e.SourceID,
		})
	}
	for _, g := range p.Gains {
		report.Transactions.Gains = append(report.Transactions.Gains, taxlots.CapitalGain{
			DisposalSourceID:     g.DisposalSourceID,
			DisposalTimestamp:    millis(g.DisposalTimestamp),
			AssetID:              g.AssetID,
			AcquisitionTimestamp: millis(g.AcquisitionTimestamp),
			AcquisitionSourceID:  g.AcquisitionSourceID,
			MatchedQuantity:      d.decimal(g.MatchedQuantity),
			Proceeds:             d.decimal(g.Proceeds),
			CostBasis:            d.decimal(g.CostBasis),
			GainOrLoss:           d.decimal(g.GainOrLoss),
			IsLongTerm:           g.IsLongTerm,
		})
	}
	for _, u := range p.Unmatched {
		report.Unmatched = append(report.Unmatched, taxlots.UnmatchedDisposal{
			AssetID:           u.AssetID,
			SourceID:          u.SourceID,
			Timestamp:         millis(u.Timestamp),
			DisposedQuantity:  d.decimal(u.DisposedQuantity),
			UnmatchedQuantity: d.decimal(u.UnmatchedQuantity),
		})
	}
	for _, s := range p.Skipped {
		report.Skipped = append(report.Skipped, valuation.Skipped{
			SourceID:  s.SourceID,
			Timestamp: millis(s.Timestamp),
			Asset:     s.Asset,
			Reason:    s.Reason,
		})
	}

	if d.err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", p.ID, d.err)
	}
	return report, nil
}
