package taxreport

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aristath/cointax/internal/modules/taxlots"
	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/modules/valuation"
	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/aristath/cointax/internal/utils"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// WalletLookup resolves the wallet a report is requested for
type WalletLookup interface {
	GetByID(id string) (*wallets.Wallet, error)
}

// TransactionSource loads a wallet's history in chronological order
type TransactionSource interface {
	GetInRange(walletID string, start, end time.Time) ([]transactions.Transaction, error)
}

// SnapshotStore persists generated reports
type SnapshotStore interface {
	Save(report *Report) error
	Get(id string) (*Report, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Service generates tax reports. Assets are matched in parallel, one
// matcher call per asset, bounded by the configured worker count.
type Service struct {
	wallets   WalletLookup
	txs       TransactionSource
	snapshots SnapshotStore
	cache     *cache.Cache
	workers   int
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new report service. Generated reports are cached for
// cacheTTL until a wallet edit invalidates them.
func NewService(
	walletLookup WalletLookup,
	txs TransactionSource,
	snapshots SnapshotStore,
	cacheTTL time.Duration,
	workers int,
	log zerolog.Logger,
) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		wallets:   walletLookup,
		txs:       txs,
		snapshots: snapshots,
		cache:     cache.New(cacheTTL, 2*cacheTTL),
		workers:   workers,
		now:       time.Now,
		log:       log.With().Str("service", "taxreport").Logger(),
	}
}

func cacheKey(req Request) string {
	return fmt.Sprintf("%s|%d|%d|%s", req.WalletID, req.StartDate.Unix(), req.EndDate.Unix(), req.Method)
}

// Generate builds the report for req. Lots acquired before the window still
// back disposals inside it; only gains, unmatched disposals, trades and
// skipped rows dated inside the window are reported.
func (s *Service) Generate(ctx context.Context, req Request) (*Report, error) {
	if req.Method == "" {
		req.Method = taxlots.FIFO
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	key := cacheKey(req)
	if cached, ok := s.cache.Get(key); ok {
		s.log.Debug().Str("wallet_id", req.WalletID).Msg("Report served from cache")
		return cached.(*Report), nil
	}

	defer utils.OperationTimer("generate_tax_report", s.log)()

	if _, err := s.wallets.GetByID(req.WalletID); err != nil {
		return nil, err
	}

	history, err := s.txs.GetInRange(req.WalletID, time.Time{}, req.EndDate)
	if err != nil {
		return nil, err
	}
	batch := valuation.Valuate(history)
	assets := batch.Assets()

	results := make([]taxlots.Result, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := taxlots.Match(batch.Events[asset], req.Method)
			if err != nil {
				return fmt.Errorf("asset %s: %w", asset, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := s.assemble(req, assets, batch, results)
	s.cache.SetDefault(key, report)

	if s.snapshots != nil {
		if err := s.snapshots.Save(report); err != nil {
			s.log.Warn().Err(err).Str("report_id", report.ID).Msg("Failed to store report snapshot")
		}
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("wallet_id", req.WalletID).
		Str("method", req.Method.String()).
		Int("assets", len(assets)).
		Int("gains", len(report.Transactions.Gains)).
		Int("unmatched", len(report.Unmatched)).
		Int("skipped", len(report.Skipped)).
		Msg("Tax report generated")

	return report, nil
}

func (s *Service) assemble(req Request, assets []string, batch valuation.Batch, results []taxlots.Result) *Report {
	var gains []taxlots.CapitalGain
	var unmatched []taxlots.UnmatchedDisposal
	trades := make([]taxlots.ValuedEvent, 0)

	for i, asset := range assets {
		for _, gain := range results[i].Gains {
			if req.contains(gain.DisposalTimestamp) {
				gains = append(gains, gain)
			}
		}
		for _, u := range results[i].Unmatched {
			if req.contains(u.Timestamp) {
				unmatched = append(unmatched, u)
			}
		}
		for _, event := range batch.Events[asset] {
			if req.contains(event.Timestamp) {
				trades = append(trades, event)
			}
		}
	}
	slices.SortStableFunc(trades, func(a, b taxlots.ValuedEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	skipped := make([]valuation.Skipped, 0)
	for _, sk := range batch.Skipped {
		if req.contains(sk.Timestamp) {
			skipped = append(skipped, sk)
		}
	}

	summary := taxlots.Result{Gains: gains, Unmatched: unmatched}.Report()
	if summary.Gains == nil {
		summary.Gains = make([]taxlots.CapitalGain, 0)
	}
	if summary.Unmatched == nil {
		summary.Unmatched = make([]taxlots.UnmatchedDisposal, 0)
	}

	return &Report{
		ID:             uuid.New().String(),
		WalletID:       req.WalletID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Method:         req.Method,
		GeneratedAt:    s.now().UTC(),
		ShortTermGains: summary.ShortTermGains,
		LongTermGains:  summary.LongTermGains,
		TotalGains:     summary.TotalGains,
		Transactions:   Transactions{Trades: trades, Gains: summary.Gains},
		Unmatched:      summary.Unmatched,
		Skipped:        skipped,
	}
}

// Invalidate drops every cached report of a wallet
func (s *Service) Invalidate(walletID string) {
	prefix := walletID + "|"
	dropped := 0
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Debug().Str("wallet_id", walletID).Int("reports", dropped).Msg("Cached reports invalidated")
	}
}

// GetSnapshot returns a previously generated report by id
func (s *Service) GetSnapshot(id string) (*Report, error) {
	if s.snapshots == nil {
		return nil, ErrNotFound
	}
	return s.snapshots.Get(id)
}

// PruneSnapshots removes stored reports generated before cutoff
func (s *Service) PruneSnapshots(cutoff time.Time) (int64, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	removed, err := s.snapshots.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned report snapshots")
	}
	return removed, nil
}
