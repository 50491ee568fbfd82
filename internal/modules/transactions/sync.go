package transactions

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aristath/cointax/internal/clients/indexer"
	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/rs/zerolog"
)

// approveSelector is the ERC-20 approve(address,uint256) method id
const approveSelector = "0x095ea7b3"

// maxSyncPages bounds a single feed walk
const maxSyncPages = 1000

// WalletSource provides the wallets to sync and records sync completion
type WalletSource interface {
	GetByID(id string) (*wallets.Wallet, error)
	List() ([]wallets.Wallet, error)
	MarkSynced(id string, at time.Time) error
}

// ChainIndexer fetches pages of a wallet's on-chain history
type ChainIndexer interface {
	GetWalletTransactions(ctx context.Context, address string, limit, skip int) ([]indexer.Transaction, error)
	GetTokenTransfers(ctx context.Context, address string, limit, skip int) ([]indexer.TokenTransfer, error)
}

// ReportInvalidator drops cached tax reports for a wallet
type ReportInvalidator interface {
	Invalidate(walletID string)
}

// SyncResult counts the outcome of syncing one wallet
type SyncResult struct {
	Added    int `json:"added"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// SyncService pulls wallet history from the indexer into the repository
type SyncService struct {
	repo        *Repository
	wallets     WalletSource
	indexer     ChainIndexer
	invalidator ReportInvalidator
	pageSize    int
	log         zerolog.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(repo *Repository, walletSource WalletSource, chain ChainIndexer, pageSize int, log zerolog.Logger) *SyncService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &SyncService{
		repo:     repo,
		wallets:  walletSource,
		indexer:  chain,
		pageSize: pageSize,
		log:      log.With().Str("service", "transaction_sync").Logger(),
	}
}

// SetReportInvalidator sets the report cache to clear when new rows arrive
func (s *SyncService) SetReportInvalidator(invalidator ReportInvalidator) {
	s.invalidator = invalidator
}

// SyncWallet fetches both the native and the token feed of a wallet and
// stores every record not seen before.
func (s *SyncService) SyncWallet(ctx context.Context, walletID string) (SyncResult, error) {
	var result SyncResult

	wallet, err := s.wallets.GetByID(walletID)
	if err != nil {
		return result, err
	}

	start := time.Now()
	log := s.log.With().Str("wallet_id", wallet.ID).Str("address", wallet.Address).Logger()

	for page := 0; page < maxSyncPages; page++ {
		txs, err := s.indexer.GetWalletTransactions(ctx, wallet.Address, s.pageSize, page*s.pageSize)
		if err != nil {
			return result, err
		}
		for _, raw := range txs {
			tx, err := fromNativeTransaction(wallet, raw)
			if err != nil {
				log.Warn().Err(err).Str("tx_hash", raw.Hash).Msg("Skipping malformed transaction")
				result.Skipped++
				continue
			}
			if err := s.store(tx, &result); err != nil {
				return result, err
			}
		}
		if len(txs) < s.pageSize {
			break
		}
	}

	for page := 0; page < maxSyncPages; page++ {
		transfers, err := s.indexer.GetTokenTransfers(ctx, wallet.Address, s.pageSize, page*s.pageSize)
		if err != nil {
			return result, err
		}
		for _, raw := range transfers {
			tx, err := fromTokenTransfer(wallet, raw)
			if err != nil {
				log.Warn().Err(err).Str("transfer_id", raw.ID).Msg("Skipping malformed token transfer")
				result.Skipped++
				continue
			}
			if err := s.store(tx, &result); err != nil {
				return result, err
			}
		}
		if len(transfers) < s.pageSize {
			break
		}
	}

	if err := s.wallets.MarkSynced(wallet.ID, time.Now().UTC()); err != nil {
		return result, err
	}
	if result.Added > 0 && s.invalidator != nil {
		s.invalidator.Invalidate(wallet.ID)
	}

	log.Info().
		Int("added", result.Added).
		Int("existing", result.Existing).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Wallet synced")

	return result, nil
}

// SyncAll syncs every wallet in turn. A failing wallet does not stop the
// others; all failures are returned joined.
func (s *SyncService) SyncAll(ctx context.Context) (map[string]SyncResult, error) {
	list, err := s.wallets.List()
	if err != nil {
		return nil, err
	}

	results := make(map[string]SyncResult, len(list))
	var errs []error
	for _, wallet := range list {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result, err := s.SyncWallet(ctx, wallet.ID)
		if err != nil {
			s.log.Error().Err(err).Str("wallet_id", wallet.ID).Msg("Wallet sync failed")
			errs = append(errs, fmt.Errorf("wallet %s: %w", wallet.ID, err))
			continue
		}
		results[wallet.ID] = result
	}

	return results, errors.Join(errs...)
}

func (s *SyncService) store(tx *Transaction, result *SyncResult) error {
	added, err := s.repo.Create(tx)
	if err != nil {
		return err
	}
	if added {
		result.Added++
	} else {
		result.Existing++
	}
	return nil
}

func fromNativeTransaction(wallet *wallets.Wallet, raw indexer.Transaction) (*Transaction, error) {
	timestamp, blockNumber, err := parseChainPosition(raw.Timestamp.String(), raw.BlockNumber.String())
	if err != nil {
		return nil, err
	}
	hash := raw.Hash
	if hash == "" {
		hash = raw.ID
	}

	return &Transaction{
		WalletID:    wallet.ID,
		TxHash:      hash,
		BlockNumber: blockNumber,
		Timestamp:   timestamp,
		From:        raw.From,
		To:          raw.To,
		Value:       defaultString(raw.Value, "0"),
		Decimals:    NativeDecimals,
		GasUsed:     raw.GasUsed,
		GasPrice:    raw.GasPrice,
		Method:      raw.MethodID,
		Status:      true,
		Asset:       NativeAsset,
		Type:        classify(wallet.Address, raw.From, raw.To, raw.MethodID, raw.Value),
		Category:    CategoryUncategorized,
	}, nil
}

func fromTokenTransfer(wallet *wallets.Wallet, raw indexer.TokenTransfer) (*Transaction, error) {
	timestamp, blockNumber, err := parseChainPosition(raw.Timestamp.String(), raw.BlockNumber.String())
	if err != nil {
		return nil, err
	}
	decimals, err := raw.Token.Decimals.Int64()
	if err != nil || decimals < 0 || decimals > 255 {
		return nil, fmt.Errorf("invalid token decimals %q", raw.Token.Decimals)
	}
	hash := raw.Transaction.Hash
	if hash == "" {
		hash = raw.Transaction.ID
	}
	asset := raw.Token.Symbol
	if asset == "" {
		asset = raw.Token.ID
	}

	return &Transaction{
		WalletID:    wallet.ID,
		TxHash:      hash,
		BlockNumber: blockNumber,
		Timestamp:   timestamp,
		From:        raw.From,
		To:          raw.To,
		Value:       defaultString(raw.Value, "0"),
		Decimals:    int32(decimals),
		Method:      "transfer",
		Status:      true,
		Asset:       asset,
		Type:        classify(wallet.Address, raw.From, raw.To, "", raw.Value),
		Category:    CategoryUncategorized,
	}, nil
}

// classify derives the transaction type from the wallet's side of a record
func classify(address, from, to, methodID, value string) string {
	address = strings.ToLower(address)
	switch {
	case strings.EqualFold(methodID, approveSelector):
		return TypeApproval
	case strings.ToLower(from) == address:
		if isZero(value) && methodID != "" && methodID != "0x" {
			return TypeContractInteraction
		}
		return TypeSend
	case strings.ToLower(to) == address:
		return TypeReceive
	default:
		return TypeOther
	}
}

func isZero(value string) bool {
	n, ok := new(big.Int).SetString(value, 10)
	return !ok || n.Sign() == 0
}

func parseChainPosition(timestamp, blockNumber string) (time.Time, int64, error) {
	ts, ok := new(big.Int).SetString(timestamp, 10)
	if !ok || !ts.IsInt64() || ts.Sign() <= 0 {
		return time.Time{}, 0, fmt.Errorf("invalid timestamp %q", timestamp)
	}
	block, ok := new(big.Int).SetString(blockNumber, 10)
	if !ok || !block.IsInt64() {
		return time.Time{}, 0, fmt.Errorf("invalid block number %q", blockNumber)
	}
	return time.Unix(ts.Int64(), 0).UTC(), block.Int64(), nil
}
