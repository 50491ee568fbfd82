package di

import (
	"github.com/aristath/cointax/internal/modules/auth"
	"github.com/aristath/cointax/internal/modules/taxreport"
	"github.com/aristath/cointax/internal/modules/transactions"
	"github.com/aristath/cointax/internal/modules/wallets"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.WalletRepo = wallets.NewRepository(container.LedgerDB.Conn(), log)
	container.TransactionRepo = transactions.NewRepository(container.LedgerDB.Conn(), log)
	container.UserRepo = auth.NewRepository(container.AccountsDB.Conn(), log)
	container.SnapshotRepo = taxreport.NewSnapshotRepository(container.CacheDB.Conn(), log)
	return nil
}
