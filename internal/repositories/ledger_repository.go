package repositories

import (
	"context"
	"time"

	"ledgercore/internal/models"

	"github.com/shopspring/decimal"
)

// LedgerRepository defines the database operations behind the ledger
// engine. The ForUpdate read and the history insert are only meaningful
// inside ExecuteInTransaction.
type LedgerRepository interface {
	// User operations
	GetUser(ctx context.Context, userID uint) (*models.User, error)

	// Wallet operations
	GetWallet(ctx context.Context, userID uint, asset string) (*models.Wallet, error)
	GetWalletForUpdate(ctx context.Context, userID uint, asset string) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	UpdateWalletBalance(ctx context.Context, walletID uint, balance decimal.Decimal) error

	// History operations
	GetHistory(ctx context.Context, operationID, operation string) (*models.BalanceHistory, error)
	CreateHistory(ctx context.Context, entry *models.BalanceHistory) error
	DailyOperationTotal(ctx context.Context, userID uint, asset, operation string, start, end time.Time) (decimal.Decimal, error)

	// Transactional execution
	ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error
}
