package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgercore/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *ledgerRepository) GetWallet(ctx context.Context, userID uint, asset string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND asset = ?", userID, asset).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// GetWalletForUpdate reads the wallet row under SELECT ... FOR UPDATE so
// a holder of the distributed lease also serializes against any direct
// DB writer. Only call inside ExecuteInTransaction.
func (r *ledgerRepository) GetWalletForUpdate(ctx context.Context, userID uint, asset string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND asset = ?", userID, asset).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet row: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) UpdateWalletBalance(ctx context.Context, walletID uint, balance decimal.Decimal) error {
	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", balance).Error
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetHistory(ctx context.Context, operationID, operation string) (*models.BalanceHistory, error) {
	var entry models.BalanceHistory
	err := r.db.WithContext(ctx).
		Where("operation_id = ? AND operation = ?", operationID, operation).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return &entry, nil
}

// CreateHistory appends one ledger row. A unique violation on the
// (operation_id, operation) primary key surfaces as
// ErrDuplicateOperation so the caller can resolve the idempotent-replay
// race.
func (r *ledgerRepository) CreateHistory(ctx context.Context, entry *models.BalanceHistory) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateOperation
		}
		return fmt.Errorf("failed to create history entry: %w", err)
	}
	return nil
}

func (r *ledgerRepository) DailyOperationTotal(ctx context.Context, userID uint, asset, operation string, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.BalanceHistory{}).
		Where("user_id = ? AND asset = ? AND operation = ? AND created_at BETWEEN ? AND ?",
			userID, asset, operation, start, end).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get daily operation total: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}
