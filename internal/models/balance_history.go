package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceHistory is the append-only ledger. The composite primary key
// (OperationID, Operation) is the idempotency key: a retry of the same
// logical operation cannot create a second row, and the database's
// uniqueness constraint resolves concurrent retries.
type BalanceHistory struct {
	OperationID    string          `gorm:"primaryKey;size:128"`
	Operation      string          `gorm:"primaryKey;size:32"`
	UserID         uint            `gorm:"not null;index"`
	Asset          string          `gorm:"not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(36,0);not null"`
	Balance        decimal.Decimal `gorm:"type:numeric(36,0);not null"`
	AmountUsdCents int64           `gorm:"not null;default:0"`
	Metadata       JSON            `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

// TableName keeps the table name stable regardless of struct renames.
func (BalanceHistory) TableName() string {
	return "balance_history"
}
