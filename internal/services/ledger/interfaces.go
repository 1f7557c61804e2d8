package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ledgercore/internal/lock"
)

// Service is the balance-mutation engine.
type Service interface {
	// UpdateBalance applies one operation. All outcomes, including
	// rejections, come back as a Result.
	UpdateBalance(ctx context.Context, req Request) Result

	// Two-sided transfers: two independent operations under a
	// coordinating lease, deltas summing to zero.
	Tip(ctx context.Context, req TipRequest) TransferResult
	VaultTransfer(ctx context.Context, req VaultRequest) TransferResult

	// ClaimCommissions credits several assets, one operation per asset.
	ClaimCommissions(ctx context.Context, req ClaimRequest) []Result

	// GetBalance reads the current wallet balance, in smallest units.
	GetBalance(ctx context.Context, userID uint, asset string) (decimal.Decimal, error)
}

// Locker is the slice of the lock coordinator the engine uses.
type Locker interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (*lock.Lease, error)
	Extend(ctx context.Context, lease *lock.Lease, ttl time.Duration) error
	Release(ctx context.Context, lease *lock.Lease)
}

// RateConverter supplies USD bookkeeping values for history rows.
type RateConverter interface {
	ToCents(asset, amount string) int64
}

// Notifier announces committed balance changes to connected clients.
// Delivery is best-effort; a failed publish never affects the ledger.
type Notifier interface {
	BalanceChanged(ctx context.Context, userID uint, asset string, balance decimal.Decimal)
}

// NoopNotifier drops notifications; used when no realtime channel is wired.
type NoopNotifier struct{}

func (NoopNotifier) BalanceChanged(context.Context, uint, string, decimal.Decimal) {}
