package ledger

import (
	"github.com/shopspring/decimal"

	"ledgercore/internal/models"
)

// Request is one balance mutation. Amount is a positive magnitude in
// the asset's smallest unit; Kind implies the sign. OperationID is the
// caller-supplied idempotency key: retries with the same
// (OperationID, Kind) apply at most once.
type Request struct {
	Kind        Kind
	UserID      uint
	Asset       string
	Amount      decimal.Decimal
	OperationID string
	Metadata    models.JSON
}

// Result is the structured outcome of a mutation. Status is a code from
// internal/errors (or StatusCompleted); callers branch on it rather
// than catching errors.
type Result struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Balance decimal.Decimal `json:"balance"`
}

// TipRequest moves an amount between two users' wallets.
type TipRequest struct {
	FromUserID  uint
	ToUserID    uint
	Asset       string
	Amount      decimal.Decimal
	OperationID string
}

// VaultDirection selects which way a vault transfer moves value.
type VaultDirection string

const (
	VaultIn  VaultDirection = "deposit"
	VaultOut VaultDirection = "withdraw"
)

// VaultRequest moves an amount between a user's spending wallet and
// their vault wallet.
type VaultRequest struct {
	UserID      uint
	Asset       string
	Amount      decimal.Decimal
	Direction   VaultDirection
	OperationID string
}

// TransferResult reports both legs of a two-sided transfer. The legs
// are independent operations with distinct operation ids; Success means
// both committed.
type TransferResult struct {
	Success bool   `json:"success"`
	Debit   Result `json:"debit"`
	Credit  Result `json:"credit"`
}

// Claim is one asset's commission amount inside a multi-asset claim.
type Claim struct {
	Asset  string
	Amount decimal.Decimal
}

// ClaimRequest credits several assets at once. Each asset gets its own
// operation id derived from OperationID; reusing one id across assets
// would collide on the idempotency key and drop all but one credit.
type ClaimRequest struct {
	UserID      uint
	Claims      []Claim
	OperationID string
}

// AssetConfig is the per-asset surface: smallest-unit scale, balance
// ceiling, and the fractional precision a request amount may carry.
type AssetConfig struct {
	// Decimals is the power of ten between the display unit and the
	// smallest unit (8 for a BTC-like asset).
	Decimals int32
	// MaxBalance caps the wallet balance, in smallest units.
	MaxBalance decimal.Decimal
	// MaxAmountDecimals bounds fractional digits in request amounts.
	// Smallest-unit amounts are integers, so this is normally 0.
	MaxAmountDecimals int32
}

// KindConfig holds per-kind amount thresholds, in smallest units.
// A zero bound means unbounded.
type KindConfig struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Config is the ledger's tunable surface. NewService fills zero fields
// with defaults.
type Config struct {
	Assets             map[string]AssetConfig
	Kinds              map[Kind]KindConfig
	DailyWithdrawLimit decimal.Decimal
}
