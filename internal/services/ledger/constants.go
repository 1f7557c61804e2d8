package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the category of a balance mutation. The kind implies the sign
// of the delta; request amounts are always positive magnitudes.
type Kind string

const (
	KindDeposit       Kind = "deposit"
	KindWithdraw      Kind = "withdraw"
	KindBet           Kind = "bet"
	KindWin           Kind = "win"
	KindTipSend       Kind = "tip_send"
	KindTipReceive    Kind = "tip_receive"
	KindPromocode     Kind = "promocode"
	KindVaultDeposit  Kind = "vault_deposit"  // debit the spending wallet
	KindVaultCredit   Kind = "vault_credit"   // matching credit on the vault wallet
	KindVaultWithdraw Kind = "vault_withdraw" // credit the spending wallet
	KindVaultDebit    Kind = "vault_debit"    // matching debit on the vault wallet
	KindAffiliate     Kind = "affiliate_claim"
)

// Result statuses for applied operations. Failure statuses live in
// internal/errors next to the rest of the taxonomy.
const (
	StatusCompleted = "COMPLETED"
)

// VaultAssetPrefix scopes a user's vault balance as its own wallet row.
const VaultAssetPrefix = "vault:"

// Defaults filled in by NewService when the config leaves them unset.
var (
	DefaultMinDeposit       = decimal.NewFromInt(1000)
	DefaultMaxDeposit       = decimal.New(1, 15)
	DefaultMinWithdraw      = decimal.NewFromInt(10000)
	DefaultMaxWithdraw      = decimal.New(1, 14)
	DefaultMaxBalance       = decimal.New(1, 16)
	DefaultDailyWithdrawCap = decimal.New(5, 13)
)

const (
	// DefaultProcessingTimeout bounds the database transaction.
	DefaultProcessingTimeout = 10 * time.Second
)
