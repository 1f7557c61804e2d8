package errors

// Status codes for balance mutations. Handlers map these straight onto
// API responses, so the codes are part of the external contract.
const (
	CodeInsufficientBalance    = "INSUFFICIENT_BALANCE"
	CodeDailyLimitReached      = "DAILY_LIMIT_REACHED"
	CodeWalletNotFound         = "WALLET_NOT_FOUND"
	CodeInvalidOperation       = "INVALID_OPERATION"
	CodeBalanceNegative        = "BALANCE_NEGATIVE"
	CodeBalanceExceedsMaximum  = "BALANCE_EXCEEDS_MAXIMUM"
	CodePrecisionExceedsMax    = "PRECISION_EXCEEDS_MAXIMUM"
	CodeAssetNotSupported      = "ASSET_NOT_SUPPORTED"
	CodeDepositAmountTooSmall  = "DEPOSIT_AMOUNT_TOO_SMALL"
	CodeDepositAmountTooLarge  = "DEPOSIT_AMOUNT_TOO_LARGE"
	CodeWithdrawAmountTooSmall = "WITHDRAW_AMOUNT_TOO_SMALL"
	CodeWithdrawAmountTooLarge = "WITHDRAW_AMOUNT_TOO_LARGE"
	CodeOperationExists        = "OPERATION_EXISTS"
	CodeUserBanned             = "USER_BANNED"
	CodeDatabaseTransaction    = "DATABASE_TRANSACTION_ERROR"
	CodeLockBusy               = "LOCK_BUSY"
)

var (
	ErrInsufficientBalance = &DomainError{
		Code:    CodeInsufficientBalance,
		Message: "insufficient wallet balance",
	}
	ErrDailyLimitReached = &DomainError{
		Code:    CodeDailyLimitReached,
		Message: "daily withdrawal limit reached",
	}
	ErrWalletNotFound = &DomainError{
		Code:    CodeWalletNotFound,
		Message: "wallet not found",
	}
	ErrInvalidOperation = &DomainError{
		Code:    CodeInvalidOperation,
		Message: "invalid operation",
	}
	ErrBalanceNegative = &DomainError{
		Code:    CodeBalanceNegative,
		Message: "operation would make balance negative",
	}
	ErrBalanceExceedsMaximum = &DomainError{
		Code:    CodeBalanceExceedsMaximum,
		Message: "operation would exceed maximum wallet balance",
	}
	ErrPrecisionExceedsMaximum = &DomainError{
		Code:    CodePrecisionExceedsMax,
		Message: "amount precision exceeds asset maximum",
	}
	ErrAssetNotSupported = &DomainError{
		Code:    CodeAssetNotSupported,
		Message: "asset is not supported",
	}
	ErrDepositAmountTooSmall = &DomainError{
		Code:    CodeDepositAmountTooSmall,
		Message: "deposit amount below minimum",
	}
	ErrDepositAmountTooLarge = &DomainError{
		Code:    CodeDepositAmountTooLarge,
		Message: "deposit amount above maximum",
	}
	ErrWithdrawAmountTooSmall = &DomainError{
		Code:    CodeWithdrawAmountTooSmall,
		Message: "withdrawal amount below minimum",
	}
	ErrWithdrawAmountTooLarge = &DomainError{
		Code:    CodeWithdrawAmountTooLarge,
		Message: "withdrawal amount above maximum",
	}
	ErrOperationExists = &DomainError{
		Code:    CodeOperationExists,
		Message: "operation already applied",
	}
	ErrUserBanned = &DomainError{
		Code:    CodeUserBanned,
		Message: "user is banned",
	}
	ErrDatabaseTransaction = &DomainError{
		Code:    CodeDatabaseTransaction,
		Message: "database transaction failed",
	}
	ErrLockBusy = &DomainError{
		Code:    CodeLockBusy,
		Message: "wallet is busy, try again",
	}
)
