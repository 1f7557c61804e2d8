package repositories

import "errors"

var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrHistoryNotFound    = errors.New("history entry not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateOperation = errors.New("operation already recorded")
)
