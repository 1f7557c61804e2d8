package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "ledgercore/internal/errors"
	"ledgercore/internal/lock"
	"ledgercore/internal/models"
	"ledgercore/internal/repositories"
)

// errRejected aborts the transaction for outcomes that are statuses,
// not faults; the result is already set when it is returned.
var errRejected = errors.New("operation rejected")

type kindSpec struct {
	debit bool
	ttl   time.Duration
}

// TTL tier per kind, sized to the expected cost of the critical section.
var kindSpecs = map[Kind]kindSpec{
	KindDeposit:       {debit: false, ttl: lock.TTLStandard},
	KindWithdraw:      {debit: true, ttl: lock.TTLSlow},
	KindBet:           {debit: true, ttl: lock.TTLFast},
	KindWin:           {debit: false, ttl: lock.TTLFast},
	KindTipSend:       {debit: true, ttl: lock.TTLStandard},
	KindTipReceive:    {debit: false, ttl: lock.TTLStandard},
	KindPromocode:     {debit: false, ttl: lock.TTLStandard},
	KindVaultDeposit:  {debit: true, ttl: lock.TTLStandard},
	KindVaultCredit:   {debit: false, ttl: lock.TTLStandard},
	KindVaultWithdraw: {debit: false, ttl: lock.TTLStandard},
	KindVaultDebit:    {debit: true, ttl: lock.TTLStandard},
	KindAffiliate:     {debit: false, ttl: lock.TTLSlow},
}

type service struct {
	repo     repositories.LedgerRepository
	locks    Locker
	rates    RateConverter
	notifier Notifier
	config   Config
}

// NewService creates the ledger engine.
func NewService(
	repo repositories.LedgerRepository,
	locks Locker,
	rates RateConverter,
	notifier Notifier,
	config Config,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if locks == nil {
		panic("lock coordinator is required")
	}
	if rates == nil {
		panic("rate converter is required")
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	// Set default configuration values if not provided
	if config.Assets == nil {
		config.Assets = map[string]AssetConfig{
			"BTC":  {Decimals: 8, MaxBalance: DefaultMaxBalance},
			"ETH":  {Decimals: 8, MaxBalance: DefaultMaxBalance},
			"LTC":  {Decimals: 8, MaxBalance: DefaultMaxBalance},
			"USDT": {Decimals: 6, MaxBalance: DefaultMaxBalance},
			"USDC": {Decimals: 6, MaxBalance: DefaultMaxBalance},
		}
	}
	if config.Kinds == nil {
		config.Kinds = map[Kind]KindConfig{
			KindDeposit:  {Min: DefaultMinDeposit, Max: DefaultMaxDeposit},
			KindWithdraw: {Min: DefaultMinWithdraw, Max: DefaultMaxWithdraw},
		}
	}
	if config.DailyWithdrawLimit.IsZero() {
		config.DailyWithdrawLimit = DefaultDailyWithdrawCap
	}

	return &service{
		repo:     repo,
		locks:    locks,
		rates:    rates,
		notifier: notifier,
		config:   config,
	}
}

// WalletResource names the lease guarding one wallet.
func WalletResource(userID uint, asset string) string {
	return fmt.Sprintf("wallet:%d:%s", userID, asset)
}

// baseAsset strips the vault scope so config and rate lookups work for
// vault wallets too.
func baseAsset(asset string) string {
	return strings.TrimPrefix(asset, VaultAssetPrefix)
}

func reject(status string) Result {
	return Result{Success: false, Status: status}
}

func (s *service) UpdateBalance(ctx context.Context, req Request) Result {
	spec, assetCfg, result := s.validate(req)
	if result != nil {
		return *result
	}

	if banned, err := s.userBanned(ctx, req.UserID); err != nil {
		return reject(domainerrors.CodeDatabaseTransaction)
	} else if banned {
		return reject(domainerrors.CodeUserBanned)
	}

	lease, err := s.locks.Acquire(ctx, WalletResource(req.UserID, req.Asset), spec.ttl)
	if err != nil {
		if errors.Is(err, lock.ErrLockBusy) {
			return reject(domainerrors.CodeLockBusy)
		}
		log.Printf("ledger: lock acquire for %s failed: %v", WalletResource(req.UserID, req.Asset), err)
		return reject(domainerrors.CodeLockBusy)
	}
	// Shielded from caller cancellation: the lease must come off even
	// when the caller went away after the commit.
	defer s.locks.Release(context.WithoutCancel(ctx), lease)

	res := s.apply(ctx, req, spec, assetCfg)
	if res.Success && res.Status == StatusCompleted {
		// Fire-and-forget: a failed publish never rolls back the entry.
		go s.notifier.BalanceChanged(context.WithoutCancel(ctx), req.UserID, req.Asset, res.Balance)
	}
	return res
}

// validate runs every pre-lock check. A non-nil Result is the rejection
// to return; no lock is taken and nothing is written.
func (s *service) validate(req Request) (kindSpec, AssetConfig, *Result) {
	spec, ok := kindSpecs[req.Kind]
	if !ok {
		r := reject(domainerrors.CodeInvalidOperation)
		return kindSpec{}, AssetConfig{}, &r
	}
	if req.OperationID == "" || req.UserID == 0 {
		r := reject(domainerrors.CodeInvalidOperation)
		return kindSpec{}, AssetConfig{}, &r
	}

	assetCfg, ok := s.config.Assets[baseAsset(req.Asset)]
	if !ok {
		r := reject(domainerrors.CodeAssetNotSupported)
		return kindSpec{}, AssetConfig{}, &r
	}

	if !req.Amount.IsPositive() {
		r := reject(domainerrors.CodeInvalidOperation)
		return kindSpec{}, AssetConfig{}, &r
	}
	if !req.Amount.Truncate(assetCfg.MaxAmountDecimals).Equal(req.Amount) {
		r := reject(domainerrors.CodePrecisionExceedsMax)
		return kindSpec{}, AssetConfig{}, &r
	}

	if kindCfg, ok := s.config.Kinds[req.Kind]; ok {
		if kindCfg.Min.IsPositive() && req.Amount.LessThan(kindCfg.Min) {
			r := reject(tooSmallStatus(spec))
			return kindSpec{}, AssetConfig{}, &r
		}
		if kindCfg.Max.IsPositive() && req.Amount.GreaterThan(kindCfg.Max) {
			r := reject(tooLargeStatus(spec))
			return kindSpec{}, AssetConfig{}, &r
		}
	}

	return spec, assetCfg, nil
}

func tooSmallStatus(spec kindSpec) string {
	if spec.debit {
		return domainerrors.CodeWithdrawAmountTooSmall
	}
	return domainerrors.CodeDepositAmountTooSmall
}

func tooLargeStatus(spec kindSpec) string {
	if spec.debit {
		return domainerrors.CodeWithdrawAmountTooLarge
	}
	return domainerrors.CodeDepositAmountTooLarge
}

func (s *service) userBanned(ctx context.Context, userID uint) (bool, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			// Wallet operations are keyed by id only; account records
			// live in another service and may not be mirrored here.
			return false, nil
		}
		return false, err
	}
	return user.Status == models.UserStatusBanned, nil
}

// apply runs the transactional read-modify-write while the lease is held.
// The transaction bound is capped at the kind's lease tier: the critical
// section must never outlive the lease it runs under.
func (s *service) apply(ctx context.Context, req Request, spec kindSpec, assetCfg AssetConfig) Result {
	timeout := DefaultProcessingTimeout
	if spec.ttl < timeout {
		timeout = spec.ttl
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result Result

	txErr := s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		// Idempotent replay fast path: the operation already committed.
		if prior, err := tx.GetHistory(ctx, req.OperationID, string(req.Kind)); err == nil {
			result = Result{Success: true, Status: domainerrors.CodeOperationExists, Balance: prior.Balance}
			return nil
		} else if !errors.Is(err, repositories.ErrHistoryNotFound) {
			return err
		}

		wallet, err := tx.GetWalletForUpdate(ctx, req.UserID, req.Asset)
		if err != nil {
			if !errors.Is(err, repositories.ErrWalletNotFound) {
				return err
			}
			if spec.debit {
				result = reject(domainerrors.CodeWalletNotFound)
				return errRejected
			}
			// First credit provisions the wallet; the insert gives this
			// transaction the row lock.
			wallet = &models.Wallet{
				UserID:    req.UserID,
				Asset:     req.Asset,
				Balance:   decimal.Zero,
				IsPrimary: !strings.HasPrefix(req.Asset, VaultAssetPrefix),
			}
			if err := tx.CreateWallet(ctx, wallet); err != nil {
				return err
			}
		}

		delta := req.Amount
		if spec.debit {
			delta = delta.Neg()

			if req.Kind == KindWithdraw {
				if ok, err := s.withinDailyLimit(ctx, tx, req); err != nil {
					return err
				} else if !ok {
					result = reject(domainerrors.CodeDailyLimitReached)
					return errRejected
				}
			}
		}

		newBalance := wallet.Balance.Add(delta)
		if newBalance.IsNegative() {
			if spec.debit {
				result = reject(domainerrors.CodeInsufficientBalance)
			} else {
				result = reject(domainerrors.CodeBalanceNegative)
			}
			return errRejected
		}
		if assetCfg.MaxBalance.IsPositive() && newBalance.GreaterThan(assetCfg.MaxBalance) {
			result = reject(domainerrors.CodeBalanceExceedsMaximum)
			return errRejected
		}

		entry := &models.BalanceHistory{
			OperationID:    req.OperationID,
			Operation:      string(req.Kind),
			UserID:         req.UserID,
			Asset:          req.Asset,
			Amount:         delta,
			Balance:        newBalance,
			AmountUsdCents: s.usdCents(req.Asset, req.Amount, assetCfg),
			Metadata:       req.Metadata,
		}
		if err := tx.CreateHistory(ctx, entry); err != nil {
			// Duplicate key aborts the transaction; the race is resolved
			// by re-reading the committed row outside.
			return err
		}
		if err := tx.UpdateWalletBalance(ctx, wallet.ID, newBalance); err != nil {
			return err
		}

		result = Result{Success: true, Status: StatusCompleted, Balance: newBalance}
		return nil
	})

	switch {
	case txErr == nil:
		return result
	case errors.Is(txErr, errRejected):
		return result
	case errors.Is(txErr, repositories.ErrDuplicateOperation):
		// Another process committed the same (operationId, kind) while we
		// held the row lock open. Same idempotent-replay outcome as the
		// pre-read path.
		if prior, err := s.repo.GetHistory(ctx, req.OperationID, string(req.Kind)); err == nil {
			return Result{Success: true, Status: domainerrors.CodeOperationExists, Balance: prior.Balance}
		}
		log.Printf("ledger: duplicate op %s/%s but committed row unreadable", req.OperationID, req.Kind)
		return reject(domainerrors.CodeDatabaseTransaction)
	default:
		log.Printf("ledger: transaction for op %s/%s failed: %v", req.OperationID, req.Kind, txErr)
		return reject(domainerrors.CodeDatabaseTransaction)
	}
}

func (s *service) withinDailyLimit(ctx context.Context, tx repositories.LedgerRepository, req Request) (bool, error) {
	if !s.config.DailyWithdrawLimit.IsPositive() {
		return true, nil
	}
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	total, err := tx.DailyOperationTotal(ctx, req.UserID, req.Asset, string(KindWithdraw), startOfDay, startOfDay.Add(24*time.Hour))
	if err != nil {
		return false, err
	}
	return !total.Add(req.Amount).GreaterThan(s.config.DailyWithdrawLimit), nil
}

// usdCents values the operation for audit rows. The rate cache never
// fails a conversion, so this cannot block a commit.
func (s *service) usdCents(asset string, amount decimal.Decimal, assetCfg AssetConfig) int64 {
	display := amount.Shift(-assetCfg.Decimals)
	return s.rates.ToCents(baseAsset(asset), display.String())
}

func (s *service) GetBalance(ctx context.Context, userID uint, asset string) (decimal.Decimal, error) {
	wallet, err := s.repo.GetWallet(ctx, userID, asset)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return decimal.Zero, domainerrors.ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}
