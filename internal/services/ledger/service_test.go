package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "ledgercore/internal/errors"
	"ledgercore/internal/lock"
	"ledgercore/internal/models"
	"ledgercore/internal/repositories"
)

// memRepo is an in-memory LedgerRepository with snapshot-rollback
// transaction semantics, enough to exercise the engine's state machine.
type memRepo struct {
	mu      sync.Mutex
	users   map[uint]*models.User
	wallets map[string]*models.Wallet
	history map[string]*models.BalanceHistory
	nextID  uint

	createHistoryHook func(*models.BalanceHistory) error
	failUpdateWallet  error

	txDeadline    time.Time
	txHasDeadline bool

	// racedRow emulates a row committed by another process on a
	// different connection: it survives this repo's rollbacks.
	racedRow *models.BalanceHistory
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:   make(map[uint]*models.User),
		wallets: make(map[string]*models.Wallet),
		history: make(map[string]*models.BalanceHistory),
	}
}

func walletKey(userID uint, asset string) string {
	return fmt.Sprintf("%d:%s", userID, asset)
}

func historyKey(operationID, operation string) string {
	return operationID + "|" + operation
}

func (r *memRepo) GetUser(_ context.Context, userID uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *memRepo) GetWallet(_ context.Context, userID uint, asset string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.wallets[walletKey(userID, asset)]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	cp := *wallet
	return &cp, nil
}

func (r *memRepo) GetWalletForUpdate(ctx context.Context, userID uint, asset string) (*models.Wallet, error) {
	return r.GetWallet(ctx, userID, asset)
}

func (r *memRepo) CreateWallet(_ context.Context, wallet *models.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	wallet.ID = r.nextID
	cp := *wallet
	r.wallets[walletKey(wallet.UserID, wallet.Asset)] = &cp
	return nil
}

func (r *memRepo) UpdateWalletBalance(_ context.Context, walletID uint, balance decimal.Decimal) error {
	if r.failUpdateWallet != nil {
		return r.failUpdateWallet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.ID == walletID {
			w.Balance = balance
			return nil
		}
	}
	return repositories.ErrWalletNotFound
}

func (r *memRepo) GetHistory(_ context.Context, operationID, operation string) (*models.BalanceHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.history[historyKey(operationID, operation)]
	if !ok {
		if r.racedRow != nil && historyKey(r.racedRow.OperationID, r.racedRow.Operation) == historyKey(operationID, operation) {
			cp := *r.racedRow
			return &cp, nil
		}
		return nil, repositories.ErrHistoryNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *memRepo) CreateHistory(_ context.Context, entry *models.BalanceHistory) error {
	if r.createHistoryHook != nil {
		if err := r.createHistoryHook(entry); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := historyKey(entry.OperationID, entry.Operation)
	if _, exists := r.history[key]; exists {
		return repositories.ErrDuplicateOperation
	}
	entry.CreatedAt = time.Now()
	cp := *entry
	r.history[key] = &cp
	return nil
}

func (r *memRepo) DailyOperationTotal(_ context.Context, userID uint, asset, operation string, start, end time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, e := range r.history {
		if e.UserID == userID && e.Asset == asset && e.Operation == operation &&
			!e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			total = total.Add(e.Amount.Abs())
		}
	}
	return total, nil
}

func (r *memRepo) ExecuteInTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	r.mu.Lock()
	r.txDeadline, r.txHasDeadline = ctx.Deadline()
	walletSnap := make(map[string]*models.Wallet, len(r.wallets))
	for k, v := range r.wallets {
		cp := *v
		walletSnap[k] = &cp
	}
	historySnap := make(map[string]*models.BalanceHistory, len(r.history))
	for k, v := range r.history {
		cp := *v
		historySnap[k] = &cp
	}
	idSnap := r.nextID
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.wallets = walletSnap
		r.history = historySnap
		r.nextID = idSnap
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) historyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// fakeLocker hands out leases without a coordination store and counts
// usage so tests can assert lock discipline. busyResources maps a
// resource to how many acquires should fail before it frees up.
type fakeLocker struct {
	mu            sync.Mutex
	busy          bool
	busyResources map[string]int
	acquired      []string
	released      int
	extended      int
	releaseCtxErr error
}

func (l *fakeLocker) Acquire(_ context.Context, resource string, _ time.Duration) (*lock.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return nil, lock.ErrLockBusy
	}
	if n := l.busyResources[resource]; n > 0 {
		l.busyResources[resource] = n - 1
		return nil, lock.ErrLockBusy
	}
	l.acquired = append(l.acquired, resource)
	return &lock.Lease{Resource: resource, Token: "t", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (l *fakeLocker) Extend(_ context.Context, _ *lock.Lease, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extended++
	return nil
}

func (l *fakeLocker) Release(ctx context.Context, _ *lock.Lease) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	l.releaseCtxErr = ctx.Err()
}

func (l *fakeLocker) acquireCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.acquired)
}

type fakeRates struct{}

func (fakeRates) ToCents(string, string) int64 { return 100 }

func newTestService(repo *memRepo, locker *fakeLocker, cfg Config) Service {
	return NewService(repo, locker, fakeRates{}, nil, cfg)
}

func seedWallet(repo *memRepo, userID uint, asset, balance string) {
	repo.nextID++
	repo.wallets[walletKey(userID, asset)] = &models.Wallet{
		ID:        repo.nextID,
		UserID:    userID,
		Asset:     asset,
		Balance:   decimal.RequireFromString(balance),
		IsPrimary: true,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestUpdateBalance_Validation(t *testing.T) {
	tests := []struct {
		name       string
		req        Request
		wantStatus string
	}{
		{
			name:       "unknown kind",
			req:        Request{Kind: "jackpot", UserID: 1, Asset: "BTC", Amount: dec("1000"), OperationID: "op-1"},
			wantStatus: domainerrors.CodeInvalidOperation,
		},
		{
			name:       "missing operation id",
			req:        Request{Kind: KindDeposit, UserID: 1, Asset: "BTC", Amount: dec("1000")},
			wantStatus: domainerrors.CodeInvalidOperation,
		},
		{
			name:       "unsupported asset",
			req:        Request{Kind: KindDeposit, UserID: 1, Asset: "DOGE", Amount: dec("1000"), OperationID: "op-1"},
			wantStatus: domainerrors.CodeAssetNotSupported,
		},
		{
			name:       "zero amount",
			req:        Request{Kind: KindDeposit, UserID: 1, Asset: "BTC", Amount: decimal.Zero, OperationID: "op-1"},
			wantStatus: domainerrors.CodeInvalidOperation,
		},
		{
			name:       "negative amount",
			req:        Request{Kind: KindDeposit, UserID: 1, Asset: "BTC", Amount: dec("-5"), OperationID: "op-1"},
			wantStatus: domainerrors.CodeInvalidOperation,
		},
		{
			name:       "fractional smallest units",
			req:        Request{Kind: KindDeposit, UserID: 1, Asset: "BTC", Amount: dec("10.5"), OperationID: "op-1"},
			wantStatus: domainerrors.CodePrecisionExceedsMax,
		},
		{
			name:       "deposit below minimum",
			req:        Request{Kind: KindDeposit, UserID: 1, Asset: "BTC", Amount: dec("1"), OperationID: "op-1"},
			wantStatus: domainerrors.CodeDepositAmountTooSmall,
		},
		{
			name:       "withdraw above maximum",
			req:        Request{Kind: KindWithdraw, UserID: 1, Asset: "BTC", Amount: dec("900000000000000"), OperationID: "op-1"},
			wantStatus: domainerrors.CodeWithdrawAmountTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			locker := &fakeLocker{}
			svc := newTestService(repo, locker, Config{})

			res := svc.UpdateBalance(context.Background(), tt.req)

			assert.False(t, res.Success)
			assert.Equal(t, tt.wantStatus, res.Status)
			// Validation failures must not touch the coordinator.
			assert.Zero(t, locker.acquireCount())
			assert.Zero(t, repo.historyCount())
		})
	}
}

func TestUpdateBalance_WithdrawOverBalanceRejected(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindWithdraw, UserID: 1, Asset: "BTC",
		Amount: dec("200000000"), OperationID: "wd-1",
	})

	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeInsufficientBalance, res.Status)

	wallet, err := repo.GetWallet(context.Background(), 1, "BTC")
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("100000000")), "balance must be untouched")
	assert.Zero(t, repo.historyCount())
}

func TestUpdateBalance_DepositAppliesOnce(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	req := Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-1",
	}

	res := svc.UpdateBalance(context.Background(), req)
	require.True(t, res.Success)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.Balance.Equal(dec("150000000")))
	assert.Equal(t, 1, repo.historyCount())

	// Resubmission of the same (operationId, kind) replays the outcome.
	replay := svc.UpdateBalance(context.Background(), req)
	require.True(t, replay.Success)
	assert.Equal(t, domainerrors.CodeOperationExists, replay.Status)
	assert.True(t, replay.Balance.Equal(dec("150000000")))
	assert.Equal(t, 1, repo.historyCount(), "no second row for a retry")

	wallet, err := repo.GetWallet(context.Background(), 1, "BTC")
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("150000000")), "delta applied exactly once")
}

func TestUpdateBalance_BetThenWin(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	bet := svc.UpdateBalance(context.Background(), Request{
		Kind: KindBet, UserID: 1, Asset: "BTC",
		Amount: dec("10000000"), OperationID: "round-9",
	})
	require.True(t, bet.Success)
	assert.True(t, bet.Balance.Equal(dec("90000000")))

	win := svc.UpdateBalance(context.Background(), Request{
		Kind: KindWin, UserID: 1, Asset: "BTC",
		Amount: dec("20000000"), OperationID: "round-9-win",
	})
	require.True(t, win.Success)
	assert.True(t, win.Balance.Equal(dec("110000000")))
	assert.Equal(t, 2, repo.historyCount())
}

func TestUpdateBalance_SameCorrelationIDDifferentKinds(t *testing.T) {
	// A bet and its paired win may share the caller's correlation id:
	// the composite key (operationId, kind) keeps them distinct rows.
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	bet := svc.UpdateBalance(context.Background(), Request{
		Kind: KindBet, UserID: 1, Asset: "BTC",
		Amount: dec("10000000"), OperationID: "round-7",
	})
	win := svc.UpdateBalance(context.Background(), Request{
		Kind: KindWin, UserID: 1, Asset: "BTC",
		Amount: dec("20000000"), OperationID: "round-7",
	})

	require.True(t, bet.Success)
	require.True(t, win.Success)
	assert.True(t, win.Balance.Equal(dec("110000000")))
	assert.Equal(t, 2, repo.historyCount())
}

func TestUpdateBalance_LockBusy(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{busy: true}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-2",
	})

	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeLockBusy, res.Status)
	assert.Zero(t, repo.historyCount())
}

func TestUpdateBalance_BalanceCeiling(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	cfg := Config{
		Assets: map[string]AssetConfig{
			"BTC": {Decimals: 8, MaxBalance: dec("120000000")},
		},
	}
	svc := newTestService(repo, &fakeLocker{}, cfg)

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-3",
	})

	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeBalanceExceedsMaximum, res.Status)
	wallet, _ := repo.GetWallet(context.Background(), 1, "BTC")
	assert.True(t, wallet.Balance.Equal(dec("100000000")))
}

func TestUpdateBalance_AutoProvisionOnCredit(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeLocker{}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 7, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-4",
	})

	require.True(t, res.Success)
	assert.True(t, res.Balance.Equal(dec("50000000")))
	wallet, err := repo.GetWallet(context.Background(), 7, "BTC")
	require.NoError(t, err)
	assert.True(t, wallet.IsPrimary)
}

func TestUpdateBalance_DebitMissingWallet(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeLocker{}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindWithdraw, UserID: 7, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "wd-2",
	})

	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeWalletNotFound, res.Status)
}

func TestUpdateBalance_UserBanned(t *testing.T) {
	repo := newMemRepo()
	repo.users[1] = &models.User{ID: 1, Status: models.UserStatusBanned}
	seedWallet(repo, 1, "BTC", "100000000")
	locker := &fakeLocker{}
	svc := newTestService(repo, locker, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindBet, UserID: 1, Asset: "BTC",
		Amount: dec("10000000"), OperationID: "bet-1",
	})

	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeUserBanned, res.Status)
	assert.Zero(t, locker.acquireCount())
}

func TestUpdateBalance_DailyWithdrawLimit(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	cfg := Config{DailyWithdrawLimit: dec("30000000")}
	svc := newTestService(repo, &fakeLocker{}, cfg)

	first := svc.UpdateBalance(context.Background(), Request{
		Kind: KindWithdraw, UserID: 1, Asset: "BTC",
		Amount: dec("20000000"), OperationID: "wd-3",
	})
	require.True(t, first.Success)

	second := svc.UpdateBalance(context.Background(), Request{
		Kind: KindWithdraw, UserID: 1, Asset: "BTC",
		Amount: dec("20000000"), OperationID: "wd-4",
	})
	assert.False(t, second.Success)
	assert.Equal(t, domainerrors.CodeDailyLimitReached, second.Status)
}

func TestUpdateBalance_DuplicateInsertRace(t *testing.T) {
	// Two processes raced on the same retry: the other side commits
	// between our pre-read and our insert, so the insert hits the
	// unique constraint. The engine resolves it as an idempotent
	// replay, not a conflict.
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	repo.createHistoryHook = func(entry *models.BalanceHistory) error {
		// The competing commit lands just before ours.
		committed := *entry
		committed.Balance = dec("150000000")
		committed.CreatedAt = time.Now()
		repo.mu.Lock()
		repo.racedRow = &committed
		repo.mu.Unlock()
		return repositories.ErrDuplicateOperation
	}
	svc := newTestService(repo, &fakeLocker{}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-9",
	})

	require.True(t, res.Success)
	assert.Equal(t, domainerrors.CodeOperationExists, res.Status)
	assert.True(t, res.Balance.Equal(dec("150000000")))
}

func TestUpdateBalance_TransactionFailure(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	repo.failUpdateWallet = fmt.Errorf("connection reset")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-5",
	})

	assert.False(t, res.Success)
	assert.Equal(t, domainerrors.CodeDatabaseTransaction, res.Status)
	// Rolled back: neither the history row nor the wallet update landed.
	assert.Zero(t, repo.historyCount())
	wallet, _ := repo.GetWallet(context.Background(), 1, "BTC")
	assert.True(t, wallet.Balance.Equal(dec("100000000")))

	// A retry with the same operationId succeeds once the fault clears.
	repo.failUpdateWallet = nil
	retry := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-5",
	})
	require.True(t, retry.Success)
	assert.True(t, retry.Balance.Equal(dec("150000000")))
}

func TestUpdateBalance_TrailingZerosAccepted(t *testing.T) {
	// 50000000.00 carries no fractional precision; only amounts with a
	// real fractional part may be rejected.
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000.00"), OperationID: "dep-10",
	})

	require.True(t, res.Success, res.Status)
	assert.True(t, res.Balance.Equal(dec("150000000")))
}

func TestUpdateBalance_TransactionBoundedByLeaseTier(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	start := time.Now()
	res := svc.UpdateBalance(context.Background(), Request{
		Kind: KindBet, UserID: 1, Asset: "BTC",
		Amount: dec("10000000"), OperationID: "bet-9",
	})
	require.True(t, res.Success)
	require.True(t, repo.txHasDeadline)
	assert.WithinDuration(t, start.Add(lock.TTLFast), repo.txDeadline, time.Second,
		"a fast-tier transaction must not outlive its lease")

	// Slower tiers keep the processing timeout as the bound.
	start = time.Now()
	res = svc.UpdateBalance(context.Background(), Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("10000000"), OperationID: "dep-11",
	})
	require.True(t, res.Success)
	assert.WithinDuration(t, start.Add(DefaultProcessingTimeout), repo.txDeadline, time.Second)
}

func TestUpdateBalance_ReleaseShieldedFromCallerCancel(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	locker := &fakeLocker{}
	svc := newTestService(repo, locker, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.UpdateBalance(ctx, Request{
		Kind: KindDeposit, UserID: 1, Asset: "BTC",
		Amount: dec("50000000"), OperationID: "dep-12",
	})

	require.True(t, res.Success)
	assert.Equal(t, 1, locker.released)
	assert.NoError(t, locker.releaseCtxErr, "release must not see the caller's cancellation")
}

func TestGetBalance(t *testing.T) {
	repo := newMemRepo()
	seedWallet(repo, 1, "BTC", "100000000")
	svc := newTestService(repo, &fakeLocker{}, Config{})

	balance, err := svc.GetBalance(context.Background(), 1, "BTC")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("100000000")))

	_, err = svc.GetBalance(context.Background(), 2, "BTC")
	assert.ErrorIs(t, err, domainerrors.ErrWalletNotFound)
}
