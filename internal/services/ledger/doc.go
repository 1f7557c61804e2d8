/*
Package ledger implements the idempotent balance-mutation engine.

Every balance change (deposits, withdrawals, bets, wins, tips,
promotional credits, vault transfers, commission claims) flows through
UpdateBalance, which:

  - validates the request before taking any lock
  - serializes access to the wallet across processes via a Redis lease
  - applies the delta in a database transaction under a row lock
  - uses the (operationId, operation) primary key of the history table
    as the idempotency key, so retries apply at most once
  - publishes a best-effort balance-changed notification

Amounts are decimal throughout (shopspring/decimal), denominated in the
asset's smallest unit; native floating point never touches a balance.

Outcomes are returned as a Result carrying a status code, not raised as
errors: callers branch on Result.Status.

Usage:

	svc := ledger.NewService(repo, locks, rateCache, notifier, ledger.Config{})

	res := svc.UpdateBalance(ctx, ledger.Request{
	    Kind:        ledger.KindDeposit,
	    UserID:      42,
	    Asset:       "BTC",
	    Amount:      decimal.RequireFromString("50000000"),
	    OperationID: "dep-7f3a",
	})
	if !res.Success {
	    // res.Status is one of the codes in internal/errors
	}
*/
package ledger
