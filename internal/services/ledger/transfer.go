package ledger

import (
	"context"
	"errors"
	"log"

	domainerrors "ledgercore/internal/errors"
	"ledgercore/internal/lock"
	"ledgercore/internal/repositories"
)

// Two-sided transfers are two independent UpdateBalance calls with
// distinct operation ids, run under a coordinating lease scoped to the
// transfer. Each leg is idempotent on its own; the coordinating lease
// keeps two submissions of the same transfer from interleaving legs.

// TransferResource names the coordinating lease for one transfer.
func TransferResource(operationID string) string {
	return "transfer:" + operationID
}

// ClaimResource names the coordinating lease for one commission claim.
func ClaimResource(operationID string) string {
	return "claim:" + operationID
}

func (s *service) Tip(ctx context.Context, req TipRequest) TransferResult {
	if req.FromUserID == req.ToUserID || req.OperationID == "" {
		return TransferResult{Debit: reject(domainerrors.CodeInvalidOperation)}
	}

	lease, err := s.locks.Acquire(ctx, TransferResource(req.OperationID), lock.TTLStandard)
	if err != nil {
		return TransferResult{Debit: reject(domainerrors.CodeLockBusy)}
	}
	defer s.locks.Release(context.WithoutCancel(ctx), lease)

	debit := s.UpdateBalance(ctx, Request{
		Kind:        KindTipSend,
		UserID:      req.FromUserID,
		Asset:       req.Asset,
		Amount:      req.Amount,
		OperationID: req.OperationID + ":send",
	})
	if !debit.Success {
		return TransferResult{Debit: debit}
	}
	if blocked, res := s.refuseRefundedReplay(ctx, debit, req.OperationID, KindTipReceive); blocked {
		return res
	}

	credit := s.UpdateBalance(ctx, Request{
		Kind:        KindTipReceive,
		UserID:      req.ToUserID,
		Asset:       req.Asset,
		Amount:      req.Amount,
		OperationID: req.OperationID + ":receive",
	})
	if !credit.Success {
		s.refund(ctx, req.FromUserID, req.Asset, req, credit)
		return TransferResult{Debit: debit, Credit: credit}
	}

	return TransferResult{Success: true, Debit: debit, Credit: credit}
}

// refuseRefundedReplay guards a replayed debit leg. When a prior attempt
// of the transfer ended in a compensating refund, the payer already has
// the money back; running the credit leg now would pay the counterparty
// out of nothing. Such a transfer id is burned and the retry is refused.
func (s *service) refuseRefundedReplay(ctx context.Context, debit Result, operationID string, refundKind Kind) (bool, TransferResult) {
	if debit.Status != domainerrors.CodeOperationExists {
		return false, TransferResult{}
	}
	_, err := s.repo.GetHistory(ctx, operationID+":refund", string(refundKind))
	if err == nil {
		log.Printf("ledger: transfer %s was refunded, refusing replay", operationID)
		return true, TransferResult{Debit: debit, Credit: reject(domainerrors.CodeInvalidOperation)}
	}
	if !errors.Is(err, repositories.ErrHistoryNotFound) {
		return true, TransferResult{Debit: debit, Credit: reject(domainerrors.CodeDatabaseTransaction)}
	}
	return false, TransferResult{}
}

// refund returns a committed debit leg after its credit leg failed. The
// refund has its own operation id, so retries of the whole transfer
// stay idempotent.
func (s *service) refund(ctx context.Context, userID uint, asset string, req TipRequest, failed Result) {
	res := s.UpdateBalance(ctx, Request{
		Kind:        KindTipReceive,
		UserID:      userID,
		Asset:       asset,
		Amount:      req.Amount,
		OperationID: req.OperationID + ":refund",
	})
	if !res.Success {
		log.Printf("ledger: CRITICAL refund of transfer %s failed after credit status %s: %s",
			req.OperationID, failed.Status, res.Status)
	}
}

func (s *service) VaultTransfer(ctx context.Context, req VaultRequest) TransferResult {
	if req.OperationID == "" {
		return TransferResult{Debit: reject(domainerrors.CodeInvalidOperation)}
	}

	var debitKind, creditKind Kind
	var debitAsset, creditAsset string
	switch req.Direction {
	case VaultIn:
		debitKind, debitAsset = KindVaultDeposit, req.Asset
		creditKind, creditAsset = KindVaultCredit, VaultAssetPrefix+req.Asset
	case VaultOut:
		debitKind, debitAsset = KindVaultDebit, VaultAssetPrefix+req.Asset
		creditKind, creditAsset = KindVaultWithdraw, req.Asset
	default:
		return TransferResult{Debit: reject(domainerrors.CodeInvalidOperation)}
	}

	lease, err := s.locks.Acquire(ctx, TransferResource(req.OperationID), lock.TTLStandard)
	if err != nil {
		return TransferResult{Debit: reject(domainerrors.CodeLockBusy)}
	}
	defer s.locks.Release(context.WithoutCancel(ctx), lease)

	debit := s.UpdateBalance(ctx, Request{
		Kind:        debitKind,
		UserID:      req.UserID,
		Asset:       debitAsset,
		Amount:      req.Amount,
		OperationID: req.OperationID + ":debit",
	})
	if !debit.Success {
		return TransferResult{Debit: debit}
	}
	if blocked, res := s.refuseRefundedReplay(ctx, debit, req.OperationID, creditKind); blocked {
		return res
	}

	credit := s.UpdateBalance(ctx, Request{
		Kind:        creditKind,
		UserID:      req.UserID,
		Asset:       creditAsset,
		Amount:      req.Amount,
		OperationID: req.OperationID + ":credit",
	})
	if !credit.Success {
		back := s.UpdateBalance(ctx, Request{
			Kind:        creditKind,
			UserID:      req.UserID,
			Asset:       debitAsset,
			Amount:      req.Amount,
			OperationID: req.OperationID + ":refund",
		})
		if !back.Success {
			log.Printf("ledger: CRITICAL refund of vault transfer %s failed: %s",
				req.OperationID, back.Status)
		}
		return TransferResult{Debit: debit, Credit: credit}
	}

	return TransferResult{Success: true, Debit: debit, Credit: credit}
}

// ClaimCommissions credits each claimed asset with its own operation id
// derived from the claim id. The coordinating lease is extended between
// assets so a slow multi-asset claim keeps exclusivity.
func (s *service) ClaimCommissions(ctx context.Context, req ClaimRequest) []Result {
	if req.OperationID == "" || len(req.Claims) == 0 {
		return []Result{reject(domainerrors.CodeInvalidOperation)}
	}

	lease, err := s.locks.Acquire(ctx, ClaimResource(req.OperationID), lock.TTLSlow)
	if err != nil {
		return []Result{reject(domainerrors.CodeLockBusy)}
	}
	defer s.locks.Release(context.WithoutCancel(ctx), lease)

	results := make([]Result, 0, len(req.Claims))
	for i, claim := range req.Claims {
		if i > 0 {
			if err := s.locks.Extend(ctx, lease, lock.TTLSlow); err != nil {
				log.Printf("ledger: claim %s lease extension failed: %v", req.OperationID, err)
			}
		}
		results = append(results, s.UpdateBalance(ctx, Request{
			Kind:        KindAffiliate,
			UserID:      req.UserID,
			Asset:       claim.Asset,
			Amount:      claim.Amount,
			OperationID: req.OperationID + ":" + claim.Asset,
		}))
	}
	return results
}
