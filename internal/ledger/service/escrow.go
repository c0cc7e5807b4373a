package service

import (
	"context"
	"fmt"
	"stayledger/internal/ledger/approval"
	ledgererrors "stayledger/internal/ledger/errors"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/fixedpoint"
	"stayledger/pkg/model"
	"strconv"
)

func (s *ledgerService) ProposeDepositSplit(ctx context.Context, caller model.Caller, bookingID string, tenantBps int64) error {
	if tenantBps < 0 || tenantBps > fixedpoint.BpsDenominator {
		return apperrors.Validation("tenant_bps must be within [0, 10000]", map[string]any{
			"tenant_bps": tenantBps,
		})
	}

	unlock, err := s.lockBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if !caller.Is(model.RoleLandlord) || caller.ID != booking.LandlordID {
		return apperrors.Forbidden("Only the booking's landlord can propose a deposit split")
	}
	if booking.Status != model.StatusActive && booking.Status != model.StatusCompleted {
		return conflict(ledgererrors.ErrWrongStatus,
			fmt.Sprintf("Booking is %s; a split can only be proposed while active or completed", booking.Status))
	}
	if booking.DepositReleased {
		return conflict(ledgererrors.ErrAlreadyReleased, "Deposit has already been released")
	}

	// Last proposal wins. The nonce moves on every proposal, so approvals
	// issued for the superseded split stop verifying.
	booking.SplitNonce++
	booking.PendingSplit = &model.PendingDepositSplit{
		ProposerID: caller.ID,
		TenantBps:  tenantBps,
		Nonce:      booking.SplitNonce,
	}

	if err := s.saveBooking(ctx, booking, 0); err != nil {
		return err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventDepositSplitProposed,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"tenant_bps": strconv.FormatInt(tenantBps, 10),
		},
	})

	s.cfg.Log.Info("Deposit split proposed",
		"id", booking.ID,
		"tenant_bps", tenantBps,
		"nonce", booking.SplitNonce,
	)
	return nil
}

func (s *ledgerService) ConfirmDepositSplit(ctx context.Context, caller model.Caller, bookingID string, approvalToken string) error {
	if !caller.Is(model.RolePlatform) {
		return apperrors.Forbidden("Only the platform can confirm a deposit split")
	}

	unlock, err := s.lockBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.DepositReleased {
		return conflict(ledgererrors.ErrAlreadyReleased, "Deposit has already been released")
	}
	if booking.PendingSplit == nil {
		return conflict(ledgererrors.ErrNoPendingSplit, "No pending deposit split to confirm")
	}

	split := booking.PendingSplit
	digest := approval.Digest(booking.ID, booking.TenantID, booking.LandlordID, split.TenantBps, split.Nonce)
	if !s.approver.Verify(digest, approvalToken) {
		return precondition(ledgererrors.ErrInvalidApproval, "Approval does not match the pending proposal")
	}

	deposit := fixedpoint.Micros(booking.DepositMicros)
	tenantShare := fixedpoint.ApplyBps(deposit, split.TenantBps)
	landlordShare := deposit - tenantShare
	ref := bookingRef(booking.ListingID, booking.Seq)

	booking.DepositReleased = true
	booking.DepositTenantBps = split.TenantBps
	booking.PendingSplit = nil

	// The release is recorded before any payout leaves escrow: a payout
	// with no record could be paid a second time on retry, while a failed
	// payout leaves its leg in escrow where it stays recoverable.
	if err := s.saveBooking(ctx, booking, 0); err != nil {
		return err
	}

	s.pushOrWarn(ctx, booking.TenantID, tenantShare.Int64(), "deposit_tenant:"+ref)
	s.pushOrWarn(ctx, booking.LandlordID, landlordShare.Int64(), "deposit_landlord:"+ref)

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventDepositReleased,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"tenant_payout":   tenantShare.String(),
			"landlord_payout": landlordShare.String(),
		},
	})

	s.cfg.Log.Info("Deposit released",
		"id", booking.ID,
		"tenant_payout", tenantShare.String(),
		"landlord_payout", landlordShare.String(),
	)
	return nil
}
