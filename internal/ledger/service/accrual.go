package service

import (
	"context"
	"fmt"
	"math/big"
	ledgererrors "stayledger/internal/ledger/errors"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/fixedpoint"
	"stayledger/pkg/model"
)

func (s *ledgerService) PayRent(ctx context.Context, caller model.Caller, bookingID string, grossMicros int64) error {
	if grossMicros <= 0 {
		return apperrors.InvalidInput("gross_micros must be positive")
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

	if !caller.Is(model.RoleTenant) || caller.ID != booking.TenantID {
		return apperrors.Forbidden("Only the booking's tenant can pay rent")
	}
	if err := requireActive(booking, ledgererrors.ErrWrongStatus); err != nil {
		return err
	}

	gross := fixedpoint.Micros(grossMicros)
	tenantFee, landlordFee, net := s.splitRentFees(gross)

	// The running rent total makes each payment's references unique, so a
	// rail that dedupes by reference never drops a later payment, while a
	// retry of the same failed payment keeps the same reference.
	payRef := fmt.Sprintf("%s:%d", bookingRef(booking.ListingID, booking.Seq), booking.RentPaidMicros)

	tokenised := booking.Tokenised && booking.TotalShares > 0

	var acc *big.Int
	if tokenised {
		var parseErr error
		acc, parseErr = fixedpoint.ParseBig(booking.AccRentPerShare)
		if parseErr != nil {
			return apperrors.Internal("Corrupt accumulator state", parseErr)
		}
	}

	if err := s.payments.Pull(ctx, caller.ID, gross.Int64(), "rent:"+payRef); err != nil {
		return apperrors.PaymentFailure("Rent could not be collected", err)
	}

	if tokenised {
		// O(1) accrual: the net amount stays in escrow and shareholders
		// pull their share through claim.
		acc.Add(acc, fixedpoint.AccrueDelta(net, booking.TotalShares))
		booking.AccRentPerShare = fixedpoint.FormatBig(acc)
	}
	booking.RentPaidMicros += gross.Int64()

	// Record before distributing: with only the pull settled, refunding it
	// is full compensation when the write fails. Payouts settle strictly
	// against a recorded payment.
	if err := s.saveBooking(ctx, booking, 0); err != nil {
		s.pushOrWarn(ctx, caller.ID, gross.Int64(), "rent_refund:"+payRef)
		return err
	}

	if fee := tenantFee + landlordFee; fee > 0 {
		s.pushOrWarn(ctx, s.cfg.PlatformAccountID, fee.Int64(), "rent_fee:"+payRef)
	}
	if !tokenised {
		s.pushOrWarn(ctx, booking.LandlordID, net.Int64(), "rent_net:"+payRef)
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventRentPaid,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"gross":   gross.String(),
			"net":     net.String(),
			"fees":    (tenantFee + landlordFee).String(),
			"accrual": booking.AccRentPerShare,
		},
	})

	s.cfg.Log.Info("Rent paid",
		"id", booking.ID,
		"gross", gross.String(),
		"net", net.String(),
		"tokenised", booking.Tokenised,
	)
	return nil
}

func (s *ledgerService) Claim(ctx context.Context, caller model.Caller, bookingID string) (int64, error) {
	unlock, err := s.lockBooking(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return 0, err
	}

	if !booking.Tokenised {
		return 0, conflict(ledgererrors.ErrNotTokenised, "Booking is not tokenised")
	}

	shares, held := booking.Shares[caller.ID]
	if !held || shares == 0 {
		return 0, conflict(ledgererrors.ErrNothingToClaim, "Caller holds no shares in this booking")
	}

	acc, err := fixedpoint.ParseBig(booking.AccRentPerShare)
	if err != nil {
		return 0, apperrors.Internal("Corrupt accumulator state", err)
	}
	debt, err := fixedpoint.ParseBig(booking.Debt[caller.ID])
	if err != nil {
		return 0, apperrors.Internal("Corrupt debt checkpoint", err)
	}

	pending := fixedpoint.PendingMicros(shares, acc, debt)
	if pending == 0 {
		// Idempotent between payments: a repeat claim is a no-op, not an
		// error.
		return 0, nil
	}

	// The checkpoint must land before the payout: money that leaves escrow
	// against an unrecorded checkpoint could be claimed again on retry. A
	// failed write here moves no funds, so the retry still reaches them.
	prevDebt := booking.Debt[caller.ID]
	checkpoint := fixedpoint.Entitlement(shares, acc)
	booking.Debt[caller.ID] = fixedpoint.FormatBig(checkpoint)

	if err := s.saveBooking(ctx, booking, 0); err != nil {
		return 0, err
	}

	// The checkpoint doubles as the reference discriminator: it moves with
	// every accrual, and a retry of the same failed payout reuses it.
	payoutRef := fmt.Sprintf("claim:%s:%s:%s", bookingRef(booking.ListingID, booking.Seq), caller.ID, fixedpoint.FormatBig(checkpoint))
	if err := s.payments.Push(ctx, caller.ID, pending.Int64(), payoutRef); err != nil {
		booking.Debt[caller.ID] = prevDebt
		if restoreErr := s.saveBooking(ctx, booking, 0); restoreErr != nil {
			s.cfg.Log.Error("Failed to restore debt checkpoint after payout failure",
				"id", booking.ID,
				"investor_id", caller.ID,
				"pending", pending.String(),
				"error", restoreErr,
			)
		}
		return 0, apperrors.PaymentFailure("Claim payout failed", err)
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventRentClaimed,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"claimed": pending.String(),
		},
	})

	s.cfg.Log.Info("Rent claimed",
		"id", booking.ID,
		"investor_id", caller.ID,
		"claimed", pending.String(),
	)
	return pending.Int64(), nil
}

func (s *ledgerService) Position(ctx context.Context, caller model.Caller, bookingID string) (*model.InvestorPosition, error) {
	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	position := &model.InvestorPosition{
		BookingID:  booking.ID,
		InvestorID: caller.ID,
	}

	shares, held := booking.Shares[caller.ID]
	if !held || shares == 0 {
		return position, nil
	}

	acc, err := fixedpoint.ParseBig(booking.AccRentPerShare)
	if err != nil {
		return nil, apperrors.Internal("Corrupt accumulator state", err)
	}
	debt, err := fixedpoint.ParseBig(booking.Debt[caller.ID])
	if err != nil {
		return nil, apperrors.Internal("Corrupt debt checkpoint", err)
	}

	position.Shares = shares
	position.PendingMicros = fixedpoint.PendingMicros(shares, acc, debt).Int64()
	return position, nil
}

// splitRentFees applies the platform's rent fee policy. Both fees come out
// of the gross amount; the remainder is the net that accrues or pays the
// landlord.
func (s *ledgerService) splitRentFees(gross fixedpoint.Micros) (tenantFee, landlordFee, net fixedpoint.Micros) {
	tenantFee = fixedpoint.ApplyBps(gross, s.cfg.RentTenantFeeBps)
	landlordFee = fixedpoint.ApplyBps(gross, s.cfg.RentLandlordFeeBps)
	net = gross - tenantFee - landlordFee
	return tenantFee, landlordFee, net
}
