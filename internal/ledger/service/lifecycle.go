package service

import (
	"context"
	"fmt"
	ledgererrors "stayledger/internal/ledger/errors"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/fixedpoint"
	"stayledger/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

func (s *ledgerService) Book(ctx context.Context, caller model.Caller, req *model.BookingRequest) (*model.Booking, error) {
	if !caller.Is(model.RoleTenant) {
		return nil, apperrors.Forbidden("Only tenants can book")
	}

	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	listing, err := s.listingRepo.FindByID(ctx, req.ListingID)
	if err != nil {
		return nil, s.mapListingError(err, req.ListingID)
	}
	if !listing.Active {
		return nil, apperrors.Conflict("Listing is deactivated")
	}

	now := time.Now().UTC()
	if req.StartTime.Before(now.Add(s.cfg.MinBookingNotice)) {
		return nil, precondition(ledgererrors.ErrNoticeViolation,
			fmt.Sprintf("Booking must start at least %s from now", s.cfg.MinBookingNotice))
	}
	if req.EndTime.After(now.Add(s.cfg.MaxBookingWindow)) {
		return nil, precondition(ledgererrors.ErrWindowViolation,
			fmt.Sprintf("Booking must end within %s from now", s.cfg.MaxBookingWindow))
	}

	days, err := s.stayDays(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	rent, err := fixedpoint.MulDays(fixedpoint.Micros(listing.DailyRateMicros), days)
	if err != nil {
		return nil, apperrors.Validation("Rent exceeds the representable amount", map[string]any{"error": err.Error()})
	}
	deposit := fixedpoint.Micros(listing.DepositMicros)

	// Advisory lock on the slot: two concurrent books for the same start
	// cannot both pass the availability check.
	slotLockID := fmt.Sprintf("booking_lock_%s_%d", req.ListingID, req.StartTime.Unix())
	if _, err := s.lockRepo.Create(ctx, &model.BookingLock{
		ID:        slotLockID,
		ExpiresAt: time.Now().Add(10 * time.Second),
	}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
		}
		return nil, apperrors.Internal("Failed to acquire booking lock", err)
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(ctx, slotLockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", slotLockID, "error", releaseErr)
		}
	}()

	available, err := s.gate.IsAvailable(ctx, req.ListingID, req.StartTime, req.EndTime)
	if err != nil {
		s.cfg.Log.Error("Availability check failed", "listing_id", req.ListingID, "error", err)
		return nil, apperrors.Unavailable("Availability gate")
	}
	if !available {
		return nil, conflict(ledgererrors.ErrRangeUnavailable, "Requested date range is unavailable")
	}

	seq, err := s.listingRepo.NextBookingSeq(ctx, req.ListingID)
	if err != nil {
		return nil, apperrors.Internal("Failed to allocate booking sequence", err)
	}
	ref := bookingRef(req.ListingID, seq)

	if err := s.gate.Reserve(ctx, req.ListingID, ref, req.StartTime, req.EndTime); err != nil {
		s.cfg.Log.Error("Range reservation failed", "listing_id", req.ListingID, "error", err)
		return nil, conflict(ledgererrors.ErrRangeUnavailable, "Requested date range could not be reserved")
	}

	if deposit > 0 {
		if err := s.payments.Pull(ctx, caller.ID, deposit.Int64(), "deposit:"+ref); err != nil {
			s.releaseRange(ctx, req.ListingID, ref)
			return nil, apperrors.PaymentFailure("Deposit could not be collected", err)
		}
	}

	booking := &model.Booking{
		ListingID:       req.ListingID,
		Seq:             seq,
		TenantID:        caller.ID,
		LandlordID:      listing.LandlordID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		RentMicros:      rent.Int64(),
		DepositMicros:   deposit.Int64(),
		Status:          model.StatusActive,
		AccRentPerShare: "0",
		Period:          model.PeriodNone,
	}

	if s.cfg.UpfrontSettlement {
		if err := s.settleUpfrontRent(ctx, caller, booking, ref); err != nil {
			s.refundDeposit(ctx, booking, ref)
			s.releaseRange(ctx, req.ListingID, ref)
			return nil, err
		}
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		if err := s.listingRepo.AdjustActiveBookings(sessCtx, req.ListingID, 1); err != nil {
			return apperrors.Internal("Failed to adjust listing booking count", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to persist booking", "listing_id", req.ListingID, "error", err)
		if booking.RentPaidMicros > 0 {
			s.pushOrWarn(ctx, caller.ID, booking.RentPaidMicros, "rent_refund:"+ref)
		}
		s.refundDeposit(ctx, booking, ref)
		s.releaseRange(ctx, req.ListingID, ref)
		return nil, err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventBookingCreated,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Status:    string(booking.Status),
		Amounts: map[string]string{
			"rent":    rent.String(),
			"deposit": deposit.String(),
		},
	})

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"listing_id", booking.ListingID,
		"seq", booking.Seq,
		"tenant_id", booking.TenantID,
		"rent", rent.String(),
		"deposit", deposit.String(),
	)
	return booking, nil
}

func (s *ledgerService) MarkCompleted(ctx context.Context, caller model.Caller, bookingID string) error {
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
		return apperrors.Forbidden("Only the booking's landlord can mark it completed")
	}
	if err := requireActive(booking, ledgererrors.ErrWrongStatus); err != nil {
		return err
	}

	booking.Status = model.StatusCompleted
	if err := s.saveBooking(ctx, booking, -1); err != nil {
		return err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventBookingCompleted,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Status:    string(booking.Status),
	})

	s.cfg.Log.Info("Booking completed", "id", booking.ID)
	return nil
}

func (s *ledgerService) CancelBooking(ctx context.Context, caller model.Caller, bookingID string) error {
	unlock, err := s.lockBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.authorizeLandlordOrPlatform(caller, booking); err != nil {
		return err
	}
	if err := requireActive(booking, ledgererrors.ErrWrongStatus); err != nil {
		return err
	}
	if booking.RentPaidMicros > 0 {
		return conflict(ledgererrors.ErrRentAlreadyPaid, "Booking has received rent and cannot be cancelled")
	}

	ref := bookingRef(booking.ListingID, booking.Seq)
	refund := fixedpoint.Micros(booking.DepositMicros)

	if !booking.DepositReleased && refund > 0 {
		if err := s.payments.Push(ctx, booking.TenantID, refund.Int64(), "deposit_refund:"+ref); err != nil {
			return apperrors.PaymentFailure("Deposit refund failed", err)
		}
		booking.DepositReleased = true
		booking.DepositTenantBps = fixedpoint.BpsDenominator
	}

	s.releaseRange(ctx, booking.ListingID, ref)

	booking.PendingSplit = nil
	booking.Status = model.StatusCancelled
	if err := s.saveBooking(ctx, booking, -1); err != nil {
		return err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventBookingCancelled,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Status:    string(booking.Status),
		Amounts: map[string]string{
			"deposit_refund": refund.String(),
		},
	})

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "deposit_refund", refund.String())
	return nil
}

func (s *ledgerService) HandleDefault(ctx context.Context, caller model.Caller, bookingID string) error {
	if !caller.Is(model.RolePlatform) {
		return apperrors.Forbidden("Only the platform can declare a default")
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
	if err := requireActive(booking, ledgererrors.ErrWrongStatus); err != nil {
		return err
	}

	ref := bookingRef(booking.ListingID, booking.Seq)
	deposit := fixedpoint.Micros(booking.DepositMicros)
	amounts := map[string]string{}

	if !booking.DepositReleased && deposit > 0 {
		if booking.Tokenised && booking.TotalShares > 0 {
			// The deposit flows through the accrual accumulator, so
			// shareholders recover value through claim like any rent.
			acc, err := fixedpoint.ParseBig(booking.AccRentPerShare)
			if err != nil {
				return apperrors.Internal("Corrupt accumulator state", err)
			}
			acc.Add(acc, fixedpoint.AccrueDelta(deposit, booking.TotalShares))
			booking.AccRentPerShare = fixedpoint.FormatBig(acc)
			amounts["deposit_to_accrual"] = deposit.String()
		} else {
			if err := s.payments.Push(ctx, booking.LandlordID, deposit.Int64(), "default_deposit:"+ref); err != nil {
				return apperrors.PaymentFailure("Deposit payout on default failed", err)
			}
			amounts["deposit_to_landlord"] = deposit.String()
		}
		booking.DepositReleased = true
		booking.DepositTenantBps = 0
	}

	s.releaseRange(ctx, booking.ListingID, ref)

	booking.PendingSplit = nil
	booking.Status = model.StatusDefaulted
	if err := s.saveBooking(ctx, booking, -1); err != nil {
		return err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventBookingDefaulted,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Status:    string(booking.Status),
		Amounts:   amounts,
	})

	s.cfg.Log.Info("Booking defaulted", "id", booking.ID)
	return nil
}

// --- Helpers ---

// stayDays converts the stay duration to whole days per the configured
// rounding policy.
func (s *ledgerService) stayDays(start, end time.Time) (int64, error) {
	dur := end.Sub(start)
	days := int64(dur / (24 * time.Hour))
	if dur%(24*time.Hour) != 0 {
		if s.cfg.DayRounding == config.DayRoundingReject {
			return 0, apperrors.Validation("Booking duration must be a whole number of days", nil)
		}
		days++
	}
	return days, nil
}

// settleUpfrontRent pulls the full rent at booking time and distributes it
// the same way payRent would for an untokenised booking.
func (s *ledgerService) settleUpfrontRent(ctx context.Context, caller model.Caller, booking *model.Booking, ref string) error {
	gross := fixedpoint.Micros(booking.RentMicros)
	if gross == 0 {
		return nil
	}

	if err := s.payments.Pull(ctx, caller.ID, gross.Int64(), "rent:"+ref); err != nil {
		return apperrors.PaymentFailure("Upfront rent could not be collected", err)
	}

	tenantFee, landlordFee, net := s.splitRentFees(gross)
	if fee := tenantFee + landlordFee; fee > 0 {
		s.pushOrWarn(ctx, s.cfg.PlatformAccountID, fee.Int64(), "rent_fee:"+ref)
	}
	s.pushOrWarn(ctx, booking.LandlordID, net.Int64(), "rent_net:"+ref)

	booking.RentPaidMicros = gross.Int64()
	return nil
}

func (s *ledgerService) authorizeLandlordOrPlatform(caller model.Caller, booking *model.Booking) error {
	if caller.Is(model.RolePlatform) {
		return nil
	}
	if caller.Is(model.RoleLandlord) && caller.ID == booking.LandlordID {
		return nil
	}
	return apperrors.Forbidden("Caller is not a party to this booking")
}

// refundDeposit compensates a failed book after the deposit was pulled.
func (s *ledgerService) refundDeposit(ctx context.Context, booking *model.Booking, ref string) {
	if booking.DepositMicros > 0 {
		s.pushOrWarn(ctx, booking.TenantID, booking.DepositMicros, "deposit_refund:"+ref)
	}
}

func (s *ledgerService) releaseRange(ctx context.Context, listingID, ref string) {
	if err := s.gate.Release(ctx, listingID, ref); err != nil {
		s.cfg.Log.Warn("Failed to release availability range", "listing_id", listingID, "ref", ref, "error", err)
	}
}

// pushOrWarn is for credits that must not fail the surrounding operation:
// the funds are already held by the ledger, so a failed push is an
// operational incident, not a caller error.
func (s *ledgerService) pushOrWarn(ctx context.Context, account string, amountMicros int64, ref string) {
	if amountMicros == 0 {
		return
	}
	if err := s.payments.Push(ctx, account, amountMicros, ref); err != nil {
		s.cfg.Log.Error("Payout push failed", "account", account, "amount_micros", amountMicros, "ref", ref, "error", err)
	}
}
