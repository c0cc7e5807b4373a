package service

import (
	"context"
	"fmt"
	"math/big"
	ledgererrors "stayledger/internal/ledger/errors"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/fixedpoint"
	"stayledger/pkg/model"
	"strconv"
)

func (s *ledgerService) ProposeTokenisation(ctx context.Context, caller model.Caller, bookingID string, proposal *model.TokenisationProposal) error {
	if err := s.validator.ValidateProposal(proposal); err != nil {
		s.cfg.Log.Warn("Tokenisation proposal validation failed", "error", err)
		return apperrors.Validation("Tokenisation proposal validation failed", map[string]any{"error": err.Error()})
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

	if err := s.authorizeParty(caller, booking); err != nil {
		return err
	}
	if err := requireActive(booking, ledgererrors.ErrWrongStatus); err != nil {
		return err
	}
	if booking.Tokenised {
		return conflict(ledgererrors.ErrAlreadyTokenised, "Booking is already tokenised")
	}

	// A later proposal replaces an unapproved earlier one.
	booking.TokenisationProposed = true
	booking.TotalShares = proposal.TotalShares
	booking.PricePerShareMicros = proposal.PricePerShareMicros
	booking.FeeBps = proposal.FeeBps
	booking.Period = proposal.Period

	if err := s.saveBooking(ctx, booking, 0); err != nil {
		return err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventTokenisationProposed,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"total_shares":    strconv.FormatInt(proposal.TotalShares, 10),
			"price_per_share": fixedpoint.Micros(proposal.PricePerShareMicros).String(),
		},
	})

	s.cfg.Log.Info("Tokenisation proposed",
		"id", booking.ID,
		"total_shares", proposal.TotalShares,
		"price_per_share", fixedpoint.Micros(proposal.PricePerShareMicros).String(),
		"fee_bps", proposal.FeeBps,
	)
	return nil
}

func (s *ledgerService) ApproveTokenisation(ctx context.Context, caller model.Caller, bookingID string) error {
	if !caller.Is(model.RolePlatform) {
		return apperrors.Forbidden("Only the platform can approve tokenisation")
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
	if booking.Tokenised {
		return conflict(ledgererrors.ErrAlreadyTokenised, "Booking is already tokenised")
	}
	if !booking.TokenisationProposed {
		return conflict(ledgererrors.ErrNotProposed, "No tokenisation proposal to approve")
	}

	if err := s.checkRaiseBound(booking); err != nil {
		return err
	}

	booking.Tokenised = true
	booking.SoldShares = 0
	booking.AccRentPerShare = "0"
	booking.Shares = make(map[string]int64)
	booking.Debt = make(map[string]string)

	if err := s.saveBooking(ctx, booking, 0); err != nil {
		return err
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventTokenisationApproved,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"total_shares": strconv.FormatInt(booking.TotalShares, 10),
		},
	})

	s.cfg.Log.Info("Tokenisation approved", "id", booking.ID, "total_shares", booking.TotalShares)
	return nil
}

func (s *ledgerService) Invest(ctx context.Context, caller model.Caller, bookingID string, shareCount int64) (*model.InvestorPosition, error) {
	if shareCount <= 0 {
		return nil, apperrors.InvalidInput("share_count must be positive")
	}

	unlock, err := s.lockBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.Tokenised {
		return nil, conflict(ledgererrors.ErrNotTokenised, "Booking is not tokenised")
	}
	if booking.SoldShares+shareCount > booking.TotalShares {
		return nil, conflict(ledgererrors.ErrOversubscribed,
			fmt.Sprintf("Only %d of %d shares remain", booking.TotalShares-booking.SoldShares, booking.TotalShares))
	}

	cost, err := shareCost(booking.PricePerShareMicros, shareCount)
	if err != nil {
		return nil, apperrors.Validation("Share purchase exceeds the representable amount", map[string]any{"error": err.Error()})
	}

	acc, err := fixedpoint.ParseBig(booking.AccRentPerShare)
	if err != nil {
		return nil, apperrors.Internal("Corrupt accumulator state", err)
	}
	debt, err := fixedpoint.ParseBig(booking.Debt[caller.ID])
	if err != nil {
		return nil, apperrors.Internal("Corrupt debt checkpoint", err)
	}

	// Sold-so-far disambiguates repeat purchases by the same investor while
	// a retry of the same failed purchase keeps its reference.
	buyRef := fmt.Sprintf("%s:%s:%d", bookingRef(booking.ListingID, booking.Seq), caller.ID, booking.SoldShares)
	if err := s.payments.Pull(ctx, caller.ID, cost.Int64(), "invest:"+buyRef); err != nil {
		return nil, apperrors.PaymentFailure("Share purchase could not be collected", err)
	}

	// Checkpoint before the balance moves: the new shares start owing the
	// full accumulator, so they cannot claim rent accrued before purchase.
	debt.Add(debt, fixedpoint.Entitlement(shareCount, acc))

	if booking.Shares == nil {
		booking.Shares = make(map[string]int64)
	}
	if booking.Debt == nil {
		booking.Debt = make(map[string]string)
	}
	booking.Shares[caller.ID] += shareCount
	booking.Debt[caller.ID] = fixedpoint.FormatBig(debt)
	booking.SoldShares += shareCount

	// Record before distributing: with only the pull settled, refunding it
	// is full compensation when the write fails.
	if err := s.saveBooking(ctx, booking, 0); err != nil {
		s.pushOrWarn(ctx, caller.ID, cost.Int64(), "invest_refund:"+buyRef)
		return nil, err
	}

	fee := fixedpoint.ApplyBps(cost, booking.FeeBps)
	s.pushOrWarn(ctx, s.cfg.PlatformAccountID, fee.Int64(), "invest_fee:"+buyRef)
	s.pushOrWarn(ctx, booking.LandlordID, (cost - fee).Int64(), "invest_proceeds:"+buyRef)

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventSharesIssued,
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Actor:     caller.ID,
		Amounts: map[string]string{
			"share_count": strconv.FormatInt(shareCount, 10),
			"cost":        cost.String(),
			"fee":         fee.String(),
		},
	})

	s.cfg.Log.Info("Shares issued",
		"id", booking.ID,
		"investor_id", caller.ID,
		"share_count", shareCount,
		"cost", cost.String(),
		"sold_shares", booking.SoldShares,
	)

	return &model.InvestorPosition{
		BookingID:     booking.ID,
		InvestorID:    caller.ID,
		Shares:        booking.Shares[caller.ID],
		PendingMicros: fixedpoint.PendingMicros(booking.Shares[caller.ID], acc, debt).Int64(),
	}, nil
}

// --- Helpers ---

func (s *ledgerService) authorizeParty(caller model.Caller, booking *model.Booking) error {
	if caller.Is(model.RoleLandlord) && caller.ID == booking.LandlordID {
		return nil
	}
	if caller.Is(model.RoleTenant) && caller.ID == booking.TenantID {
		return nil
	}
	return apperrors.Forbidden("Caller is not a party to this booking")
}

// checkRaiseBound rejects a raise whose proceeds stray from the booking's
// expected rent by more than the configured bound.
func (s *ledgerService) checkRaiseBound(booking *model.Booking) error {
	raise := new(big.Int).SetInt64(booking.TotalShares)
	raise.Mul(raise, new(big.Int).SetInt64(booking.PricePerShareMicros))

	rent := new(big.Int).SetInt64(booking.RentMicros)
	bound := new(big.Int).SetInt64(fixedpoint.ApplyBps(fixedpoint.Micros(booking.RentMicros), s.cfg.RaiseBoundBps).Int64())

	diff := new(big.Int).Sub(raise, rent)
	if diff.CmpAbs(bound) > 0 {
		return precondition(ledgererrors.ErrPolicyViolation,
			fmt.Sprintf("Raise of %s strays more than %d bps from expected rent %s",
				formatRaise(raise), s.cfg.RaiseBoundBps, fixedpoint.Micros(booking.RentMicros).String()))
	}
	return nil
}

func formatRaise(raise *big.Int) string {
	if raise.IsInt64() {
		return fixedpoint.Micros(raise.Int64()).String()
	}
	return raise.String()
}

func shareCost(pricePerShareMicros, shareCount int64) (fixedpoint.Micros, error) {
	p := new(big.Int).SetInt64(pricePerShareMicros)
	p.Mul(p, new(big.Int).SetInt64(shareCount))
	if !p.IsInt64() {
		return 0, fmt.Errorf("%d shares at %s overflow", shareCount, fixedpoint.Micros(pricePerShareMicros))
	}
	return fixedpoint.Micros(p.Int64()), nil
}
