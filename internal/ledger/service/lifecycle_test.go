package service

import (
	"context"
	"errors"
	ledgererrors "stayledger/internal/ledger/errors"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"testing"
	"time"
)

func TestBook_ComputesRentAndPullsDeposit(t *testing.T) {
	f := newLedgerFixture(t)

	booking := f.book(t)

	if booking.Status != model.StatusActive {
		t.Errorf("expected status active, got %s", booking.Status)
	}
	if booking.RentMicros != units(300) {
		t.Errorf("expected rent 300.000000, got %d micros", booking.RentMicros)
	}
	if booking.DepositMicros != units(500) {
		t.Errorf("expected deposit 500.000000, got %d micros", booking.DepositMicros)
	}
	if booking.Seq != 1 {
		t.Errorf("expected seq 1, got %d", booking.Seq)
	}
	if booking.LandlordID != "landlord-1" {
		t.Errorf("expected landlord from listing, got %s", booking.LandlordID)
	}

	if got := f.rail.pulledFrom("tenant-1"); got != units(500) {
		t.Errorf("expected 500.000000 pulled from tenant, got %d micros", got)
	}
	if got := f.listings.listings["l1"].ActiveBookings; got != 1 {
		t.Errorf("expected 1 active booking on listing, got %d", got)
	}
	if f.pub.lastType() != model.EventBookingCreated {
		t.Errorf("expected %s event, got %s", model.EventBookingCreated, f.pub.lastType())
	}
}

func TestBook_RequiresTenantRole(t *testing.T) {
	f := newLedgerFixture(t)
	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := f.svc.Book(context.Background(), f.landlord, &model.BookingRequest{
		ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	})
	wantAppCode(t, err, apperrors.CodeForbidden)
}

func TestBook_NoticeViolation(t *testing.T) {
	f := newLedgerFixture(t)
	start := time.Now().UTC().Add(10 * time.Minute)

	_, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
		ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	})
	if !errors.Is(err, ledgererrors.ErrNoticeViolation) {
		t.Fatalf("expected notice violation, got %v", err)
	}
}

func TestBook_WindowViolation(t *testing.T) {
	f := newLedgerFixture(t)
	start := time.Now().UTC().Add(400 * 24 * time.Hour)

	_, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
		ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	})
	if !errors.Is(err, ledgererrors.ErrWindowViolation) {
		t.Fatalf("expected window violation, got %v", err)
	}
}

func TestBook_DayRounding(t *testing.T) {
	t.Run("ceil rounds a partial day up", func(t *testing.T) {
		f := newLedgerFixture(t)
		start := time.Now().UTC().Add(48 * time.Hour)

		booking, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
			ListingID: "l1",
			StartTime: start,
			EndTime:   start.Add(60 * time.Hour),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if booking.RentMicros != units(300) {
			t.Errorf("expected 2.5 days to price as 3 days (300.000000), got %d micros", booking.RentMicros)
		}
	})

	t.Run("reject refuses a partial day", func(t *testing.T) {
		f := newLedgerFixture(t, func(cfg *config.Config) {
			cfg.DayRounding = config.DayRoundingReject
		})
		start := time.Now().UTC().Add(48 * time.Hour)

		_, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
			ListingID: "l1",
			StartTime: start,
			EndTime:   start.Add(60 * time.Hour),
		})
		wantAppCode(t, err, apperrors.CodeValidation)
	})
}

func TestBook_RangeUnavailable(t *testing.T) {
	f := newLedgerFixture(t)
	f.gate.available = false
	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
		ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	})
	if !errors.Is(err, ledgererrors.ErrRangeUnavailable) {
		t.Fatalf("expected range unavailable, got %v", err)
	}
	if len(f.rail.pulls) != 0 {
		t.Errorf("no funds may move on a failed book, got %d pulls", len(f.rail.pulls))
	}
	if len(f.repo.bookings) != 0 {
		t.Errorf("no booking may persist on a failed book, got %d", len(f.repo.bookings))
	}
}

func TestBook_DepositPaymentFailure(t *testing.T) {
	f := newLedgerFixture(t)
	f.rail.failPull = func(ref string) error {
		return errors.New("insufficient funds")
	}
	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
		ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	})
	wantAppCode(t, err, apperrors.CodePaymentFailure)

	if len(f.gate.released) != 1 {
		t.Errorf("expected reserved range to be released, got %d releases", len(f.gate.released))
	}
	if len(f.repo.bookings) != 0 {
		t.Errorf("no booking may persist on a failed book, got %d", len(f.repo.bookings))
	}
}

func TestBook_UpfrontSettlement(t *testing.T) {
	f := newLedgerFixture(t, func(cfg *config.Config) {
		cfg.UpfrontSettlement = true
	})

	booking := f.book(t)

	if booking.RentPaidMicros != units(300) {
		t.Errorf("expected rent paid 300.000000, got %d micros", booking.RentPaidMicros)
	}
	if got := f.rail.pulledFrom("tenant-1"); got != units(800) {
		t.Errorf("expected deposit+rent (800.000000) pulled, got %d micros", got)
	}
	// 10% landlord fee on 300 rent.
	if got := f.rail.pushedTo("platform-treasury"); got != units(30) {
		t.Errorf("expected 30.000000 fee to platform, got %d micros", got)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(270) {
		t.Errorf("expected 270.000000 net to landlord, got %d micros", got)
	}
}

func TestBook_InactiveListing(t *testing.T) {
	f := newLedgerFixture(t)
	f.listings.listings["l1"].Active = false
	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := f.svc.Book(context.Background(), f.tenant, &model.BookingRequest{
		ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
	})
	wantAppCode(t, err, apperrors.CodeConflict)
}

func TestMarkCompleted(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.MarkCompleted(ctx, f.landlord, booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.Status != model.StatusCompleted {
		t.Errorf("expected status completed, got %s", stored.Status)
	}
	if got := f.listings.listings["l1"].ActiveBookings; got != 0 {
		t.Errorf("expected active count back to 0, got %d", got)
	}

	// Terminal states are absorbing.
	err := f.svc.MarkCompleted(ctx, f.landlord, booking.ID)
	if !errors.Is(err, ledgererrors.ErrWrongStatus) {
		t.Fatalf("expected wrong status on second completion, got %v", err)
	}
}

func TestMarkCompleted_WrongLandlord(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)

	other := model.Caller{ID: "landlord-2", Role: model.RoleLandlord}
	err := f.svc.MarkCompleted(context.Background(), other, booking.ID)
	wantAppCode(t, err, apperrors.CodeForbidden)
}

func TestCancelBooking_RefundsDeposit(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.CancelBooking(ctx, f.landlord, booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.Status != model.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", stored.Status)
	}
	if stored.PendingSplit != nil {
		t.Error("cancel must clear the pending deposit split")
	}
	if !stored.DepositReleased {
		t.Error("cancel must mark the deposit released")
	}
	if got := f.rail.pushedTo("tenant-1"); got != units(500) {
		t.Errorf("expected full deposit (500.000000) refunded, got %d micros", got)
	}
	if len(f.gate.released) != 1 {
		t.Errorf("expected reserved range to be released, got %d releases", len(f.gate.released))
	}
}

func TestCancelBooking_RejectedAfterRent(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := f.svc.CancelBooking(ctx, f.landlord, booking.ID)
	if !errors.Is(err, ledgererrors.ErrRentAlreadyPaid) {
		t.Fatalf("expected rent-already-paid rejection, got %v", err)
	}
}

func TestCancelBooking_TenantForbidden(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)

	err := f.svc.CancelBooking(context.Background(), f.tenant, booking.ID)
	wantAppCode(t, err, apperrors.CodeForbidden)
}

func TestHandleDefault_Untokenised(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.HandleDefault(ctx, f.platform, booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.Status != model.StatusDefaulted {
		t.Errorf("expected status defaulted, got %s", stored.Status)
	}
	if !stored.DepositReleased || stored.DepositTenantBps != 0 {
		t.Errorf("default must release the deposit fully to the landlord side, got released=%v bps=%d",
			stored.DepositReleased, stored.DepositTenantBps)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(500) {
		t.Errorf("expected deposit (500.000000) pushed to landlord, got %d micros", got)
	}
}

func TestHandleDefault_TokenisedRoutesDepositToAccrual(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	// Raise 300 == expected rent 300, comfortably within the bound.
	f.tokenise(t, booking.ID, 1000, 300_000, 0)

	investorA := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	investorB := model.Caller{ID: "inv-b", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investorA, booking.ID, 600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Invest(ctx, investorB, booking.ID, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.svc.HandleDefault(ctx, f.platform, booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Deposit 500 flows through the accumulator: 300 and 200.
	gotA, err := f.svc.Claim(ctx, investorA, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotB, err := f.svc.Claim(ctx, investorB, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotA != units(300) || gotB != units(200) {
		t.Errorf("expected claims 300.000000/200.000000, got %d/%d micros", gotA, gotB)
	}

	if got := f.rail.pushedTo("landlord-1"); got != units(300) {
		t.Errorf("landlord should only have invest proceeds (300.000000), got %d micros", got)
	}
}

func TestHandleDefault_PlatformOnly(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)

	err := f.svc.HandleDefault(context.Background(), f.landlord, booking.ID)
	wantAppCode(t, err, apperrors.CodeForbidden)
}
