package service

import (
	"context"
	"errors"
	"stayledger/internal/ledger/approval"
	ledgererrors "stayledger/internal/ledger/errors"
	apperrors "stayledger/pkg/errors"
	"strings"
	"testing"
)

func TestDepositSplit_FullScenario(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := f.approvalToken(t, booking.ID)
	if err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Deposit 500 split 70/30.
	if got := f.rail.pushedTo("tenant-1"); got != units(350) {
		t.Errorf("expected tenant payout 350.000000, got %d micros", got)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(150) {
		t.Errorf("expected landlord payout 150.000000, got %d micros", got)
	}

	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if !stored.DepositReleased {
		t.Error("deposit must be marked released")
	}
	if stored.DepositTenantBps != 7000 {
		t.Errorf("expected recorded split 7000 bps, got %d", stored.DepositTenantBps)
	}
	if stored.PendingSplit != nil {
		t.Error("confirm must clear the pending split")
	}
}

func TestDepositSplit_ReleasedExactlyOnce(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 5000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := f.approvalToken(t, booking.ID)
	if err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token)
	if !errors.Is(err, ledgererrors.ErrAlreadyReleased) {
		t.Fatalf("expected already-released on second confirm, got %v", err)
	}

	err = f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 2000)
	if !errors.Is(err, ledgererrors.ErrAlreadyReleased) {
		t.Fatalf("expected already-released on re-proposal, got %v", err)
	}
}

func TestProposeDepositSplit_Validation(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 10_001)
	wantAppCode(t, err, apperrors.CodeValidation)

	err = f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, -1)
	wantAppCode(t, err, apperrors.CodeValidation)

	err = f.svc.ProposeDepositSplit(ctx, f.tenant, booking.ID, 5000)
	wantAppCode(t, err, apperrors.CodeForbidden)
}

func TestProposeDepositSplit_AllowedWhileCompleted(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.MarkCompleted(ctx, f.landlord, booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 3000); err != nil {
		t.Fatalf("a completed booking must still allow a split proposal: %v", err)
	}
}

func TestConfirmDepositSplit_NoPendingSplit(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)

	err := f.svc.ConfirmDepositSplit(context.Background(), f.platform, booking.ID, "deadbeef")
	if !errors.Is(err, ledgererrors.ErrNoPendingSplit) {
		t.Fatalf("expected no-pending-split, got %v", err)
	}
}

func TestConfirmDepositSplit_InvalidApproval(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	digest := approval.Digest(booking.ID, "tenant-1", "landlord-1", 7000, 1)
	badToken := approval.Sign("wrong-secret", digest)

	err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, badToken)
	if !errors.Is(err, ledgererrors.ErrInvalidApproval) {
		t.Fatalf("expected invalid approval, got %v", err)
	}

	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.DepositReleased {
		t.Error("a failed confirm must not release the deposit")
	}
}

func TestConfirmDepositSplit_ReplayedApprovalRejected(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	staleToken := f.approvalToken(t, booking.ID)

	// A new proposal bumps the nonce; the old approval must stop working.
	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 9000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, staleToken)
	if !errors.Is(err, ledgererrors.ErrInvalidApproval) {
		t.Fatalf("expected replayed approval to be rejected, got %v", err)
	}
}

func TestConfirmDepositSplit_PlatformOnly(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := f.approvalToken(t, booking.ID)

	err := f.svc.ConfirmDepositSplit(ctx, f.landlord, booking.ID, token)
	wantAppCode(t, err, apperrors.CodeForbidden)
}

func TestConfirmDepositSplit_PersistFailureMovesNoFunds(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := f.approvalToken(t, booking.ID)

	f.failNextReplace()
	err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token)
	wantAppCode(t, err, apperrors.CodeInternal)

	if len(f.rail.pushes) != 0 {
		t.Fatalf("a failed release write must move no funds, got %d pushes", len(f.rail.pushes))
	}
	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.DepositReleased {
		t.Fatal("a failed write must not record the release")
	}
	if stored.PendingSplit == nil {
		t.Fatal("the pending split must survive a failed write")
	}

	// The same approval confirms on retry; payouts go out exactly once.
	if err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.rail.pushedTo("tenant-1"); got != units(350) {
		t.Errorf("expected tenant payout 350.000000, got %d micros", got)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(150) {
		t.Errorf("expected landlord payout 150.000000, got %d micros", got)
	}
}

func TestConfirmDepositSplit_PayoutFailureStillReleasedOnce(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 7000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := f.approvalToken(t, booking.ID)

	f.rail.failPush = func(ref string) error {
		if strings.HasPrefix(ref, "deposit_tenant:") {
			return errors.New("rail unavailable")
		}
		return nil
	}

	// The release is recorded even when a payout leg fails; the leg stays
	// in escrow for recovery instead of becoming claimable twice.
	if err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.rail.pushedTo("tenant-1"); got != 0 {
		t.Errorf("expected failed tenant leg to move nothing, got %d micros", got)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(150) {
		t.Errorf("expected landlord leg to settle, got %d micros", got)
	}
	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if !stored.DepositReleased {
		t.Fatal("the release must be recorded")
	}

	err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token)
	if !errors.Is(err, ledgererrors.ErrAlreadyReleased) {
		t.Fatalf("expected already-released on second confirm, got %v", err)
	}
}

func TestDepositSplit_ZeroBpsPaysLandlordEverything(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.ProposeDepositSplit(ctx, f.landlord, booking.ID, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := f.approvalToken(t, booking.ID)
	if err := f.svc.ConfirmDepositSplit(ctx, f.platform, booking.ID, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.rail.pushedTo("tenant-1"); got != 0 {
		t.Errorf("expected no tenant payout, got %d micros", got)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(500) {
		t.Errorf("expected full deposit to landlord, got %d micros", got)
	}
}
