package service

import (
	"context"
	"errors"
	ledgererrors "stayledger/internal/ledger/errors"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/fixedpoint"
	"stayledger/pkg/model"
	"strings"
	"testing"
)

func TestPayRent_TokenisedSplitScenario(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)

	investorA := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	investorB := model.Caller{ID: "inv-b", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investorA, booking.ID, 600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Invest(ctx, investorB, booking.ID, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Gross 110 with the 10% landlord fee nets 99.
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotA, err := f.svc.Claim(ctx, investorA, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotA != 59_400_000 {
		t.Errorf("expected investor A to claim 59.400000, got %d micros", gotA)
	}

	gotB, err := f.svc.Claim(ctx, investorB, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotB != 39_600_000 {
		t.Errorf("expected investor B to claim 39.600000, got %d micros", gotB)
	}

	// Idempotent between payments.
	again, err := f.svc.Claim(ctx, investorA, booking.ID)
	if err != nil {
		t.Fatalf("repeat claim must not fail: %v", err)
	}
	if again != 0 {
		t.Errorf("repeat claim must yield zero, got %d micros", again)
	}

	if got := f.rail.pushedTo("platform-treasury"); got != units(11) {
		t.Errorf("expected 11.000000 rent fee to platform, got %d micros", got)
	}
}

func TestPayRent_UntokenisedPaysLandlord(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.rail.pushedTo("landlord-1"); got != units(90) {
		t.Errorf("expected 90.000000 net to landlord, got %d micros", got)
	}
	if got := f.rail.pushedTo("platform-treasury"); got != units(10) {
		t.Errorf("expected 10.000000 fee to platform, got %d micros", got)
	}

	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.RentPaidMicros != units(100) {
		t.Errorf("expected rentPaid 100.000000, got %d micros", stored.RentPaidMicros)
	}
}

func TestPayRent_AccumulatorMonotonic(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)
	investor := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investor, booking.ID, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last, _ := fixedpoint.ParseBig("0")
	for i := 0; i < 3; i++ {
		if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(50)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := f.repo.FindByID(ctx, booking.ID)
		acc, err := fixedpoint.ParseBig(stored.AccRentPerShare)
		if err != nil {
			t.Fatalf("invalid accumulator %q: %v", stored.AccRentPerShare, err)
		}
		if acc.Cmp(last) <= 0 {
			t.Fatalf("accumulator must strictly grow on each payment: %s after %s", acc, last)
		}
		last = acc
	}
}

func TestPayRent_Authorization(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	err := f.svc.PayRent(ctx, f.landlord, booking.ID, units(10))
	wantAppCode(t, err, apperrors.CodeForbidden)

	otherTenant := model.Caller{ID: "tenant-2", Role: model.RoleTenant}
	err = f.svc.PayRent(ctx, otherTenant, booking.ID, units(10))
	wantAppCode(t, err, apperrors.CodeForbidden)
}

func TestPayRent_RequiresActive(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	if err := f.svc.MarkCompleted(ctx, f.landlord, booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(10))
	if !errors.Is(err, ledgererrors.ErrWrongStatus) {
		t.Fatalf("expected wrong-status rejection, got %v", err)
	}
}

func TestClaim_NoPosition(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)

	outsider := model.Caller{ID: "inv-z", Role: model.RoleInvestor}
	_, err := f.svc.Claim(ctx, outsider, booking.ID)
	if !errors.Is(err, ledgererrors.ErrNothingToClaim) {
		t.Fatalf("expected nothing-to-claim, got %v", err)
	}
}

func TestInvest_DebtCheckpointBlocksRetroactiveClaims(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)

	early := model.Caller{ID: "inv-early", Role: model.RoleInvestor}
	late := model.Caller{ID: "inv-late", Role: model.RoleInvestor}

	if _, err := f.svc.Invest(ctx, early, booking.ID, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Late investor buys after the payment. Of the accrued 99, the early
	// holder is entitled to 500/1000; the rest sits against the unsold
	// half and stays unclaimed.
	if _, err := f.svc.Invest(ctx, late, booking.ID, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotLate, err := f.svc.Claim(ctx, late, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLate != 0 {
		t.Errorf("late investor must not claim pre-purchase accrual, got %d micros", gotLate)
	}

	gotEarly, err := f.svc.Claim(ctx, early, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotEarly != 49_500_000 {
		t.Errorf("expected early investor to claim 49.500000 (500/1000 of 99), got %d micros", gotEarly)
	}
}

func TestInvest_RepeatPurchaseKeepsPending(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)

	investor := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investor, booking.ID, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Buying more must neither erase the pending 39.6 nor grant the new
	// shares any of it.
	position, err := f.svc.Invest(ctx, investor, booking.ID, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position.PendingMicros != 39_600_000 {
		t.Errorf("expected pending 39.600000 preserved across purchase, got %d micros", position.PendingMicros)
	}

	got, err := f.svc.Claim(ctx, investor, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 39_600_000 {
		t.Errorf("expected claim 39.600000, got %d micros", got)
	}
}

func TestAccrual_ConservationWithDust(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	// 7 shares at 43.00 raises 301, within the policy bound of rent 300.
	f.tokenise(t, booking.ID, 7, units(43), 0)

	holders := []struct {
		id     string
		shares int64
	}{
		{"inv-a", 3},
		{"inv-b", 2},
		{"inv-c", 2},
	}
	for _, h := range holders {
		caller := model.Caller{ID: h.id, Role: model.RoleInvestor}
		if _, err := f.svc.Invest(ctx, caller, booking.ID, h.shares); err != nil {
			t.Fatalf("invest %s: unexpected error: %v", h.id, err)
		}
	}

	var netPaid int64
	for _, gross := range []int64{units(110), units(31), units(7)} {
		if err := f.svc.PayRent(ctx, f.tenant, booking.ID, gross); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		netPaid += gross - gross/10
	}

	var claimed int64
	for _, h := range holders {
		caller := model.Caller{ID: h.id, Role: model.RoleInvestor}
		got, err := f.svc.Claim(ctx, caller, booking.ID)
		if err != nil {
			t.Fatalf("claim %s: unexpected error: %v", h.id, err)
		}
		claimed += got
	}

	if claimed > netPaid {
		t.Fatalf("claims (%d) exceed net rent paid (%d)", claimed, netPaid)
	}
	// Dust per payment is bounded by totalShares-1 micros.
	maxDust := int64(3) * (7 - 1)
	if netPaid-claimed > maxDust {
		t.Errorf("dust %d micros exceeds bound %d", netPaid-claimed, maxDust)
	}
}

func TestPayRent_PersistFailureRefundsTenant(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.failNextReplace()
	err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110))
	wantAppCode(t, err, apperrors.CodeInternal)

	// The collected gross comes straight back; nobody else is paid against
	// the unrecorded payment.
	if got := f.rail.pushedTo("tenant-1"); got != units(110) {
		t.Errorf("expected full 110.000000 refund to tenant, got %d micros", got)
	}
	if got := f.rail.pushedTo("landlord-1"); got != 0 {
		t.Errorf("expected no landlord payout on a failed write, got %d micros", got)
	}
	if got := f.rail.pushedTo("platform-treasury"); got != 0 {
		t.Errorf("expected no fee payout on a failed write, got %d micros", got)
	}
	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.RentPaidMicros != 0 {
		t.Fatalf("a failed write must not record the payment, got rentPaid %d", stored.RentPaidMicros)
	}

	// The retry settles normally.
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.rail.pushedTo("landlord-1"); got != units(99) {
		t.Errorf("expected 99.000000 net to landlord after retry, got %d micros", got)
	}
	if got := f.rail.pushedTo("platform-treasury"); got != units(11) {
		t.Errorf("expected 11.000000 fee to platform after retry, got %d micros", got)
	}
	stored, _ = f.repo.FindByID(ctx, booking.ID)
	if stored.RentPaidMicros != units(110) {
		t.Errorf("expected rentPaid 110.000000 after retry, got %d micros", stored.RentPaidMicros)
	}
}

func TestClaim_PersistFailureDoesNotDoublePay(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)
	investor := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investor, booking.ID, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The checkpoint write fails: no payout may leave escrow.
	f.failNextReplace()
	_, err := f.svc.Claim(ctx, investor, booking.ID)
	wantAppCode(t, err, apperrors.CodeInternal)
	if got := f.rail.pushedTo("inv-a"); got != 0 {
		t.Fatalf("a failed checkpoint write must not pay out, got %d micros", got)
	}

	// The retry pays the accrued 99 exactly once.
	got, err := f.svc.Claim(ctx, investor, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != units(99) {
		t.Errorf("expected 99.000000 claimed on retry, got %d micros", got)
	}
	if total := f.rail.pushedTo("inv-a"); total != units(99) {
		t.Errorf("expected 99.000000 paid in total, got %d micros", total)
	}
}

func TestClaim_PayoutFailureRestoresCheckpoint(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)
	investor := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investor, booking.ID, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.rail.failPush = func(ref string) error {
		if strings.HasPrefix(ref, "claim:") {
			return errors.New("rail unavailable")
		}
		return nil
	}
	_, err := f.svc.Claim(ctx, investor, booking.ID)
	wantAppCode(t, err, apperrors.CodePaymentFailure)

	// No funds moved, so the checkpoint rolls back and the claim survives.
	stored, _ := f.repo.FindByID(ctx, booking.ID)
	if stored.Debt["inv-a"] != "0" {
		t.Fatalf("expected checkpoint restored to 0 after failed payout, got %s", stored.Debt["inv-a"])
	}

	f.rail.failPush = nil
	got, err := f.svc.Claim(ctx, investor, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != units(99) {
		t.Errorf("expected 99.000000 claimed after rail recovery, got %d micros", got)
	}
}

func TestRecurringPayments_DistinctReferences(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)
	investor := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investor, booking.ID, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two accrual and claim rounds. A rail that dedupes by reference must
	// see each collection and each payout under its own reference.
	for i := 0; i < 2; i++ {
		if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := f.svc.Claim(ctx, investor, booking.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seen := make(map[string]int)
	for _, p := range f.rail.pulls {
		if strings.HasPrefix(p.ref, "rent:") {
			seen[p.ref]++
		}
	}
	for _, p := range f.rail.pushes {
		if strings.HasPrefix(p.ref, "claim:") {
			seen[p.ref]++
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct rent/claim references, got %d: %v", len(seen), seen)
	}
	for ref, n := range seen {
		if n != 1 {
			t.Errorf("reference %s used %d times", ref, n)
		}
	}
}

func TestPosition(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.book(t)
	ctx := context.Background()

	f.tokenise(t, booking.ID, 1000, 300_000, 0)
	investor := model.Caller{ID: "inv-a", Role: model.RoleInvestor}
	if _, err := f.svc.Invest(ctx, investor, booking.ID, 600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.PayRent(ctx, f.tenant, booking.ID, units(110)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	position, err := f.svc.Position(ctx, investor, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position.Shares != 600 {
		t.Errorf("expected 600 shares, got %d", position.Shares)
	}
	if position.PendingMicros != 59_400_000 {
		t.Errorf("expected pending 59.400000, got %d micros", position.PendingMicros)
	}

	outsider := model.Caller{ID: "inv-z", Role: model.RoleInvestor}
	empty, err := f.svc.Position(ctx, outsider, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Shares != 0 || empty.PendingMicros != 0 {
		t.Errorf("expected empty position, got %+v", empty)
	}
}
