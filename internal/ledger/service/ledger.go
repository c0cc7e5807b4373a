package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"stayledger/internal/ledger/approval"
	ledgererrors "stayledger/internal/ledger/errors"
	"stayledger/internal/ledger/events"
	"stayledger/internal/ledger/repository"
	"stayledger/internal/ledger/validator"
	listingserrors "stayledger/internal/listings/errors"
	listingsrepo "stayledger/internal/listings/repository"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// AvailabilityGate answers date-range conflict queries for a listing's
// calendar. The ledger never implements range bookkeeping itself.
type AvailabilityGate interface {
	IsAvailable(ctx context.Context, listingID string, start, end time.Time) (bool, error)
	Reserve(ctx context.Context, listingID, bookingID string, start, end time.Time) error
	Release(ctx context.Context, listingID, bookingID string) error
}

// PaymentRail moves value between identities. Pulls and pushes are
// all-or-nothing; a returned error means no funds moved.
type PaymentRail interface {
	Pull(ctx context.Context, account string, amountMicros int64, reference string) error
	Push(ctx context.Context, account string, amountMicros int64, reference string) error
}

// LedgerService is the single entry surface of the booking and escrow
// ledger. Every mutating call runs under the per-booking lock, so no call
// ever observes a partially applied predecessor.
type LedgerService interface {
	Book(ctx context.Context, caller model.Caller, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByListing(ctx context.Context, listingID string, limit int, offset int64) ([]*model.Booking, int64, error)

	MarkCompleted(ctx context.Context, caller model.Caller, bookingID string) error
	CancelBooking(ctx context.Context, caller model.Caller, bookingID string) error
	HandleDefault(ctx context.Context, caller model.Caller, bookingID string) error

	ProposeDepositSplit(ctx context.Context, caller model.Caller, bookingID string, tenantBps int64) error
	ConfirmDepositSplit(ctx context.Context, caller model.Caller, bookingID string, approvalToken string) error

	ProposeTokenisation(ctx context.Context, caller model.Caller, bookingID string, proposal *model.TokenisationProposal) error
	ApproveTokenisation(ctx context.Context, caller model.Caller, bookingID string) error
	Invest(ctx context.Context, caller model.Caller, bookingID string, shareCount int64) (*model.InvestorPosition, error)

	PayRent(ctx context.Context, caller model.Caller, bookingID string, grossMicros int64) error
	Claim(ctx context.Context, caller model.Caller, bookingID string) (int64, error)
	Position(ctx context.Context, caller model.Caller, bookingID string) (*model.InvestorPosition, error)
}

type ledgerService struct {
	repo        repository.BookingRepository
	lockRepo    repository.BookingLockRepository
	listingRepo listingsrepo.ListingRepository
	validator   *validator.LedgerValidator
	gate        AvailabilityGate
	payments    PaymentRail
	approver    approval.Verifier
	publisher   events.Publisher
	cfg         *config.Config

	mu       sync.Mutex
	inflight map[string]*inflightLock
}

// inflightLock is a per-booking mutex with a reference count so entries can
// be evicted from the inflight map once no call holds or awaits them.
type inflightLock struct {
	mu   sync.Mutex
	refs int
}

func NewLedgerService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	listingRepo listingsrepo.ListingRepository,
	validator *validator.LedgerValidator,
	gate AvailabilityGate,
	payments PaymentRail,
	approver approval.Verifier,
	publisher events.Publisher,
	cfg *config.Config,
) LedgerService {
	return &ledgerService{
		repo:        repo,
		lockRepo:    lockRepo,
		listingRepo: listingRepo,
		validator:   validator,
		gate:        gate,
		payments:    payments,
		approver:    approver,
		publisher:   publisher,
		cfg:         cfg,
		inflight:    make(map[string]*inflightLock),
	}
}

// --- Reads ---

func (s *ledgerService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return booking, nil
}

func (s *ledgerService) GetByListing(ctx context.Context, listingID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if listingID == "" {
		return nil, 0, apperrors.InvalidInput("Listing ID is required")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByListing(ctx, listingID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "listing_id", listingID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByListing(ctx, listingID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "listing_id", listingID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Locking ---

// lockBooking serializes mutating calls per booking: an in-process mutex
// covers goroutines of this replica, an advisory lock document covers other
// replicas. Cross-booking calls proceed fully in parallel. The inflight map
// stays bounded by concurrent calls, not by distinct booking ids.
func (s *ledgerService) lockBooking(ctx context.Context, bookingID string) (func(), error) {
	s.mu.Lock()
	entry, ok := s.inflight[bookingID]
	if !ok {
		entry = &inflightLock{}
		s.inflight[bookingID] = entry
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()

	release := func() {
		entry.mu.Unlock()
		s.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(s.inflight, bookingID)
		}
		s.mu.Unlock()
	}

	lockID := "ledger_lock_" + bookingID
	_, err := s.lockRepo.Create(ctx, &model.BookingLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(10 * time.Second),
	})
	if err != nil {
		release()
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("Booking is being processed by another request. Please try again.")
		}
		return nil, apperrors.Internal("Failed to acquire booking lock", err)
	}

	return func() {
		if err := s.lockRepo.Delete(ctx, lockID); err != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
		}
		release()
	}, nil
}

// --- Shared helpers ---

// bookingRef is the stable per-booking reference used toward the
// availability gate and the payment rail: listing id plus the listing's
// incrementing booking sequence.
func bookingRef(listingID string, seq int64) string {
	return fmt.Sprintf("%s/%d", listingID, seq)
}

func (s *ledgerService) mapLookupError(err error, id string) error {
	if errors.Is(err, ledgererrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, ledgererrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *ledgerService) mapListingError(err error, id string) error {
	if errors.Is(err, listingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Listing", id)
	}
	if errors.Is(err, listingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid listing ID format")
	}
	return apperrors.Internal("Failed to retrieve listing", err)
}

func conflict(sentinel error, message string) error {
	return apperrors.Wrap(sentinel, apperrors.CodeConflict, message, http.StatusConflict)
}

func precondition(sentinel error, message string) error {
	return apperrors.Wrap(sentinel, apperrors.CodeValidation, message, http.StatusUnprocessableEntity)
}

func requireActive(b *model.Booking, sentinel error) error {
	if b.Status != model.StatusActive {
		return conflict(sentinel, fmt.Sprintf("Booking is %s; this operation requires an active booking", b.Status))
	}
	return nil
}

// saveBooking persists the mutated document, optionally moving the
// listing's active-booking count in the same transaction.
func (s *ledgerService) saveBooking(ctx context.Context, b *model.Booking, activeDelta int64) error {
	if activeDelta == 0 {
		if err := s.repo.Replace(ctx, b.ID, b); err != nil {
			return apperrors.Internal("Failed to persist booking", err)
		}
		return nil
	}

	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Replace(sessCtx, b.ID, b); err != nil {
			return apperrors.Internal("Failed to persist booking", err)
		}
		if err := s.listingRepo.AdjustActiveBookings(sessCtx, b.ListingID, activeDelta); err != nil {
			return apperrors.Internal("Failed to adjust listing booking count", err)
		}
		return nil
	})
}

func (s *ledgerService) publish(ctx context.Context, event model.LedgerEvent) {
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Ledger event not published",
			"event_type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}
