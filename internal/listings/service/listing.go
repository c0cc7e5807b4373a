package service

import (
	"context"
	"errors"
	"fmt"
	"stayledger/internal/ledger/events"
	listingserrors "stayledger/internal/listings/errors"
	"stayledger/internal/listings/repository"
	"stayledger/internal/listings/validator"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"stayledger/pkg/sanitizer"
	"sync"
	"time"
)

type ListingService interface {
	Create(ctx context.Context, caller model.Caller, listing *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Listing, int64, error)
	Update(ctx context.Context, caller model.Caller, id string, updates *model.ListingUpdate) error
	Deactivate(ctx context.Context, caller model.Caller, id string) error
}

type listingService struct {
	repo      repository.ListingRepository
	validator *validator.ListingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewListingService(
	repo repository.ListingRepository,
	validator *validator.ListingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ListingService {
	return &listingService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *listingService) Create(ctx context.Context, caller model.Caller, listing *model.Listing) error {
	if !caller.Is(model.RoleLandlord) {
		return apperrors.Forbidden("Only landlords can register listings")
	}

	listing.LandlordID = caller.ID
	listing.Active = true
	listing.BookingCounter = 0
	listing.ActiveBookings = 0
	s.sanitize(listing)

	if err := s.validator.Validate(listing); err != nil {
		s.cfg.Log.Warn("Listing validation failed", "error", err)
		return apperrors.Validation("Listing validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		s.cfg.Log.Error("Failed to create listing", "error", err)
		return apperrors.Internal("Failed to create listing", err)
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventListingCreated,
		ListingID: listing.ID,
		Actor:     caller.ID,
	})

	s.cfg.Log.Info("Listing created successfully",
		"id", listing.ID,
		"landlord_id", listing.LandlordID,
	)
	return nil
}

func (s *listingService) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Listing ID cannot be empty")
	}

	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, listingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Listing", id)
		}
		if errors.Is(err, listingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid listing ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve listing", err)
	}

	return listing, nil
}

func (s *listingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Listing, int64, error) {
	var count int64
	var listings []*model.Listing
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count listings", "error", errCount)
			errCount = apperrors.Internal("Failed to count listings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		listings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list listings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve listings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return listings, count, nil
}

func (s *listingService) Update(ctx context.Context, caller model.Caller, id string, updates *model.ListingUpdate) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(caller, existing); err != nil {
		return err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Listing update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	// Rate and deposit are frozen while bookings are active: they were
	// priced into every open reservation.
	if (updates.DailyRateMicros != nil || updates.DepositMicros != nil) && existing.ActiveBookings > 0 {
		return apperrors.Wrap(listingserrors.ErrHasActiveBookings, apperrors.CodeConflict,
			fmt.Sprintf("Rate and deposit cannot change while %d bookings are active", existing.ActiveBookings),
			409)
	}

	merged := s.mergeListingUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validator.Validate(merged); err != nil {
		return apperrors.Validation("Listing validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, listingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Listing", id)
		}
		s.cfg.Log.Error("Failed to update listing", "id", id, "error", err)
		return apperrors.Internal("Failed to update listing", err)
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventListingUpdated,
		ListingID: id,
		Actor:     caller.ID,
	})

	s.cfg.Log.Info("Listing updated successfully", "id", id)
	return nil
}

func (s *listingService) Deactivate(ctx context.Context, caller model.Caller, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(caller, existing); err != nil {
		return err
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, listingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Listing", id)
		}
		s.cfg.Log.Error("Failed to deactivate listing", "id", id, "error", err)
		return apperrors.Internal("Failed to deactivate listing", err)
	}

	s.publish(ctx, model.LedgerEvent{
		Type:      model.EventListingDeactivated,
		ListingID: id,
		Actor:     caller.ID,
	})

	s.cfg.Log.Info("Listing deactivated", "id", id)
	return nil
}

// --- Helpers ---

func (s *listingService) authorizeOwner(caller model.Caller, listing *model.Listing) error {
	if caller.Is(model.RolePlatform) {
		return nil
	}
	if caller.Is(model.RoleLandlord) && caller.ID == listing.LandlordID {
		return nil
	}
	return apperrors.Forbidden("Caller does not manage this listing")
}

func (s *listingService) sanitize(l *model.Listing) {
	l.Name = sanitizer.NormalizeName(l.Name)
	l.Address = sanitizer.NormalizeAddress(l.Address)
}

func (s *listingService) mergeListingUpdates(existing *model.Listing, updates *model.ListingUpdate) *model.Listing {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Address != "" {
		merged.Address = updates.Address
	}
	if updates.DailyRateMicros != nil {
		merged.DailyRateMicros = *updates.DailyRateMicros
	}
	if updates.DepositMicros != nil {
		merged.DepositMicros = *updates.DepositMicros
	}

	return &merged
}

func (s *listingService) publish(ctx context.Context, event model.LedgerEvent) {
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Listing event not published", "event_type", event.Type, "error", err)
	}
}
