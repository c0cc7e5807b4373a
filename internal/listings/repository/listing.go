package repository

import (
	"context"
	"errors"
	"fmt"
	listingserrors "stayledger/internal/listings/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Listings"
)

type mongoListingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Listing, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, listing *model.Listing) error
	Deactivate(ctx context.Context, id string) error

	// NextBookingSeq atomically increments the listing's booking counter
	// and returns the new value.
	NextBookingSeq(ctx context.Context, id string) (int64, error)

	// AdjustActiveBookings moves the active-booking count by delta.
	AdjustActiveBookings(ctx context.Context, id string, delta int64) error

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoListingRepository(cfg *config.Config) ListingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoListingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoListingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoListingRepository) Create(ctx context.Context, listing *model.Listing) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	listing.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, listing)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		listing.ID = oid.Hex()
	}
	return nil
}

func (r *mongoListingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", listingserrors.ErrInvalidID, id)
	}

	var listing model.Listing
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}

	return &listing, nil
}

func (r *mongoListingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Listing, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find listings: %w", err)
	}
	defer cursor.Close(ctx)

	var listings []*model.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}

	return listings, nil
}

func (r *mongoListingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}

	return count, nil
}

func (r *mongoListingRepository) Update(ctx context.Context, id string, listing *model.Listing) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", listingserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":              listing.Name,
			"address":           listing.Address,
			"daily_rate_micros": listing.DailyRateMicros,
			"deposit_micros":    listing.DepositMicros,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if result.MatchedCount == 0 {
		return listingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoListingRepository) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", listingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate listing: %w", err)
	}
	if result.MatchedCount == 0 {
		return listingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoListingRepository) NextBookingSeq(ctx context.Context, id string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", listingserrors.ErrInvalidID, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing model.Listing
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$inc": bson.M{"booking_counter": int64(1)}},
		opts,
	).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, listingserrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to allocate booking seq: %w", err)
	}

	return listing.BookingCounter, nil
}

func (r *mongoListingRepository) AdjustActiveBookings(ctx context.Context, id string, delta int64) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", listingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$inc": bson.M{"active_bookings": delta}},
	)
	if err != nil {
		return fmt.Errorf("failed to adjust active bookings: %w", err)
	}
	if result.MatchedCount == 0 {
		return listingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoListingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
