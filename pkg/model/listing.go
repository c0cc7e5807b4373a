package model

import "time"

// Listing is one rentable unit. Rate and deposit are mutable only while the
// listing has no active booking; listings deactivate, never delete.
type Listing struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty"`
	LandlordID      string    `json:"landlord_id" bson:"landlord_id" validate:"required,min=1,max=64"`
	Name            string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Address         string    `json:"address" bson:"address" validate:"omitempty,max=200"`
	DailyRateMicros int64     `json:"daily_rate_micros" bson:"daily_rate_micros" validate:"required,gt=0"`
	DepositMicros   int64     `json:"deposit_micros" bson:"deposit_micros" validate:"gte=0"`
	AreaSqm         int64     `json:"area_sqm" bson:"area_sqm" validate:"omitempty,gt=0"`
	BookingCounter  int64     `json:"booking_counter" bson:"booking_counter"`
	ActiveBookings  int64     `json:"active_bookings" bson:"active_bookings"`
	Active          bool      `json:"active" bson:"active"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

type ListingUpdate struct {
	Name            string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Address         string `json:"address,omitempty" validate:"omitempty,max=200"`
	DailyRateMicros *int64 `json:"daily_rate_micros,omitempty" validate:"omitempty,gt=0"`
	DepositMicros   *int64 `json:"deposit_micros,omitempty" validate:"omitempty,gte=0"`
}
