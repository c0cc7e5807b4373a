package model

import "time"

// BookingLock is an advisory lock document. A TTL index on expires_at
// reclaims locks left behind by crashed processes.
type BookingLock struct {
	ID        string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}
