package config

import "time"

// Day-rounding policies for partial-day stays.
const (
	DayRoundingCeil   = "ceil"
	DayRoundingReject = "reject"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "stayledger"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultMinBookingNotice  = 24 * time.Hour
	DefaultMaxBookingWindow  = 365 * 24 * time.Hour
	DefaultDayRounding       = DayRoundingCeil
	DefaultUpfrontSettlement = false

	DefaultRentTenantFeeBps   = 0
	DefaultRentLandlordFeeBps = 1000
	DefaultRaiseBoundBps      = 2000
	DefaultPlatformAccountID  = "platform-treasury"

	DefaultAvailabilityBaseURL = "http://localhost:8081"
	DefaultPaymentsBaseURL     = "http://localhost:8082"

	DefaultEventTopic    = "stayledger.events"
	DefaultEventDLQTopic = "stayledger.events.dlq"

	DefaultPaginationLimit = 100
)
