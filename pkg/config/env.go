package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvMinBookingNotice  = "MIN_BOOKING_NOTICE"
	EnvMaxBookingWindow  = "MAX_BOOKING_WINDOW"
	EnvDayRounding       = "DAY_ROUNDING"
	EnvUpfrontSettlement = "UPFRONT_RENT_SETTLEMENT"

	EnvRentTenantFeeBps   = "RENT_TENANT_FEE_BPS"
	EnvRentLandlordFeeBps = "RENT_LANDLORD_FEE_BPS"
	EnvRaiseBoundBps      = "RAISE_BOUND_BPS"
	EnvPlatformAccountID  = "PLATFORM_ACCOUNT_ID"

	EnvApprovalSecret = "APPROVAL_SECRET"

	EnvAvailabilityBaseURL = "AVAILABILITY_BASE_URL"
	EnvPaymentsBaseURL     = "PAYMENTS_BASE_URL"

	EnvEventTopic    = "EVENT_TOPIC"
	EnvEventDLQTopic = "EVENT_DLQ_TOPIC"
)
