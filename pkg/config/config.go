package config

import (
	"fmt"
	"os"
	"regexp"
	"stayledger/pkg/client"
	"stayledger/pkg/logger"
	"strconv"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Booking policy
	MinBookingNotice  time.Duration
	MaxBookingWindow  time.Duration
	DayRounding       string
	UpfrontSettlement bool

	// Fee and raise policy
	RentTenantFeeBps   int64
	RentLandlordFeeBps int64
	RaiseBoundBps      int64
	PlatformAccountID  string

	// Secret for deposit-release approval verification
	ApprovalSecret string

	// External collaborators
	AvailabilityBaseURL string
	PaymentsBaseURL     string

	// Event sink
	EventTopic    string
	EventDLQTopic string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		MinBookingNotice:  getEnvDuration(EnvMinBookingNotice, DefaultMinBookingNotice),
		MaxBookingWindow:  getEnvDuration(EnvMaxBookingWindow, DefaultMaxBookingWindow),
		DayRounding:       getEnvStr(EnvDayRounding, DefaultDayRounding),
		UpfrontSettlement: getEnvBool(EnvUpfrontSettlement, DefaultUpfrontSettlement),

		RentTenantFeeBps:   int64(getEnvNum(EnvRentTenantFeeBps, DefaultRentTenantFeeBps)),
		RentLandlordFeeBps: int64(getEnvNum(EnvRentLandlordFeeBps, DefaultRentLandlordFeeBps)),
		RaiseBoundBps:      int64(getEnvNum(EnvRaiseBoundBps, DefaultRaiseBoundBps)),
		PlatformAccountID:  getEnvStr(EnvPlatformAccountID, DefaultPlatformAccountID),

		ApprovalSecret: getEnvStr(EnvApprovalSecret, ""),

		AvailabilityBaseURL: getEnvStr(EnvAvailabilityBaseURL, DefaultAvailabilityBaseURL),
		PaymentsBaseURL:     getEnvStr(EnvPaymentsBaseURL, DefaultPaymentsBaseURL),

		EventTopic:    getEnvStr(EnvEventTopic, DefaultEventTopic),
		EventDLQTopic: getEnvStr(EnvEventDLQTopic, DefaultEventDLQTopic),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	for name, d := range map[string]time.Duration{
		"RequestTimeout":  cfg.RequestTimeout,
		"IdempotencyTTL":  cfg.IdempotencyTTL,
		"ReadTimeout":     cfg.ReadTimeout,
		"WriteTimeout":    cfg.WriteTimeout,
		"IdleTimeout":     cfg.IdleTimeout,
		"ShutdownTimeout": cfg.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if cfg.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.MinBookingNotice < 0 {
		errs = append(errs, fmt.Sprintf("MinBookingNotice cannot be negative, got: %s", cfg.MinBookingNotice))
	}
	if cfg.MaxBookingWindow <= 0 {
		errs = append(errs, fmt.Sprintf("MaxBookingWindow must be positive, got: %s", cfg.MaxBookingWindow))
	}
	if cfg.DayRounding != DayRoundingCeil && cfg.DayRounding != DayRoundingReject {
		errs = append(errs, fmt.Sprintf("DayRounding must be %q or %q, got: %s", DayRoundingCeil, DayRoundingReject, cfg.DayRounding))
	}

	for name, bps := range map[string]int64{
		"RentTenantFeeBps":   cfg.RentTenantFeeBps,
		"RentLandlordFeeBps": cfg.RentLandlordFeeBps,
		"RaiseBoundBps":      cfg.RaiseBoundBps,
	} {
		if bps < 0 || bps > 10000 {
			errs = append(errs, fmt.Sprintf("%s must be within [0, 10000], got: %d", name, bps))
		}
	}
	if cfg.RentTenantFeeBps+cfg.RentLandlordFeeBps > 10000 {
		errs = append(errs, fmt.Sprintf("combined rent fees exceed 10000 bps: %d + %d",
			cfg.RentTenantFeeBps, cfg.RentLandlordFeeBps))
	}

	if cfg.PlatformAccountID == "" {
		errs = append(errs, "PlatformAccountID cannot be empty")
	}
	if cfg.ApprovalSecret == "" {
		errs = append(errs, "ApprovalSecret must be set; deposit release cannot be confirmed without it")
	}

	if cfg.AvailabilityBaseURL == "" {
		errs = append(errs, "AvailabilityBaseURL cannot be empty")
	}
	if cfg.PaymentsBaseURL == "" {
		errs = append(errs, "PaymentsBaseURL cannot be empty")
	}
	if cfg.EventTopic == "" {
		errs = append(errs, "EventTopic cannot be empty")
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, e := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, e)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"min_booking_notice", cfg.MinBookingNotice,
		"max_booking_window", cfg.MaxBookingWindow,
		"day_rounding", cfg.DayRounding,
		"upfront_settlement", cfg.UpfrontSettlement,
		"rent_tenant_fee_bps", cfg.RentTenantFeeBps,
		"rent_landlord_fee_bps", cfg.RentLandlordFeeBps,
		"raise_bound_bps", cfg.RaiseBoundBps,
		"platform_account_id", cfg.PlatformAccountID,
		"approval_secret_set", cfg.ApprovalSecret != "",
		"availability_base_url", cfg.AvailabilityBaseURL,
		"payments_base_url", cfg.PaymentsBaseURL,
		"event_topic", cfg.EventTopic,
		"event_dlq_topic", cfg.EventDLQTopic,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
