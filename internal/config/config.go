package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	OrderAPIBaseURL  string
	OrderAPITimeout  time.Duration
	ServiceJWTSecret string
	ServiceJWTTTL    time.Duration
	ServiceName      string
	JWTSecret        string

	MerchantID       string
	MerchantName     string
	MerchantTimezone string

	QueueRefreshInterval       time.Duration
	ClockTickInterval          time.Duration
	NotificationPollInterval   time.Duration
	NotificationRetryBaseDelay time.Duration
	NotificationMaxRetries     int
	NotificationFetchLimit     int
	BulkRatePerSecond          float64

	AlertSoundEnabled     bool
	AlertVibrationEnabled bool
	AlertDesktopEnabled   bool
	DesktopAutoDismiss    time.Duration

	DatabaseURL         string
	DatabaseListenChan  string
	RabbitMQURL         string
	RabbitMQExchange    string
	RabbitMQQueue       string
	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
	ObjectStoreRetention       time.Duration
}

func Load() Config {
	cfg := Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		HTTPAddr: getEnv("HTTP_ADDR", ":8087"),

		OrderAPIBaseURL:  getEnv("ORDER_API_BASE_URL", "http://localhost:8086"),
		OrderAPITimeout:  getEnvDuration("ORDER_API_TIMEOUT", 8*time.Second),
		ServiceJWTSecret: getEnvFirst([]string{"SERVICE_JWT_SECRET", "JWT_SECRET"}, ""),
		ServiceJWTTTL:    getEnvDuration("SERVICE_JWT_TTL", 15*time.Minute),
		ServiceName:      getEnv("SERVICE_NAME", "staff-queue"),
		JWTSecret:        getEnv("JWT_SECRET", ""),

		MerchantID:       getEnv("MERCHANT_ID", ""),
		MerchantName:     getEnv("MERCHANT_NAME", ""),
		MerchantTimezone: getEnv("MERCHANT_TIMEZONE", "Asia/Jakarta"),

		QueueRefreshInterval:       getEnvDuration("QUEUE_REFRESH_INTERVAL", 30*time.Second),
		ClockTickInterval:          getEnvDuration("CLOCK_TICK_INTERVAL", time.Second),
		NotificationPollInterval:   getEnvDuration("NOTIFICATION_POLL_INTERVAL", 30*time.Second),
		NotificationRetryBaseDelay: getEnvDuration("NOTIFICATION_RETRY_BASE_DELAY", time.Second),
		NotificationMaxRetries:     int(getEnvInt64("NOTIFICATION_MAX_RETRIES", 3)),
		NotificationFetchLimit:     int(getEnvInt64("NOTIFICATION_FETCH_LIMIT", 50)),
		BulkRatePerSecond:          getEnvFloat("BULK_RATE_PER_SECOND", 0),

		AlertSoundEnabled:     getEnvBool("ALERT_SOUND_ENABLED", true),
		AlertVibrationEnabled: getEnvBool("ALERT_VIBRATION_ENABLED", true),
		AlertDesktopEnabled:   getEnvBool("ALERT_DESKTOP_ENABLED", true),
		DesktopAutoDismiss:    getEnvDuration("DESKTOP_AUTO_DISMISS", 5*time.Second),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseListenChan:  getEnv("DATABASE_LISTEN_CHANNEL", "orders_updates"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:    getEnv("RABBITMQ_EXCHANGE", "genfity.events"),
		RabbitMQQueue:       getEnv("RABBITMQ_QUEUE", "staff-queue.order-events"),
		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
		ObjectStoreRetention:       getEnvDuration("OBJECT_STORE_RETENTION", 7*24*time.Hour),
	}

	if cfg.NotificationMaxRetries < 0 {
		cfg.NotificationMaxRetries = 0
	}
	if cfg.NotificationFetchLimit <= 0 {
		cfg.NotificationFetchLimit = 50
	}
	if cfg.BulkRatePerSecond < 0 {
		cfg.BulkRatePerSecond = 0
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if strings.TrimSpace(c.OrderAPIBaseURL) == "" {
		errs = append(errs, errors.New("ORDER_API_BASE_URL is required"))
	}
	if _, err := time.LoadLocation(c.MerchantTimezone); err != nil {
		errs = append(errs, errors.New("MERCHANT_TIMEZONE is not a known zone"))
	}
	for name, d := range map[string]time.Duration{
		"QUEUE_REFRESH_INTERVAL":     c.QueueRefreshInterval,
		"CLOCK_TICK_INTERVAL":        c.ClockTickInterval,
		"NOTIFICATION_POLL_INTERVAL": c.NotificationPollInterval,
	} {
		if d <= 0 {
			errs = append(errs, errors.New(name+" must be positive"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
