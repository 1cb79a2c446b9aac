package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/telehealth/libs/config"
	"github.com/md-rashed-zaman/telehealth/libs/kafkax"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
)

type Config struct {
	ServiceName string
	Port        string
	GRPCPort    string
	LogLevel    string

	DatabaseURL string
	DBMaxConns  int
	RedisURL    string

	KafkaBrokers      []string
	NotificationTopic string
	SMTPHost          string
	SMTPPort          string
	SMTPFrom          string
	SMSProvider       string
	SMSWebhookURL     string
	SMSWebhookToken   string

	JWTSecret string
	JWTIssuer string

	Location              *time.Location
	ReminderLead          time.Duration
	ReminderSweepInterval time.Duration
	ReminderTimerHorizon  time.Duration
	JoinLead              time.Duration
	MeetingBaseURL        string

	CORSOrigins        []string
	RateLimitPerMinute int
	BodyLimitBytes     int
	RequestTimeout     time.Duration
}

func loadConfig() (Config, error) {
	cfg := Config{
		ServiceName:       config.String("SERVICE_NAME", "scheduling-service"),
		LogLevel:          config.String("LOG_LEVEL", "info"),
		DatabaseURL:       config.String("DATABASE_URL", ""),
		RedisURL:          config.String("REDIS_URL", ""),
		KafkaBrokers:      kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		NotificationTopic: config.String("KAFKA_NOTIFICATION_TOPIC", notify.DefaultTopic),
		SMTPHost:          config.String("SMTP_HOST", ""),
		SMTPPort:          config.String("SMTP_PORT", "1025"),
		SMTPFrom:          config.String("SMTP_FROM", "no-reply@telehealth.local"),
		SMSProvider:       strings.ToLower(config.String("SMS_PROVIDER", "")),
		SMSWebhookURL:     config.String("SMS_WEBHOOK_URL", ""),
		SMSWebhookToken:   config.String("SMS_WEBHOOK_TOKEN", ""),
		JWTIssuer:         config.String("JWT_ISSUER", "telehealth"),
		MeetingBaseURL:    config.String("MEETING_BASE_URL", "https://meet.telehealth.local/room"),
		CORSOrigins:       config.StringList("CORS_ORIGINS", ""),
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8089"); err != nil {
		return Config{}, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9089"); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10); err != nil {
		return Config{}, err
	}

	tz := config.String("SCHEDULING_TIMEZONE", "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("SCHEDULING_TIMEZONE: %w", err)
	}

	leadMinutes, err := config.Int("REMINDER_LEAD_MINUTES", 15)
	if err != nil {
		return Config{}, err
	}
	joinMinutes, err := config.Int("JOIN_LEAD_MINUTES", 15)
	if err != nil {
		return Config{}, err
	}
	if leadMinutes <= 0 || joinMinutes <= 0 {
		return Config{}, fmt.Errorf("REMINDER_LEAD_MINUTES and JOIN_LEAD_MINUTES must be positive")
	}
	cfg.ReminderLead = time.Duration(leadMinutes) * time.Minute
	cfg.JoinLead = time.Duration(joinMinutes) * time.Minute

	if cfg.ReminderSweepInterval, err = config.Duration("REMINDER_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ReminderTimerHorizon, err = config.Duration("REMINDER_TIMER_HORIZON", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = config.Duration("HTTP_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}
	if cfg.BodyLimitBytes, err = config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20); err != nil {
		return Config{}, err
	}

	switch cfg.SMSProvider {
	case "", "none":
		cfg.SMSProvider = ""
	case "webhook":
		if cfg.SMSWebhookURL == "" {
			return Config{}, fmt.Errorf("SMS_WEBHOOK_URL is required when SMS_PROVIDER=webhook")
		}
	default:
		return Config{}, fmt.Errorf("unsupported SMS_PROVIDER %q", cfg.SMSProvider)
	}
	return cfg, nil
}
