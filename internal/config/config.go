package config

import (
	"fmt"

	"github.com/Netflix/go-env"

	"github.com/ggz/smsbridge/internal/domain"
)

// DefaultCodePattern matches the common verification-code phrasing with the
// digits in the first capture group. Kept in code because the struct tag
// syntax cannot carry a pattern containing commas or braces.
const DefaultCodePattern = `(?:验证码|校验码|动态码|code)[^0-9]{0,8}([0-9]{4,8})`

type Config struct {
	DatabasePath string `env:"DATABASE_PATH,default=smsbridge.db"`
	RedisURL     string `env:"REDIS_URL"`
	APIPort      int    `env:"API_PORT,default=8080"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`

	RateLimitPerSec     int `env:"RATE_LIMIT_PER_SEC,default=10"`
	WorkerConcurrency   int `env:"WORKER_CONCURRENCY,default=4"`
	QueueDepth          int `env:"QUEUE_DEPTH,default=64"`
	MaxDeliveryAttempts int `env:"MAX_DELIVERY_ATTEMPTS,default=5"`
	RetryBackoffSeconds int `env:"RETRY_BACKOFF_SECONDS,default=10"`

	RetentionDays         int `env:"RETENTION_DAYS,default=0"`
	RetentionSweepMinutes int `env:"RETENTION_SWEEP_MINUTES,default=360"`

	Listening    bool   `env:"LISTENING,default=true"`
	SenderFilter string `env:"SENDER_FILTER"`
	CodePattern  string `env:"CODE_PATTERN"`

	Transport      string `env:"TRANSPORT,default=NONE"`
	WebhookURL     string `env:"WEBHOOK_URL"`
	EmailHost      string `env:"EMAIL_HOST"`
	EmailPort      string `env:"EMAIL_PORT,default=25"`
	EmailSSL       bool   `env:"EMAIL_SSL,default=false"`
	EmailUsername  string `env:"EMAIL_USERNAME"`
	EmailPassword  string `env:"EMAIL_PASSWORD"`
	EmailRecipient string `env:"EMAIL_RECIPIENT"`

	EncryptionEnabled bool   `env:"ENCRYPTION_ENABLED,default=false"`
	PublicKey         string `env:"PUBLIC_KEY"`

	NotifyOnNewCode bool `env:"NOTIFY_ON_NEW_CODE,default=true"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.CodePattern == "" {
		cfg.CodePattern = DefaultCodePattern
	}
	return &cfg, nil
}

// PipelineSettings builds the initial settings snapshot from the
// environment. The snapshot is validated here so a bad pattern or
// transport fails startup instead of every event.
func (c *Config) PipelineSettings() (domain.Settings, error) {
	transport, err := domain.ParseTransportKindFromString(c.Transport)
	if err != nil {
		return domain.Settings{}, err
	}

	settings := domain.Settings{
		Listening:    c.Listening,
		SenderFilter: c.SenderFilter,
		CodePattern:  c.CodePattern,
		Transport:    transport,
		Email: domain.EmailSettings{
			Host:      c.EmailHost,
			Port:      c.EmailPort,
			SSL:       c.EmailSSL,
			Username:  c.EmailUsername,
			Password:  c.EmailPassword,
			Recipient: c.EmailRecipient,
		},
		WebhookURL:        c.WebhookURL,
		EncryptionEnabled: c.EncryptionEnabled,
		PublicKey:         c.PublicKey,
		NotifyOnNewCode:   c.NotifyOnNewCode,
	}

	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}
