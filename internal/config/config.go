package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const EnvPrefix = "PANELBOT"

// Config holds all application configuration.
type Config struct {
	Verbose    bool
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Lock       LockConfig
	Production ProductionConfig
	HTTP       HTTPConfig
	Metrics    MetricsConfig
	Nostr      NostrConfig
	Notify     NotifyConfig
	Admins     []string // npubs allowed to run every command
	Operators  []string // npubs allowed to run non-admin commands
}

type DatabaseConfig struct {
	Path string
}

type LedgerConfig struct {
	FilmTolerance float64
	MaxRetries    int
	RetryBackoff  time.Duration
}

// LockConfig selects the multi-key lock backend: "local" for a single
// process, "redis" when several processes share one database.
type LockConfig struct {
	Backend   string
	RedisAddr string
	TTL       time.Duration
}

type ProductionConfig struct {
	DefaultRate float64 // meters of film per panel; 0 means rates must be set
}

type HTTPConfig struct {
	Addr string
}

type MetricsConfig struct {
	Enabled bool
}

// NostrConfig holds relay settings. The secret fields are only filled by
// LoadWithSecrets.
type NostrConfig struct {
	Relays       []string
	BotNsec      string
	BotSecretHex string
	BotPubkeyHex string
}

type NotifyConfig struct {
	Nostr    []string // npubs that receive event DMs
	Telegram TelegramConfig
	Kafka    KafkaConfig
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from Viper and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Ledger: LedgerConfig{
			FilmTolerance: viper.GetFloat64("ledger.film_tolerance"),
			MaxRetries:    viper.GetInt("ledger.max_retries"),
			RetryBackoff:  viper.GetDuration("ledger.retry_backoff"),
		},
		Lock: LockConfig{
			Backend:   viper.GetString("lock.backend"),
			RedisAddr: viper.GetString("lock.redis_addr"),
			TTL:       viper.GetDuration("lock.ttl"),
		},
		Production: ProductionConfig{
			DefaultRate: viper.GetFloat64("production.default_rate"),
		},
		HTTP: HTTPConfig{
			Addr: viper.GetString("http.addr"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("metrics.enabled"),
		},
		Nostr: NostrConfig{
			Relays: viper.GetStringSlice("nostr.relays"),
		},
		Notify: NotifyConfig{
			Nostr: viper.GetStringSlice("notify.nostr"),
			Telegram: TelegramConfig{
				Token:  viper.GetString("notify.telegram.token"),
				ChatID: viper.GetInt64("notify.telegram.chat_id"),
			},
			Kafka: KafkaConfig{
				Brokers: viper.GetStringSlice("notify.kafka.brokers"),
				Topic:   viper.GetString("notify.kafka.topic"),
			},
		},
		Admins:    viper.GetStringSlice("admins"),
		Operators: viper.GetStringSlice("operators"),
	}

	// Apply defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "panelbot.db"
	}
	if !viper.IsSet("ledger.film_tolerance") {
		cfg.Ledger.FilmTolerance = 1e-6
	}
	if !viper.IsSet("ledger.max_retries") {
		cfg.Ledger.MaxRetries = 3
	}
	if cfg.Ledger.RetryBackoff == 0 {
		cfg.Ledger.RetryBackoff = 10 * time.Millisecond
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "local"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 30 * time.Second
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if len(cfg.Nostr.Relays) == 0 {
		cfg.Nostr.Relays = []string{"wss://relay.damus.io"}
	}
	if cfg.Notify.Kafka.Topic == "" {
		cfg.Notify.Kafka.Topic = "panelbot.events"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ledger.FilmTolerance < 0 {
		return fmt.Errorf("ledger.film_tolerance must not be negative")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries must not be negative")
	}
	if c.Production.DefaultRate < 0 {
		return fmt.Errorf("production.default_rate must not be negative")
	}
	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown lock.backend %q (use local or redis)", c.Lock.Backend)
	}
	for _, list := range [][]string{c.Admins, c.Operators, c.Notify.Nostr} {
		for _, npub := range list {
			if _, err := NpubToHex(npub); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadWithSecrets loads the env file named by env_file (default .env), then
// the configuration, and decodes the bot key.
func LoadWithSecrets() (*Config, error) {
	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = ".env"
	}
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	cfg.Nostr.BotNsec = viper.GetString("nostr.bot_nsec")
	if cfg.Nostr.BotNsec == "" {
		return nil, fmt.Errorf("nostr.bot_nsec is required (set %s_NOSTR_BOT_NSEC)", EnvPrefix)
	}

	cfg.Nostr.BotSecretHex, err = NsecToHex(cfg.Nostr.BotNsec)
	if err != nil {
		return nil, err
	}
	cfg.Nostr.BotPubkeyHex, err = nostr.GetPublicKey(cfg.Nostr.BotSecretHex)
	if err != nil {
		return nil, fmt.Errorf("deriving bot pubkey: %w", err)
	}
	return cfg, nil
}
