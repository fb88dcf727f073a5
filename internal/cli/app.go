package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/buildtall-systems/panelbot/internal/config"
	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/events"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/lock"
	"github.com/buildtall-systems/panelbot/internal/notify"
	"github.com/buildtall-systems/panelbot/internal/service"
)

// openDatabase opens and migrates the configured database.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return database, nil
}

func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return lock.NewLocalLocker(), nil
	}
	rl, err := lock.NewRedisLocker(ctx, cfg.Lock.RedisAddr, cfg.Lock.TTL, logger.Named("lock"))
	if err != nil {
		return nil, err
	}
	logger.Info("using redis locks", zap.String("addr", cfg.Lock.RedisAddr))
	return rl, nil
}

func newCore(database *db.DB, locker lock.Locker, pub events.Publisher, cfg *config.Config, logger *zap.Logger) *service.Core {
	return service.New(database, locker, pub, logger, service.Options{
		Ledger: inventory.Options{
			FilmTolerance: decimal.NewFromFloat(cfg.Ledger.FilmTolerance),
			MaxRetries:    cfg.Ledger.MaxRetries,
			RetryBackoff:  cfg.Ledger.RetryBackoff,
		},
		DefaultRate: decimal.NewFromFloat(cfg.Production.DefaultRate),
	})
}

// externalSinks builds the sinks that need no relay connection.
func externalSinks(cfg *config.Config, logger *zap.Logger) ([]events.Sink, func(), error) {
	var sinks []events.Sink
	var closers []func()

	if len(cfg.Notify.Kafka.Brokers) > 0 {
		k := events.NewKafkaSink(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
		sinks = append(sinks, k)
		closers = append(closers, func() {
			if err := k.Close(); err != nil {
				logger.Warn("closing kafka writer", zap.Error(err))
			}
		})
		logger.Info("kafka notifications enabled", zap.String("topic", cfg.Notify.Kafka.Topic))
	}

	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegramSink(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, tg)
		logger.Info("telegram notifications enabled", zap.Int64("chat_id", cfg.Notify.Telegram.ChatID))
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
