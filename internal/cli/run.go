package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nbd-wtf/go-nostr/keyer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildtall-systems/panelbot/internal/config"
	"github.com/buildtall-systems/panelbot/internal/dm"
	"github.com/buildtall-systems/panelbot/internal/events"
	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/httpserver"
	"github.com/buildtall-systems/panelbot/internal/logging"
	"github.com/buildtall-systems/panelbot/internal/nostr"
	"github.com/buildtall-systems/panelbot/internal/notify"
)

const dedupTTL = time.Hour

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the panelbot service",
	Long:  `Start panelbot. Connects to relays, answers operator DM commands and publishes notifications.`,
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithSecrets()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("panelbot starting",
		zap.String("version", version),
		zap.String("bot", npub(cfg.Nostr.BotPubkeyHex)),
		zap.Strings("relays", cfg.Nostr.Relays),
		zap.String("database", cfg.Database.Path),
		zap.String("lock", cfg.Lock.Backend))

	kr, err := keyer.NewPlainKeySigner(cfg.Nostr.BotSecretHex)
	if err != nil {
		return fmt.Errorf("creating keyer: %w", err)
	}
	keys := dm.Keys{Keyer: kr, SecretHex: cfg.Nostr.BotSecretHex, PubkeyHex: cfg.Nostr.BotPubkeyHex}

	admins, err := config.PubkeysHex(cfg.Admins)
	if err != nil {
		return err
	}
	operators, err := config.PubkeysHex(cfg.Operators)
	if err != nil {
		return err
	}
	recipients, err := config.PubkeysHex(cfg.Notify.Nostr)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating locker: %w", err)
	}

	relays := nostr.NewRelayManager(cfg.Nostr.Relays, cfg.Nostr.BotPubkeyHex, logger.Named("relay"))
	if err := relays.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to relays: %w", err)
	}
	defer relays.Close()

	sinks, closeSinks, err := externalSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()
	if len(recipients) > 0 {
		sinks = append(sinks, notify.NewNostrSink(kr, cfg.Nostr.BotPubkeyHex, relays, recipients))
	}

	bus := events.NewBus(logger.Named("events"), events.DefaultBuffer, sinks...)
	bus.Start(ctx)
	defer bus.Close()

	srv := httpserver.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, database)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	b := &bot{
		core:      newCore(database, locker, bus, cfg, logger),
		keys:      keys,
		publisher: relays,
		admins:    admins,
		operators: operators,
		proc:      fsm.NewMessageProcessor(),
		logger:    logger.Named("dm"),
	}

	dedup := nostr.NewDeduplicator(dedupTTL)
	go dedup.Run(ctx.Done(), dedupTTL/4)

	logger.Info("panelbot running, waiting for DMs")

	for {
		select {
		case <-ctx.Done():
			handled, failed := b.proc.Stats()
			logger.Info("shutting down", zap.Int("handled", handled), zap.Int("failed", failed))
			return nil

		case event, ok := <-relays.DMEvents():
			if !ok {
				return nil
			}
			if dedup.Seen(event) {
				continue
			}
			if err := b.handle(ctx, event); err != nil {
				logger.Warn("dm not handled", zap.String("event", event.ID), zap.Error(err))
			}
		}
	}
}
