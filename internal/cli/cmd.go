package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildtall-systems/panelbot/internal/commands"
	"github.com/buildtall-systems/panelbot/internal/config"
	"github.com/buildtall-systems/panelbot/internal/events"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/logging"
)

var cmdActor string

var oneShotCmd = &cobra.Command{
	Use:   "cmd <command> [args...]",
	Short: "Run one operator command locally",
	Long: `Run one operator command against the local database with admin rights,
for example:

  panelbot cmd add film:A1 120
  panelbot cmd order panel:A1:0.5:6 glue:2
  panelbot cmd fulfill 7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOneShot,
}

func init() {
	oneShotCmd.Flags().StringVar(&cmdActor, "as", "cli", "actor recorded in the operation log")
	rootCmd.AddCommand(oneShotCmd)
}

func runOneShot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	ctx := inventory.WithActor(cmd.Context(), cmdActor)

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating locker: %w", err)
	}

	sinks, closeSinks, err := externalSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	bus := events.NewBus(logger.Named("events"), events.DefaultBuffer, sinks...)
	bus.Start(ctx)
	defer bus.Close()

	parsed := commands.Parse(strings.Join(args, " "))
	if parsed == nil || !parsed.IsValid() {
		return fmt.Errorf("unknown command %q (try: panelbot cmd help)", strings.Join(args, " "))
	}

	logger.Debug("running command", zap.Stringer("command", parsed), zap.String("actor", cmdActor))
	res := commands.Execute(ctx, newCore(database, locker, bus, cfg, logger), parsed, commands.RoleAdmin)
	if res.Error != nil {
		return res.Error
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}
