package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-matricula/internal/config"
	"github.com/goliatone/go-matricula/internal/server"
	"github.com/goliatone/go-matricula/pkg/catalog"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// app carries what every command shares once the root flags are parsed.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	server.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matricula",
		Short: "Enrollment admin forms with dependent field synchronization",
		Long: `matricula serves the catalog endpoints behind the student and
enrollment admin forms, and fills those forms from the terminal with the
same cascading selects the browser uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		serveCmd(a),
		seedCmd(a),
		formCmd(a),
		lookupCmd(a),
		routesCmd(a),
		versionCmd(),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	var fns []config.OptionFn
	if a.logLevel != "" {
		level := a.logLevel
		fns = append(fns, func(c *config.Config) { c.Log.Level = level })
	}
	cfg, err := config.Load(a.configPath, fns...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Log.Logger(cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	return nil
}

// openStore opens the configured database, seeding it with the bundled
// dataset when configured to.
func (a *app) openStore(ctx context.Context) (*catalog.SQLite, error) {
	store, err := catalog.OpenSQLite(a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Database.SeedOnStart {
		ds, err := catalog.DefaultDataset()
		if err == nil {
			err = store.Seed(ctx, ds)
		}
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.logger.Debug("catalog seeded", "path", a.cfg.Database.Path)
	}
	return store, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "matricula %s (%s)\n", version, commit)
		},
	}
}
