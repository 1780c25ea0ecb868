package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/core/internal/adapters/repository"
	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/config"
	"github.com/storefront/core/internal/infrastructure/database"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/infrastructure/server"
	"github.com/storefront/core/internal/ports"
)

// Build information, set with -ldflags "-X ..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront HTTP server",
		Long:  "Start the storefront HTTP server with all configured routes and middleware",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewCGICommand creates the cgi command
func NewCGICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cgi",
		Short: "Answer a single request from the CGI environment",
		Long:  "Answer the request described by the CGI meta-variables and stdin, then exit. Logs go to stderr so stdout carries only the response.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			return runCGI(cmd.Context(), path)
		},
	}

	cmd.Flags().String("path", "", "Route the request as if it were for this path (e.g. /cgi-bin/shoppingcart)")
	return cmd
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage the postgres cart store schema (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration(cmd, "up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 applies all)")
	migrateCmd.AddCommand(upCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration(cmd, "down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to revert (0 reverts all)")
	migrateCmd.AddCommand(downCmd)

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion(cmd)
		},
	})

	return migrateCmd
}

// NewCartCommand creates the cart inspection command
func NewCartCommand() *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect the cart store",
	}

	cartCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every visitor record in store order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCartStore(cmd, func(store *entities.CartStore) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-12s %9s %6s %8s\n", "ID", "COMPUTERS", "PHONES", "PRINTERS")
				for _, rec := range store.Records() {
					fmt.Fprintf(out, "%-12s %9d %6d %8d\n", rec.ID, rec.Counts.Computers, rec.Counts.Phones, rec.Counts.Printers)
				}
				fmt.Fprintf(out, "%d visitor(s)\n", store.Len())
				return nil
			})
		},
	})

	cartCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one visitor record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCartStore(cmd, func(store *entities.CartStore) error {
				counts, ok := store.Get(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", entities.ErrVisitorNotFound, args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Visitor:   %s\n", args[0])
				fmt.Fprintf(out, "Computers: %d\n", counts.Computers)
				fmt.Fprintf(out, "Phones:    %d\n", counts.Phones)
				fmt.Fprintf(out, "Printers:  %d\n", counts.Printers)
				return nil
			})
		},
	})

	return cartCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print storefront version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Storefront %s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", Commit)
		},
	}
}

// openCartRepository returns the configured cart store backend and a function releasing it
func openCartRepository(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (ports.CartRepository, func() error, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresCartRepository(db, appLogger), db.Close, nil
	case "redis":
		client, err := database.NewRedis(ctx, cfg.Redis, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisCartRepository(client, cfg.Redis.KeyPrefix, appLogger), client.Close, nil
	default:
		return repository.NewFlatFileCartRepository(cfg.Storage.Path, appLogger), func() error { return nil }, nil
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cartRepo, closeRepo, err := openCartRepository(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Errorw("Failed to open cart store", "driver", cfg.Storage.Driver, "error", err)
		return err
	}
	defer closeRepo()

	srv, err := server.New(cfg, cartRepo, appLogger)
	if err != nil {
		appLogger.Errorw("Failed to initialize server", "error", err)
		return err
	}

	appLogger.Infow("Starting storefront server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Driver,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(cfg.Server.GetAddr())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Errorw("Server stopped with error", "error", err)
		return err
	}
	appLogger.Infow("Server stopped")
	return nil
}

func runCGI(ctx context.Context, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// A CGI process answers one request, so metrics and rate limiting have nothing to track.
	if cfg.Logger.Output != "file" {
		cfg.Logger.Output = "stderr"
	}
	cfg.Metrics.Enabled = false
	cfg.Security.RateLimitRequests = 0

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	cartRepo, closeRepo, err := openCartRepository(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Errorw("Failed to open cart store", "driver", cfg.Storage.Driver, "error", err)
		return err
	}
	defer closeRepo()

	srv, err := server.New(cfg, cartRepo, appLogger)
	if err != nil {
		appLogger.Errorw("Failed to initialize server", "error", err)
		return err
	}

	if err := srv.ServeCGI(path); err != nil {
		appLogger.Errorw("CGI request failed", "error", err)
		return err
	}
	return nil
}

func withCartStore(cmd *cobra.Command, fn func(store *entities.CartStore) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	cartRepo, closeRepo, err := openCartRepository(ctx, cfg, logger.NewNop())
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := cartRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cart store: %w", err)
	}
	return fn(store)
}

func openMigrator(ctx context.Context) (*database.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	mg, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	release := func() {
		if err := mg.Close(); err != nil {
			log.Printf("Failed to close migrator: %v", err)
		}
		db.Close()
	}
	return mg, release, nil
}

func runMigration(cmd *cobra.Command, direction string, steps int) error {
	ctx := cmd.Context()
	mg, release, err := openMigrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	var changed bool
	switch {
	case direction == "up" && steps > 0:
		changed, err = mg.Steps(steps)
	case direction == "up":
		changed, err = mg.Up()
	case direction == "down" && steps > 0:
		changed, err = mg.Steps(-steps)
	case direction == "down":
		changed, err = mg.Down()
	default:
		return errors.New("unknown migration direction " + direction)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, "No migrations to run")
		return nil
	}
	fmt.Fprintf(out, "Migration %s completed successfully\n", direction)
	return nil
}

func showMigrationVersion(cmd *cobra.Command) error {
	ctx := cmd.Context()
	mg, release, err := openMigrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	status, err := mg.Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !status.Applied {
		fmt.Fprintln(out, "No migrations applied")
		return nil
	}
	fmt.Fprintf(out, "Current migration version: %d\n", status.Version)
	fmt.Fprintf(out, "Dirty: %t\n", status.Dirty)
	return nil
}
