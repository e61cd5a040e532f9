package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/config"
	"github.com/garyjia/approval-engine/internal/container"
	httpapi "github.com/garyjia/approval-engine/internal/interfaces/http"
	"github.com/garyjia/approval-engine/pkg/database"
	"github.com/garyjia/approval-engine/pkg/utils"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "approval-engine",
		Usage:   "Multi-stage approval workflows with inbox and notifications",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "configs/config.yaml",
				Sources: cli.EnvVars("APPROVAL_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger
func setup(command *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, logger, err := setup(command)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting approval engine",
				zap.String("version", version),
				zap.Int("port", cfg.Server.Port),
				zap.String("driver", cfg.Database.Driver))

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				if closeErr := c.Close(); closeErr != nil {
					logger.Error("Failed to close container", zap.Error(closeErr))
				}
				return err
			}

			svc := c.Services()
			server := httpapi.NewServer(httpapi.ServerConfig{
				Host:              cfg.Server.Host,
				Port:              cfg.Server.Port,
				ReadTimeout:       cfg.Server.ReadTimeout,
				WriteTimeout:      cfg.Server.WriteTimeout,
				KeepaliveInterval: cfg.Notifications.KeepaliveInterval,
			}, httpapi.Services{
				Engine:        svc.Engine,
				Tasks:         svc.Tasks,
				Notifications: svc.Notifications,
				Approvals:     svc.Approvals,
			}, func() (bool, interface{}) {
				h := c.Health()
				return h.Overall, h.Components
			}, c.NamedLogger("http"))

			serveErr := server.Start(ctx)

			// Pending events are delivered before the stores go away
			if err := c.Close(); err != nil {
				logger.Error("Failed to close container", zap.Error(err))
			}

			logger.Info("Approval engine stopped")
			return serveErr
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, logger, err := setup(command)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Database.Driver == config.DriverMemory {
				logger.Info("Memory driver has no migrations")
				return nil
			}

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.NewMigrator(db, logger).RunMigrations(cfg.Database.MigrationsDir); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info("Migrations applied", zap.String("path", cfg.Database.Path))
			return nil
		},
	}
}
