package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/memory"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/internal/infrastructure/pubsub"
	"github.com/garyjia/approval-engine/internal/infrastructure/worker"
	"github.com/garyjia/approval-engine/internal/report"
	"github.com/garyjia/approval-engine/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	// DB is nil for the memory driver
	DB        *database.DB
	TxManager port.TransactionManager
	Approvals port.ApprovalRepository
}

// StoreBundle holds the process-lifetime stores.
type StoreBundle struct {
	Tasks         port.TaskStore
	Notifications port.NotificationStore
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Engine        appwf.Engine
	Tasks         service.TaskService
	Notifications service.NotificationService
	Approvals     service.ApprovalService
}

// ProvideDatabase opens the approval store for the configured driver.
// The sqlite driver also runs any pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory approval store, data is lost on exit")
		return &DatabaseBundle{
			TxManager: memory.TxManager{},
			Approvals: memory.NewApprovalStore(),
		}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	txManager := sqlite.NewDB(db.DB, logger)
	return &DatabaseBundle{
		DB:        db,
		TxManager: txManager,
		Approvals: repository.NewApprovalRepository(txManager, logger),
	}, nil
}

// ProvideStores creates the task store and notification mailbox.
func ProvideStores() *StoreBundle {
	return &StoreBundle{
		Tasks:         memory.NewTaskStore(),
		Notifications: memory.NewNotificationStore(),
	}
}

// ProvideDispatcher creates the event dispatcher with a bounded queue.
func ProvideDispatcher(cfg *EventsConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(newLoggerAdapter(logger.Named("dispatcher"))),
		dispatcher.WithQueueSize(cfg.QueueSize),
	), nil
}

// ProvideFeed creates the live notification feed.
func ProvideFeed(cfg *NotificationsConfig, logger *zap.Logger) *pubsub.Feed {
	return pubsub.NewFeed(cfg.FeedBuffer, logger.Named("feed"))
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Database   *DatabaseBundle
	Stores     *StoreBundle
	Dispatcher dispatcher.Dispatcher
	Feed       port.NotificationFeed
	TasksCfg   *TasksConfig
	Logger     *zap.Logger
}

// ProvideServices creates the engine and services and registers the
// event handlers that route engine events into mailboxes and the log.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Database == nil || deps.Stores == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	log := newLoggerAdapter(deps.Logger)
	routes := service.NewRouteTable(deps.TasksCfg.Routes)

	engine := appwf.NewEngine(
		deps.Database.Approvals,
		deps.Database.TxManager,
		appwf.WithEventSink(deps.Dispatcher),
		appwf.WithLogger(newLoggerAdapter(deps.Logger.Named("engine"))),
	)

	notifications := service.NewNotificationService(deps.Stores.Notifications, deps.Feed, routes, log)
	service.RegisterNotificationHandlers(deps.Dispatcher, notifications)
	service.RegisterAuditLog(deps.Dispatcher, newLoggerAdapter(deps.Logger.Named("audit")))

	tasks := service.NewTaskService(
		deps.Database.Approvals,
		engine,
		deps.Stores.Tasks,
		notifications,
		service.TaskServiceConfig{SLA: deps.TasksCfg.SLA, Routes: routes},
		log,
	)

	approvals := service.NewApprovalService(engine, report.NewHistoryExporter(deps.Logger.Named("report")), log)

	return &ServiceBundle{
		Engine:        engine,
		Tasks:         tasks,
		Notifications: notifications,
		Approvals:     approvals,
	}, nil
}

// ProvideWorkers creates the worker manager with the event queue worker.
func ProvideWorkers(d dispatcher.Dispatcher, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger.Named("workers"))
	manager.Register(worker.NewEventWorker(d, logger.Named("event-worker")))
	return manager
}
