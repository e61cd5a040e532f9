// Package container provides dependency injection and lifecycle management
// for the approval engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/infrastructure/pubsub"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Events        EventsConfig
	Tasks         TasksConfig
	Notifications NotificationsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// EventsConfig holds event queue settings.
type EventsConfig struct {
	// QueueSize bounds events waiting for delivery
	QueueSize int
}

// TasksConfig holds task projector settings.
type TasksConfig struct {
	// SLA is added to an approval's creation time to get its due date
	SLA time.Duration

	// Routes override the default kind to module routing
	Routes map[string]service.Route
}

// NotificationsConfig holds live feed settings.
type NotificationsConfig struct {
	// KeepaliveInterval between SSE keepalive frames
	KeepaliveInterval time.Duration

	// FeedBuffer is each live subscriber's buffer
	FeedBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "data/approvals.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			QueueSize: dispatcher.DefaultQueueSize,
		},
		Tasks: TasksConfig{
			SLA: service.DefaultTaskSLA,
		},
		Notifications: NotificationsConfig{
			KeepaliveInterval: 30 * time.Second,
			FeedBuffer:        pubsub.DefaultFeedBuffer,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Events.QueueSize <= 0 {
		return fmt.Errorf("events.queue_size must be positive")
	}
	if c.Tasks.SLA <= 0 {
		return fmt.Errorf("tasks.sla must be positive")
	}

	return nil
}
