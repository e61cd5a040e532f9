package config

import (
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	routes := make(map[string]service.Route, len(c.Tasks.Routes))
	for kind, r := range c.Tasks.Routes {
		routes[kind] = service.Route{Module: r.Module, URL: r.URL}
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Events: container.EventsConfig{
			QueueSize: c.Events.QueueSize,
		},
		Tasks: container.TasksConfig{
			SLA:    c.Tasks.SLA,
			Routes: routes,
		},
		Notifications: container.NotificationsConfig{
			KeepaliveInterval: c.Notifications.KeepaliveInterval,
			FeedBuffer:        c.Notifications.FeedBuffer,
		},
	}
}
