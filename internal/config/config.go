// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config filled with defaults; Load layers file and env on top.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"time"

	"github.com/okian/biggame/internal/domain/model"
)

// Store drivers accepted by StoreDriver.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the mirror store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database file, used with the sqlite driver.
	StorePath string `koanf:"store_path"`

	// QueueSize bounds the in-memory change queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of mirror workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many placement request ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// WatchIntervalMS is how often the store revision is polled. 0 disables the watcher.
	WatchIntervalMS int `koanf:"watch_interval_ms"`

	// PublicURL is the externally reachable base URL encoded in the QR code.
	// Empty means derive it from the incoming request.
	PublicURL string `koanf:"public_url"`

	Games []model.Game `koanf:"games"`
	Teams []model.Team `koanf:"teams"`
}

// New creates a Config with defaults: the five lake games and three teams.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		StoreDriver:     StoreMemory,
		StorePath:       "biggame.db",
		QueueSize:       1024,
		WorkerCount:     2,
		DedupeSize:      1024,
		WatchIntervalMS: 1000,
		Games:           DefaultGames(),
		Teams:           DefaultTeams(),
	}
}

// DefaultGames returns the standard Big Game catalog.
func DefaultGames() []model.Game {
	return []model.Game{
		{ID: 1, Name: "Ճանաչիր Սևանը", Points: model.Points{First: 20, Second: 15, Third: 10}},
		{ID: 2, Name: "Քարհավաք", Points: model.Points{First: 40, Second: 25, Third: 15}},
		{ID: 3, Name: "Ճանաչիր ՖՆ", Points: model.Points{First: 15, Second: 10, Third: 5}},
		{ID: 4, Name: "Ճանաչիր ԱԶԲ", Points: model.Points{First: 15, Second: 10, Third: 5}},
		{ID: 5, Name: "Թիմային խաղ", Points: model.Points{First: 35, Second: 20, Third: 10}},
	}
}

// DefaultTeams returns the water, land and air teams.
func DefaultTeams() []model.Team {
	return []model.Team{
		{ID: 1, Name: "Ջրում", Color: "from-blue-400 to-cyan-600", Icon: "💧"},
		{ID: 2, Name: "Ցամաքում", Color: "from-emerald-400 to-green-600", Icon: "🏔️"},
		{ID: 3, Name: "Օդում", Color: "from-purple-400 to-pink-600", Icon: "☁️"},
	}
}

// WatchInterval returns WatchIntervalMS as a duration.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMS) * time.Millisecond
}

// Validate checks listen address, store settings and the catalog.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("%w: store_path is required for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.WatchIntervalMS < 0 {
		return fmt.Errorf("%w: watch_interval_ms must not be negative", ErrInvalidConfig)
	}

	gameIDs := make(map[int]bool, len(c.Games))
	for _, g := range c.Games {
		if g.ID <= 0 {
			return fmt.Errorf("%w: game id %d must be positive", ErrInvalidConfig, g.ID)
		}
		if gameIDs[g.ID] {
			return fmt.Errorf("%w: duplicate game id %d", ErrInvalidConfig, g.ID)
		}
		gameIDs[g.ID] = true
		if g.Points.First < 0 || g.Points.Second < 0 || g.Points.Third < 0 {
			return fmt.Errorf("%w: game %d has negative points", ErrInvalidConfig, g.ID)
		}
	}

	teamIDs := make(map[int]bool, len(c.Teams))
	for _, t := range c.Teams {
		if t.ID <= 0 {
			return fmt.Errorf("%w: team id %d must be positive", ErrInvalidConfig, t.ID)
		}
		if teamIDs[t.ID] {
			return fmt.Errorf("%w: duplicate team id %d", ErrInvalidConfig, t.ID)
		}
		teamIDs[t.ID] = true
	}
	return nil
}
