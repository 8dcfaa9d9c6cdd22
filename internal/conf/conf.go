// Package conf provides configuration management using Viper.
// It loads configuration from a YAML file with environment variable and CLI
// flag overrides, and validates the result before the core ever runs a cycle.
package conf

import "time"

// Display modes.
const (
	ModeSingleStation = "single-station"
	ModeBidirectional = "bidirectional"
	ModeJourney       = "journey"
)

// Track is one tracked route/direction pair in single-station mode.
type Track struct {
	Route     string `mapstructure:"route" validate:"required"`
	Direction string `mapstructure:"direction" validate:"omitempty,oneof=inbound outbound"`
	Count     int    `mapstructure:"count" validate:"gte=0"`
}

// Show holds the per-direction row cap for bidirectional mode.
type Show struct {
	Show int `mapstructure:"show" validate:"gte=0"`
}

// Display holds the presentation preferences consumed by the aggregator.
type Display struct {
	TimeFormat string        `mapstructure:"time_format" validate:"oneof=12h 24h"`
	Abbreviate bool          `mapstructure:"abbreviate"`
	Refresh    time.Duration `mapstructure:"refresh" validate:"gt=0"`
	ShowRoute  bool          `mapstructure:"show_route"`
}

// API holds the upstream prediction API settings. Key is the static
// credential attached to every call.
type API struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Breaker holds the circuit breaker tuning.
type Breaker struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gt=0"`
	Cooldown         time.Duration `mapstructure:"cooldown" validate:"gt=0"`
}

// Log holds the logging configuration.
type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputFile string `mapstructure:"output_file"`
}

// Bootstrap is the full validated configuration.
type Bootstrap struct {
	Mode string `mapstructure:"mode" validate:"required,oneof=single-station bidirectional journey"`

	// Single-station and bidirectional modes.
	Station string  `mapstructure:"station"`
	Tracks  []Track `mapstructure:"track" validate:"dive"`

	// Bidirectional mode.
	Route    string `mapstructure:"route"`
	Inbound  Show   `mapstructure:"inbound"`
	Outbound Show   `mapstructure:"outbound"`

	// Journey mode (Route is shared with bidirectional).
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`

	Display *Display `mapstructure:"display" validate:"required"`
	API     *API     `mapstructure:"api" validate:"required"`
	Breaker *Breaker `mapstructure:"breaker" validate:"required"`
	Log     *Log     `mapstructure:"log" validate:"required"`
}
