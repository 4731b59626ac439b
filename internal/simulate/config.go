// Package simulate drives a running scoreboard with random placement toggles
// and checks the result against a local ledger.
package simulate

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Placements    int           // Number of placement toggles to send
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Seed          int64         // Random seed; 0 picks one from the clock
	DuplicateRate float64       // Share of requests re-sent with the same request id
	Reset         bool          // Reset the scoreboard before sending
	OutputFile    string        // Optional file receiving the generated requests
	Verbose       bool          // Log every request
}

// Validate reports configuration problems.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url is required")
	case c.Placements < 0:
		return fmt.Errorf("placements must not be negative: %d", c.Placements)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive: %s", c.Timeout)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return fmt.Errorf("duplicate rate must be within [0,1]: %v", c.DuplicateRate)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Assigned   int
	Moved      int
	Removed    int
	Blocked    int
	Vacated    int
	Ignored    int
	Duplicates int
	Failed     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
