// Agent configuration types.
//
// Information Hiding:
// - Default values hidden

package agent

import "time"

// DefaultMaxIterations bounds a turn when no cap is configured.
const DefaultMaxIterations = 10

// Config holds agent loop configuration. A snapshot is taken at
// construction and never re-read mid-session.
type Config struct {
	// SystemPrompt guides the model's behavior. Prepended once when a
	// conversation starts fresh.
	SystemPrompt string

	// MaxIterations is the hard cap on model round-trips per turn.
	// Zero or negative uses DefaultMaxIterations.
	MaxIterations int

	// WallClock optionally bounds the whole turn. Zero disables it.
	// Expiry fails the turn; per-tool and per-attempt timeouts are
	// owned by the dispatcher and the retrier respectively.
	WallClock time.Duration
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:  "You are a helpful assistant with access to tools.",
		MaxIterations: DefaultMaxIterations,
	}
}

// maxIterations returns the effective cap.
func (c Config) maxIterations() int {
	if c.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return c.MaxIterations
}
