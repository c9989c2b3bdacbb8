package pbft

import (
	"fmt"
	"time"
)

// Config contains engine configuration
type Config struct {
	// RequirePrimary refuses requests submitted to a non-primary replica
	RequirePrimary bool

	// MaxFaulty is f; a negative value derives it from the replica count
	MaxFaulty int

	// CheckpointSize is the number of log entries per replica returned on a
	// view change
	CheckpointSize int

	// MaxLogSize bounds each replica's message log
	MaxLogSize int

	// VerifyCacheSize is the number of cached signature verifications
	VerifyCacheSize int

	// ReconcileInterval is how often Run re-drives pending requests
	ReconcileInterval time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *Config {
	return &Config{
		RequirePrimary:    false,
		MaxFaulty:         -1,
		CheckpointSize:    10,
		MaxLogSize:        1024,
		VerifyCacheSize:   1024,
		ReconcileInterval: 2 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CheckpointSize < 1 {
		return fmt.Errorf("%w: checkpoint size must be at least 1", ErrInvalidConfig)
	}
	if c.MaxLogSize < c.CheckpointSize {
		return fmt.Errorf("%w: max log size must be at least the checkpoint size", ErrInvalidConfig)
	}
	if c.VerifyCacheSize < 1 {
		return fmt.Errorf("%w: verify cache size must be at least 1", ErrInvalidConfig)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("%w: reconcile interval must be positive", ErrInvalidConfig)
	}
	return nil
}
