package breaker

import "time"

const (
	DefaultFailureThreshold uint32 = 5
	DefaultRecoveryTimeout         = 60 * time.Second
	DefaultHalfOpenMaxCalls uint32 = 3
)

// Config holds the breaker thresholds. Zero values are replaced with defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32 `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5" json:"failure_threshold"`
	// RecoveryTimeout is measured from the last recorded failure.
	RecoveryTimeout time.Duration `env:"BREAKER_RECOVERY_TIMEOUT" envDefault:"60s" json:"recovery_timeout"`
	// HalfOpenMaxCalls caps concurrent probes while half-open.
	HalfOpenMaxCalls uint32 `env:"BREAKER_HALF_OPEN_MAX_CALLS" envDefault:"3" json:"half_open_max_calls"`
}

// DefaultConfig returns 5 failures / 60s / 3 probes.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		RecoveryTimeout:  DefaultRecoveryTimeout,
		HalfOpenMaxCalls: DefaultHalfOpenMaxCalls,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	return c
}
