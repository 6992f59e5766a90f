// Package matcher pairs bank transactions with ledger lines.
//
// Auto-matching is deliberately conservative: a match is created only
// when exactly one candidate ledger line satisfies every active
// criterion. Zero candidates means nothing to do; two or more means
// ambiguity, and ambiguity is left for an operator rather than guessed.
package matcher

import "fmt"

// DefaultDateToleranceDays is the default window for date matching
const DefaultDateToleranceDays = 3

// Config holds the auto-match tolerances.
type Config struct {
	// DateToleranceDays is the maximum day difference between a bank
	// transaction and a candidate ledger line.
	DateToleranceDays int `json:"date_tolerance_days"`

	// MatchDescriptions additionally requires one description to
	// contain the other, case-insensitively.
	MatchDescriptions bool `json:"match_descriptions"`
}

// DefaultConfig returns the default auto-match configuration
func DefaultConfig() *Config {
	return &Config{
		DateToleranceDays: DefaultDateToleranceDays,
		MatchDescriptions: false,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", c.DateToleranceDays)
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
