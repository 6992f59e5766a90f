package matcher

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DateToleranceDays != DefaultDateToleranceDays {
		t.Errorf("date tolerance = %d, want %d", cfg.DateToleranceDays, DefaultDateToleranceDays)
	}
	if cfg.MatchDescriptions {
		t.Error("description matching should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateToleranceDays = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative date tolerance accepted")
	}

	cfg.DateToleranceDays = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero tolerance (same-day matching) rejected: %v", err)
	}
}

func TestConfigClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.DateToleranceDays = 30
	if cfg.DateToleranceDays == 30 {
		t.Error("mutating a clone changed the original")
	}
}
