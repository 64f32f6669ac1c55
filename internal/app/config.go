package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// BIDSDir is the input dataset root.
	BIDSDir string
	// OutputDir is the derivative destination; empty selects
	// <BIDSDir>/derivatives/petdeface.
	OutputDir string
	// DefacedDir overrides the adjacent-mode sibling dataset location;
	// empty selects <BIDSDir>_defaced.
	DefacedDir string

	// Placement is one of adjacent, inplace, or derivatives.
	Placement string
	// AnatDefault selects the synthetic-anatomical fallback: "", t1, mni
	// or pet.
	AnatDefault string
	// AnatOnly restricts the run to anatomical defacing.
	AnatOnly bool
	// PreviewPics asks the defacing tool for before/after images.
	PreviewPics bool

	ParticipantLabel   []string
	ParticipantExclude []string
	SessionLabel       []string
	SessionExclude     []string

	// NProcs bounds the executor's worker pool.
	NProcs int
	// SkipValidator bypasses dataset validation.
	SkipValidator bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BIDSDir == "" {
		return nil, errors.New("BIDSDir is a required configuration field and cannot be empty")
	}
	if cfg.Placement == "" {
		cfg.Placement = "adjacent"
	}
	if cfg.NProcs < 1 {
		cfg.NProcs = 2
	}
	return &cfg, nil
}
