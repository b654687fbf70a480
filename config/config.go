// Package config defines the engine's configuration record: every tunable
// the generation scheduler and variation operators read, with no
// keyword-option bag — every field is enumerated so a campaign's behavior
// is fully determined by one serializable struct.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of engine tunables described in the design notes.
type Config struct {
	// N is the corpus capacity.
	N int `yaml:"corpus_size"`
	// M is the number of trials per generation, after which a checkpoint
	// is written.
	M int `yaml:"trials_per_generation"`
	// PRecomb is the probability the scheduler draws from the
	// recombinator family rather than the mutator family for a trial.
	PRecomb float64 `yaml:"p_recomb"`
	// Alpha is the multiplicative reward/penalty factor applied to an
	// operator's weight: a reward when its child is admitted, a penalty
	// when its child fails to serialize.
	Alpha float64 `yaml:"alpha"`
	// KTournament is the tournament size used for parent selection.
	KTournament int `yaml:"k_tournament"`
	// TrialTimeoutMS is the per-trial wall-clock budget in milliseconds.
	TrialTimeoutMS int `yaml:"trial_timeout_ms"`
	// MutatorWeights and RecombinatorWeights seed the operator tables;
	// a nil map means "start uniform".
	MutatorWeights      map[string]float64 `yaml:"mutator_weights,omitempty"`
	RecombinatorWeights map[string]float64 `yaml:"recombinator_weights,omitempty"`
	// Seed is the PRNG seed for the whole campaign.
	Seed uint64 `yaml:"seed"`
	// ConsecutiveFailureBudget is how many tracer_error trials in a row
	// the scheduler tolerates before aborting the run.
	ConsecutiveFailureBudget int `yaml:"consecutive_failure_budget"`
	// NoOpRetryBudget is how many operator applications the scheduler
	// attempts for one trial while each attempt is a no-op; once it is
	// used up the trial is skipped.
	NoOpRetryBudget int `yaml:"noop_retry_budget"`
	// TimeoutGraceMS is how long the scheduler waits for the tracer to
	// flush and send a sentinel after a timeout signal.
	TimeoutGraceMS int `yaml:"timeout_grace_ms"`
}

// Default returns the engine's indicative defaults, per the design notes.
func Default() Config {
	return Config{
		N:                        500,
		M:                        100,
		PRecomb:                  0.5,
		Alpha:                    0.1,
		KTournament:              3,
		TrialTimeoutMS:           10_000,
		Seed:                     1,
		ConsecutiveFailureBudget: 20,
		NoOpRetryBudget:          10,
		TimeoutGraceMS:           500,
	}
}

// Load reads a YAML config file, applying it on top of Default() so an
// omitted field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &Error{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated fields for internal consistency. It is a
// plain range/bound check rather than a generic schema validator — the
// record's fields are few and fixed, so the ambient jsonschema validator
// in internal/configschema is used for the campaign manifest (target,
// format, seeds, run directory), not this flat record.
func (c Config) Validate() error {
	switch {
	case c.N <= 0:
		return &Error{Reason: "corpus_size must be positive"}
	case c.M <= 0:
		return &Error{Reason: "trials_per_generation must be positive"}
	case c.PRecomb < 0 || c.PRecomb > 1:
		return &Error{Reason: "p_recomb must be in [0, 1]"}
	case c.Alpha <= 0 || c.Alpha >= 1:
		return &Error{Reason: "alpha must be in (0, 1)"}
	case c.KTournament < 1:
		return &Error{Reason: "k_tournament must be at least 1"}
	case c.TrialTimeoutMS <= 0:
		return &Error{Reason: "trial_timeout_ms must be positive"}
	}
	return nil
}

// Error reports a malformed configuration. It is fatal at startup: the
// engine flushes nothing (there is nothing to flush yet) and exits
// nonzero.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}
