package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hashicorp/go-uuid"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/config"
	"github.com/choronzon/choronzon/corpus"
	"github.com/choronzon/choronzon/coverage"
	"github.com/choronzon/choronzon/fitness"
	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/gene"
	"github.com/choronzon/choronzon/internal/invariant"
	"github.com/choronzon/choronzon/operators"
	"github.com/choronzon/choronzon/operators/mutate"
	"github.com/choronzon/choronzon/operators/recombine"
	"github.com/choronzon/choronzon/rng"
)

// Checkpointer persists the scheduler's durable state at a generation
// boundary. Its concrete implementation lives in package persist; the
// scheduler depends only on this seam so it can be exercised without a
// filesystem in tests.
type Checkpointer interface {
	Checkpoint(corpus *corpus.Corpus, g *fitness.Map, mutatorWeights, recombinatorWeights map[string]float64, r *rng.Source, generation int) error
}

// Scheduler owns the shared, between-trials-only mutable state of a
// campaign: the corpus, the global coverage map, operator weights and the
// PRNG. It is not safe for concurrent use — the engine is single-threaded
// cooperative by design (see the concurrency model).
type Scheduler struct {
	Plugin   format.Plugin
	Corpus   *corpus.Corpus
	Coverage *fitness.Map
	RNG      *rng.Source
	Executor Executor
	Config   config.Config
	Log      *slog.Logger

	MutatorWeights      *operators.Table
	RecombinatorWeights *operators.Table

	Checkpointer Checkpointer

	generation          int
	consecutiveFailures int
	consecutiveNoOps    int
}

// NewScheduler wires a fresh scheduler from config, with uniform operator
// weights unless the config supplies a saved snapshot to restore.
func NewScheduler(cfg config.Config, plugin format.Plugin, exec Executor, cp Checkpointer, log *slog.Logger) *Scheduler {
	mw := operators.NewTable(mutate.Names)
	rw := operators.NewTable(recombine.Names)
	if cfg.MutatorWeights != nil {
		mw.Restore(cfg.MutatorWeights)
	}
	if cfg.RecombinatorWeights != nil {
		rw.Restore(cfg.RecombinatorWeights)
	}

	return &Scheduler{
		Plugin:              plugin,
		Corpus:              corpus.New(cfg.N),
		Coverage:            fitness.NewMap(),
		RNG:                 rng.New(cfg.Seed),
		Executor:            exec,
		Config:              cfg,
		Log:                 log,
		MutatorWeights:      mw,
		RecombinatorWeights: rw,
		Checkpointer:        cp,
	}
}

// ErrFailureBudgetExceeded is returned by Run when consecutive tracer
// errors exceed the configured budget — the fatal condition that maps to
// CLI exit code 2.
var ErrFailureBudgetExceeded = errors.New("consecutive tracer-error budget exceeded")

// Run executes generations until ctx is cancelled or it returns an error.
// On cancellation, Run finishes (or times out) the in-flight trial, writes
// a final checkpoint, and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, maxGenerations int) error {
	for maxGenerations <= 0 || s.generation < maxGenerations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RunGeneration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunGeneration executes Config.M trials and writes a checkpoint. A
// cancelled context stops the generation after the in-flight trial
// completes (or times out) rather than mid-trial.
func (s *Scheduler) RunGeneration(ctx context.Context) error {
	for i := 0; i < s.Config.M; i++ {
		if err := s.runTrial(ctx); err != nil {
			if errors.Is(err, ErrFailureBudgetExceeded) {
				_ = s.checkpoint()
				return err
			}
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	s.generation++
	return s.checkpoint()
}

func (s *Scheduler) checkpoint() error {
	if s.Checkpointer == nil {
		return nil
	}
	return s.Checkpointer.Checkpoint(
		s.Corpus, s.Coverage,
		s.MutatorWeights.Snapshot(), s.RecombinatorWeights.Snapshot(),
		s.RNG, s.generation,
	)
}

// runTrial implements the per-trial state machine: select, vary,
// serialize, spawn_target, ingest_coverage, score, admit_or_discard.
func (s *Scheduler) runTrial(ctx context.Context) error {
	parentA := s.selectParent()

	operatorFamily, operatorName, child, parentB := s.vary(parentA)
	if child == nil {
		// No operator in either family could apply after the no-op
		// retry budget was exhausted; skip this trial rather than spin.
		s.Log.Warn("trial skipped: no operator produced a change", "consecutive_noops", s.consecutiveNoOps)
		return nil
	}

	id, err := uuid.GenerateUUID()
	invariant.Invariant(err == nil, "uuid generation must not fail: %v", err)
	otherParent := chromo.ID("")
	if parentB != nil {
		otherParent = parentB.ID
	}
	candidate := parentA.WithChild(chromo.ID(id), child, operatorName, s.generation, otherParent)

	serialized, err := s.Plugin.Serialize(candidate)
	if err != nil {
		s.penalize(operatorFamily, operatorName)
		s.Log.Info("trial discarded: serialization failed", "operator", operatorName, "err", err)
		return nil
	}

	result, err := s.Executor.Execute(ctx, serialized)
	if err != nil {
		s.consecutiveFailures++
		s.Log.Info("trial discarded: tracer error", "operator", operatorName, "err", err, "consecutive_failures", s.consecutiveFailures)
		if s.consecutiveFailures > s.Config.ConsecutiveFailureBudget {
			return ErrFailureBudgetExceeded
		}
		return nil
	}

	if result.Termination.Reason == coverage.TracerError {
		s.consecutiveFailures++
		s.Log.Info("trial discarded: tracer_error termination", "operator", operatorName, "consecutive_failures", s.consecutiveFailures)
		if s.consecutiveFailures > s.Config.ConsecutiveFailureBudget {
			return ErrFailureBudgetExceeded
		}
		return nil
	}
	s.consecutiveFailures = 0

	decision := s.Corpus.Admit(candidate, serialized, result.Coverage, result.Termination.Reason, s.Coverage)
	if decision.Rule == "crash" {
		key := result.LastHit
		if !result.LastHitValid {
			key = coverage.Hit{ImageIndex: coverage.SentinelImageIndex, BBL: result.Termination.Code}
		}
		s.Corpus.RecordCrash(key, candidate)
	}

	lineage := coverage.Set{} // a freshly admitted chromosome has no prior recorded lineage
	if decision.Admitted {
		s.Coverage.Record(result.Coverage, lineage)
		s.reward(operatorFamily, operatorName)
		s.consecutiveNoOps = 0
	}

	s.Log.Info("trial complete",
		"operator", operatorName,
		"termination", result.Termination.Reason.String(),
		"admitted", decision.Admitted,
		"rule", decision.Rule,
		"fitness", candidate.Fitness,
	)
	return nil
}

// selectParent runs a tournament-of-k over the corpus.
func (s *Scheduler) selectParent() *chromo.Chromosome {
	return s.Corpus.Tournament(s.Config.KTournament, s.RNG.Intn)
}

// vary alternates families with probability PRecomb, selects a weighted
// operator within that family, and applies it; a no-op result is retried
// with a fresh draw of family and operator (which may pick the same
// operator again) up to NoOpRetryBudget attempts in all before giving up
// for this trial.
func (s *Scheduler) vary(parentA *chromo.Chromosome) (family, name string, child *gene.Gene, parentB *chromo.Chromosome) {
	for attempt := 0; attempt < s.Config.NoOpRetryBudget; attempt++ {
		useRecomb := s.RNG.Bool(s.Config.PRecomb)
		if useRecomb {
			opName := s.RecombinatorWeights.Select(s.RNG)
			var b *chromo.Chromosome
			if !recombine.SingleParent[opName] {
				b = s.selectParent()
			}
			fn := recombine.Registry[opName]
			bRoot := (*gene.Gene)(nil)
			if b != nil {
				bRoot = b.Root
			}
			result := fn(s.RNG, s.Plugin, parentA.Root, bRoot)
			if !result.Equal(parentA.Root) {
				return "recombinator", opName, result, b
			}
			s.consecutiveNoOps++
			continue
		}

		opName := s.MutatorWeights.Select(s.RNG)
		fn := mutate.Registry[opName]
		result := fn(s.RNG, parentA.Root)
		if !result.Equal(parentA.Root) {
			return "mutator", opName, result, nil
		}
		s.consecutiveNoOps++
	}
	return "", "", nil, nil
}

func (s *Scheduler) reward(family, name string) {
	switch family {
	case "mutator":
		s.MutatorWeights.Reward(name, s.Config.Alpha)
	case "recombinator":
		s.RecombinatorWeights.Reward(name, s.Config.Alpha)
	}
}

func (s *Scheduler) penalize(family, name string) {
	switch family {
	case "mutator":
		s.MutatorWeights.Penalize(name, s.Config.Alpha)
	case "recombinator":
		s.RecombinatorWeights.Penalize(name, s.Config.Alpha)
	}
}

// Generation returns the number of completed generations.
func (s *Scheduler) Generation() int { return s.generation }

// RestoreState replaces the scheduler's corpus, coverage map, operator
// weights, PRNG and generation counter with previously checkpointed
// values. It is the resume seam: the scheduler itself has no notion of a
// checkpoint's on-disk layout, so the caller (package persist, via the
// CLI's resume command) does the deserialization and hands back live
// objects.
func (s *Scheduler) RestoreState(
	c *corpus.Corpus,
	g *fitness.Map,
	mutatorWeights, recombinatorWeights map[string]float64,
	r *rng.Source,
	generation int,
) {
	s.Corpus = c
	s.Coverage = g
	if mutatorWeights != nil {
		s.MutatorWeights.Restore(mutatorWeights)
	}
	if recombinatorWeights != nil {
		s.RecombinatorWeights.Restore(recombinatorWeights)
	}
	s.RNG = r
	s.generation = generation
	s.consecutiveFailures = 0
	s.consecutiveNoOps = 0
}
