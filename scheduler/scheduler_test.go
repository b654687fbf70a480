package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/config"
	"github.com/choronzon/choronzon/corpus"
	"github.com/choronzon/choronzon/coverage"
	"github.com/choronzon/choronzon/fitness"
	"github.com/choronzon/choronzon/gene"
	"github.com/choronzon/choronzon/rng"
)

// leafPlugin is the minimal format.Plugin a scheduler test needs: one
// leaf gene whose payload is serialized verbatim, so mutators have
// something to edit and serialization never fails.
type leafPlugin struct{}

func (leafPlugin) Name() string { return "leaf" }

func (leafPlugin) Deserialize(data []byte) (*chromo.Chromosome, error) {
	return &chromo.Chromosome{Root: gene.New("LEAF", data, nil, gene.FlagLeaf)}, nil
}

func (leafPlugin) Serialize(c *chromo.Chromosome) ([]byte, error) {
	return append([]byte(nil), c.Root.Payload...), nil
}

func (leafPlugin) Admissible(parentKind, childKind string, position int) bool { return true }

// scriptedExecutor returns one coverage.Result per call, from results, in
// order, looping the final entry once exhausted. It never spawns a process.
type scriptedExecutor struct {
	results []coverage.Result
	calls   int
}

func (e *scriptedExecutor) Execute(ctx context.Context, serialized []byte) (coverage.Result, error) {
	idx := e.calls
	if idx >= len(e.results) {
		idx = len(e.results) - 1
	}
	e.calls++
	return e.results[idx], nil
}

type recordingCheckpointer struct {
	calls int
}

func (c *recordingCheckpointer) Checkpoint(*corpus.Corpus, *fitness.Map, map[string]float64, map[string]float64, *rng.Source, int) error {
	c.calls++
	return nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.N = 10
	cfg.M = 3
	cfg.KTournament = 1
	cfg.ConsecutiveFailureBudget = 2
	cfg.NoOpRetryBudget = 5
	// Force the mutator family: the test fixture's chromosome is a single
	// leaf gene with no structural children, so every recombinator is an
	// unconditional no-op against it.
	cfg.PRecomb = 0
	return cfg
}

func newTestScheduler(t *testing.T, exec Executor, cp Checkpointer) *Scheduler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(testConfig(), leafPlugin{}, exec, cp, log)
	seed, err := leafPlugin{}.Deserialize([]byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, err)
	seed.ID = "seed"
	seed.Executed = true
	sched.Corpus.Seed(seed, []byte{0x01, 0x02, 0x03, 0x04}, nil)
	return sched
}

func TestRunGenerationAdmitsOnNovelCoverage(t *testing.T) {
	exec := &scriptedExecutor{results: []coverage.Result{
		{Coverage: coverage.Set{coverage.Hit{ImageIndex: 0, BBL: 1}: struct{}{}}, Termination: coverage.Termination{Reason: coverage.Normal}},
	}}
	cp := &recordingCheckpointer{}
	sched := newTestScheduler(t, exec, cp)

	err := sched.RunGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Generation())
	assert.Equal(t, 1, cp.calls)
	assert.GreaterOrEqual(t, sched.Corpus.Len(), 1)
}

func TestRunGenerationAbortsAfterFailureBudget(t *testing.T) {
	exec := &scriptedExecutor{}
	// Force tracer_error every trial.
	exec.results = []coverage.Result{{Termination: coverage.Termination{Reason: coverage.TracerError}}}
	cp := &recordingCheckpointer{}
	cfg := testConfig()
	cfg.ConsecutiveFailureBudget = 1
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(cfg, leafPlugin{}, exec, cp, log)
	seed, err := leafPlugin{}.Deserialize([]byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, err)
	seed.ID = "seed"
	seed.Executed = true
	sched.Corpus.Seed(seed, []byte{0x01, 0x02, 0x03, 0x04}, nil)

	err = sched.RunGeneration(context.Background())
	assert.ErrorIs(t, err, ErrFailureBudgetExceeded)
	assert.Equal(t, 1, cp.calls, "a checkpoint must still be written when the budget is exceeded")
}

func TestRunGenerationRecordsCrash(t *testing.T) {
	exec := &scriptedExecutor{results: []coverage.Result{
		{
			Coverage:     coverage.Set{coverage.Hit{ImageIndex: 0, BBL: 16}: struct{}{}},
			Termination:  coverage.Termination{Reason: coverage.FatalSignal, Code: 11},
			LastHit:      coverage.Hit{ImageIndex: 0, BBL: 16},
			LastHitValid: true,
		},
	}}
	cp := &recordingCheckpointer{}
	sched := newTestScheduler(t, exec, cp)

	err := sched.RunGeneration(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, sched.Corpus.Crashes)
}

func TestRunStopsAtGenerationCap(t *testing.T) {
	exec := &scriptedExecutor{results: []coverage.Result{
		{Termination: coverage.Termination{Reason: coverage.Normal}},
	}}
	cp := &recordingCheckpointer{}
	sched := newTestScheduler(t, exec, cp)

	err := sched.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Generation())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	exec := &scriptedExecutor{results: []coverage.Result{
		{Termination: coverage.Termination{Reason: coverage.Normal}},
	}}
	cp := &recordingCheckpointer{}
	sched := newTestScheduler(t, exec, cp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sched.Run(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRestoreStateOverwritesSchedulerFields(t *testing.T) {
	exec := &scriptedExecutor{results: []coverage.Result{{Termination: coverage.Termination{Reason: coverage.Normal}}}}
	cp := &recordingCheckpointer{}
	sched := newTestScheduler(t, exec, cp)

	restoredCorpus := corpus.New(5)
	restoredCoverage := fitness.NewMap()
	restoredRNG := rng.New(123)

	sched.RestoreState(restoredCorpus, restoredCoverage, map[string]float64{"bit_flip": 0.5}, nil, restoredRNG, 7)
	assert.Equal(t, 7, sched.Generation())
	assert.Same(t, restoredCorpus, sched.Corpus)
	assert.Same(t, restoredCoverage, sched.Coverage)
	assert.Same(t, restoredRNG, sched.RNG)
}
