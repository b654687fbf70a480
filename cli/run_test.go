package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/config"
	"github.com/choronzon/choronzon/corpus"
	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/gene"
	"github.com/choronzon/choronzon/scheduler"
)

// rejectingPlugin accepts any payload except one equal to poison, so a
// test can control exactly which seed files fail to deserialize.
type rejectingPlugin struct {
	poison []byte
}

func (p rejectingPlugin) Name() string { return "test-format" }

func (p rejectingPlugin) Deserialize(data []byte) (*chromo.Chromosome, error) {
	if string(data) == string(p.poison) {
		return nil, &format.ParseError{Reason: "poisoned payload"}
	}
	return &chromo.Chromosome{Root: gene.New("LEAF", data, nil, gene.FlagLeaf)}, nil
}

func (p rejectingPlugin) Serialize(c *chromo.Chromosome) ([]byte, error) {
	return append([]byte(nil), c.Root.Payload...), nil
}

func (p rejectingPlugin) Admissible(parentKind, childKind string, position int) bool { return true }

func newTestScheduler(t *testing.T, plugin format.Plugin) *scheduler.Scheduler {
	t.Helper()
	cfg := config.Config{N: 8, Seed: 1}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scheduler.NewScheduler(cfg, plugin, nil, nil, log)
}

func writeSeedFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedCorpusAdmitsAllValidSeeds(t *testing.T) {
	dir := t.TempDir()
	plugin := rejectingPlugin{poison: []byte("never matches")}
	sched := newTestScheduler(t, plugin)

	paths := []string{
		writeSeedFile(t, dir, "a.bin", []byte("seed-a")),
		writeSeedFile(t, dir, "b.bin", []byte("seed-b")),
	}

	err := seedCorpus(sched, plugin, paths, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Corpus.Len())
}

func TestSeedCorpusSkipsInvalidSeedButKeepsValidOnes(t *testing.T) {
	dir := t.TempDir()
	poison := []byte("bad-seed")
	plugin := rejectingPlugin{poison: poison}
	sched := newTestScheduler(t, plugin)

	paths := []string{
		writeSeedFile(t, dir, "good.bin", []byte("good-seed")),
		writeSeedFile(t, dir, "bad.bin", poison),
	}

	err := seedCorpus(sched, plugin, paths, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Corpus.Len())
}

func TestSeedCorpusFatalWhenEverySeedIsInvalid(t *testing.T) {
	dir := t.TempDir()
	poison := []byte("bad-seed")
	plugin := rejectingPlugin{poison: poison}
	sched := newTestScheduler(t, plugin)

	paths := []string{
		writeSeedFile(t, dir, "bad1.bin", poison),
		writeSeedFile(t, dir, "bad2.bin", poison),
	}

	err := seedCorpus(sched, plugin, paths, discardLogger())
	require.Error(t, err)
	var cliErr *Error
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, 0, sched.Corpus.Len())
}

func TestSeedCorpusNoSeedsIsNotFatal(t *testing.T) {
	plugin := rejectingPlugin{poison: []byte("unused")}
	sched := newTestScheduler(t, plugin)

	err := seedCorpus(sched, plugin, nil, discardLogger())
	assert.NoError(t, err)
}

func TestSeedCorpusPropagatesUnreadableSeedFile(t *testing.T) {
	plugin := rejectingPlugin{poison: []byte("unused")}
	sched := newTestScheduler(t, plugin)

	err := seedCorpus(sched, plugin, []string{filepath.Join(t.TempDir(), "missing.bin")}, discardLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "unreadable seed file error must wrap the underlying os error")
	var cliErr *Error
	assert.False(t, errors.As(err, &cliErr), "unreadable seed file must not be reported as a plug-in rejection")
}
