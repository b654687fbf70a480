package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corpus_size: 1000\nseed: 42\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.N)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, Default().M, cfg.M, "fields absent from the file keep their default")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var cfgErr *Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corpus_size: [this is not an int\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("p_recomb: 1.5\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidateBoundaryConditions(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"zero corpus size", func(c *Config) { c.N = 0 }, true},
		{"zero trials per generation", func(c *Config) { c.M = 0 }, true},
		{"negative p_recomb", func(c *Config) { c.PRecomb = -0.1 }, true},
		{"p_recomb above one", func(c *Config) { c.PRecomb = 1.1 }, true},
		{"alpha at zero", func(c *Config) { c.Alpha = 0 }, true},
		{"alpha at one", func(c *Config) { c.Alpha = 1 }, true},
		{"k_tournament zero", func(c *Config) { c.KTournament = 0 }, true},
		{"zero trial timeout", func(c *Config) { c.TrialTimeoutMS = 0 }, true},
		{"k_tournament of one is allowed", func(c *Config) { c.KTournament = 1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
