package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/config"
	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/internal/configschema"
	"github.com/choronzon/choronzon/internal/runlog"
	"github.com/choronzon/choronzon/persist"
	"github.com/choronzon/choronzon/scheduler"
)

func newRunCmd(debug, quiet *bool) *cobra.Command {
	var (
		configPath   string
		manifestPath string
		generations  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new campaign from a config and a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, manifest, err := loadCampaignInputs(configPath, manifestPath)
			if err != nil {
				return err
			}
			log := runlog.New(cmd.ErrOrStderr(), logLevel(debug, quiet))
			return runCampaign(cfg, manifest, generations, log)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "campaign config file (see `choronzon init`)")
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "campaign manifest file (target, format, seeds)")
	cmd.Flags().IntVarP(&generations, "generations", "g", 0, "stop after this many generations (0 = run until interrupted)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func loadCampaignInputs(configPath, manifestPath string) (config.Config, *configschema.Manifest, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, manifest, nil
}

func loadManifest(manifestPath string) (*configschema.Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", manifestPath, err)
	}
	manifest, err := configschema.Validate(data)
	if err != nil {
		return nil, &Error{
			Message: fmt.Sprintf("invalid campaign manifest %s: %v", manifestPath, err),
			Hint:    "see `choronzon init --manifest` for a template",
		}
	}
	return manifest, nil
}

// runCampaign wires a scheduler from cfg and manifest, seeds its corpus,
// and runs it to completion, to the generation limit, or to the first
// SIGINT/SIGTERM.
func runCampaign(cfg config.Config, manifest *configschema.Manifest, generations int, log *slog.Logger) error {
	ctx, cancel := cancellableContext()
	defer cancel()

	plugin, err := resolvePlugin(manifest.Format)
	if err != nil {
		return err
	}

	runDir := manifest.RunDir
	if runDir == "" {
		runDir = "run"
	}
	exec := &scheduler.ProcessExecutor{
		TargetPath: manifest.Target.Path,
		TargetArgs: manifest.Target.Args,
		RunDir:     filepath.Join(runDir, "trial"),
		Timeout:    time.Duration(cfg.TrialTimeoutMS) * time.Millisecond,
		Grace:      time.Duration(cfg.TimeoutGraceMS) * time.Millisecond,
	}
	store := persist.NewStore(filepath.Join(runDir, "checkpoint"))

	sched := scheduler.NewScheduler(cfg, plugin, exec, store, log)
	if err := seedCorpus(sched, plugin, manifest.Seeds, log); err != nil {
		return err
	}

	return classifyRunError(sched.Run(ctx, generations))
}

// seedCorpus deserializes every seed file with plugin and admits it into
// the corpus directly, bypassing admission rules — seeds are the
// campaign's starting material, not trial outcomes. A seed that fails to
// deserialize is logged and skipped rather than aborting the whole
// campaign; only a manifest with no valid seed at all is fatal.
func seedCorpus(sched *scheduler.Scheduler, plugin format.Plugin, seedPaths []string, log *slog.Logger) error {
	var admitted int
	for _, path := range seedPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading seed %s: %w", path, err)
		}
		ch, err := plugin.Deserialize(data)
		if err != nil {
			log.Warn("skipping seed rejected by plug-in", "path", path, "format", plugin.Name(), "err", err)
			continue
		}
		ch.ID = seedID(path)
		ch.Executed = true
		sched.Corpus.Seed(ch, data, nil)
		admitted++
	}
	if admitted == 0 && len(seedPaths) > 0 {
		return &Error{
			Message: fmt.Sprintf("none of the %d seed(s) were accepted by the %s plug-in", len(seedPaths), plugin.Name()),
			Hint:    "every seed must be a valid file of the campaign's format",
		}
	}
	return nil
}

func seedID(path string) chromo.ID {
	return chromo.ID(fmt.Sprintf("seed:%s", filepath.Base(path)))
}

func classifyRunError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return &interruptedError{err: err}
	case errors.Is(err, scheduler.ErrFailureBudgetExceeded):
		return &budgetExceededError{err: err}
	default:
		return err
	}
}
