package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/choronzon/choronzon/config"
	"github.com/choronzon/choronzon/internal/configschema"
	"github.com/choronzon/choronzon/internal/runlog"
	"github.com/choronzon/choronzon/persist"
	"github.com/choronzon/choronzon/scheduler"
)

func newResumeCmd(debug, quiet *bool) *cobra.Command {
	var (
		configPath   string
		manifestPath string
		generations  int
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a campaign from its last checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, manifest, err := loadCampaignInputs(configPath, manifestPath)
			if err != nil {
				return err
			}
			log := runlog.New(cmd.ErrOrStderr(), logLevel(debug, quiet))
			return resumeCampaign(cfg, manifest, generations, log)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "campaign config file")
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "campaign manifest file")
	cmd.Flags().IntVarP(&generations, "generations", "g", 0, "stop after this many additional generations (0 = run until interrupted)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

// resumeCampaign rebuilds a scheduler exactly as run does, then overlays
// the checkpoint's corpus, coverage map, weights, PRNG and generation
// counter on top before continuing.
func resumeCampaign(cfg config.Config, manifest *configschema.Manifest, generations int, log *slog.Logger) error {
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
	checkpointDir := filepath.Join(runDir, "checkpoint")

	restored, err := persist.Restore(checkpointDir, plugin)
	if err != nil {
		return &Error{
			Message: fmt.Sprintf("failed to restore checkpoint at %s: %v", checkpointDir, err),
			Hint:    "run `choronzon run` first, or check --manifest points at the right run directory",
		}
	}

	exec := &scheduler.ProcessExecutor{
		TargetPath: manifest.Target.Path,
		TargetArgs: manifest.Target.Args,
		RunDir:     filepath.Join(runDir, "trial"),
		Timeout:    time.Duration(cfg.TrialTimeoutMS) * time.Millisecond,
		Grace:      time.Duration(cfg.TimeoutGraceMS) * time.Millisecond,
	}
	store := persist.NewStore(checkpointDir)

	sched := scheduler.NewScheduler(cfg, plugin, exec, store, log)
	sched.RestoreState(restored.Corpus, restored.Coverage, restored.MutatorWeights, restored.RecombinatorWeights, restored.RNG, restored.Generation)

	targetGenerations := 0
	if generations > 0 {
		targetGenerations = restored.Generation + generations
	}
	return classifyRunError(sched.Run(ctx, targetGenerations))
}
