package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/persist"
	"github.com/choronzon/choronzon/scheduler"
)

func newReplayCmd(debug, quiet *bool) *cobra.Command {
	var (
		manifestPath string
		timeoutMS    int
		graceMS      int
	)

	cmd := &cobra.Command{
		Use:   "replay <chromosome-id>",
		Short: "Re-run one corpus member or crash against the target and print its termination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			return replayChromosome(manifest.Target.Path, manifest.Target.Args, manifest.RunDir, manifest.Format, chromo.ID(args[0]), timeoutMS, graceMS, cmd)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "campaign manifest file")
	cmd.Flags().IntVar(&timeoutMS, "timeout-ms", 10_000, "trial timeout for the replay")
	cmd.Flags().IntVar(&graceMS, "grace-ms", 500, "timeout grace period for the replay")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func replayChromosome(targetPath string, targetArgs []string, runDir, formatName string, id chromo.ID, timeoutMS, graceMS int, cmd *cobra.Command) error {
	ctx, cancel := cancellableContext()
	defer cancel()
	if runDir == "" {
		runDir = "run"
	}
	plugin, err := resolvePlugin(formatName)
	if err != nil {
		return err
	}

	checkpointDir := filepath.Join(runDir, "checkpoint")
	restored, err := persist.Restore(checkpointDir, plugin)
	if err != nil {
		return &Error{Message: fmt.Sprintf("failed to load checkpoint at %s: %v", checkpointDir, err)}
	}

	ch := findChromosome(restored, id)
	if ch == nil {
		return suggestChromosomeID(restored, id)
	}

	serialized, err := plugin.Serialize(ch)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", id, err)
	}

	exec := &scheduler.ProcessExecutor{
		TargetPath: targetPath,
		TargetArgs: targetArgs,
		RunDir:     filepath.Join(runDir, "replay"),
		Timeout:    time.Duration(timeoutMS) * time.Millisecond,
		Grace:      time.Duration(graceMS) * time.Millisecond,
	}
	result, err := exec.Execute(ctx, serialized)
	if err != nil {
		return fmt.Errorf("replaying %s: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "termination: %s (code %d)\n", result.Termination.Reason, result.Termination.Code)
	fmt.Fprintf(cmd.OutOrStdout(), "edges hit: %d\n", len(result.Coverage))
	return nil
}

func findChromosome(restored *persist.Restored, id chromo.ID) *chromo.Chromosome {
	for _, ch := range restored.Corpus.All() {
		if ch.ID == id {
			return ch
		}
	}
	for _, ch := range restored.Corpus.Crashes {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

func suggestChromosomeID(restored *persist.Restored, id chromo.ID) error {
	var candidates []string
	for _, ch := range restored.Corpus.All() {
		candidates = append(candidates, string(ch.ID))
	}
	for _, ch := range restored.Corpus.Crashes {
		candidates = append(candidates, string(ch.ID))
	}
	matches := fuzzy.RankFindNormalizedFold(string(id), candidates)
	if len(matches) > 0 {
		return &Error{
			Message: fmt.Sprintf("no chromosome %q in the corpus or crash set", id),
			Hint:    fmt.Sprintf("did you mean %q?", matches[0].Target),
		}
	}
	return &Error{Message: fmt.Sprintf("no chromosome %q in the corpus or crash set", id)}
}
