package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/choronzon/choronzon/config"
)

func newInitCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "init <config-path>",
		Short: "Write a default campaign config to config-path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil {
				return &Error{
					Message: fmt.Sprintf("%s already exists", path),
					Hint:    "remove it first or choose a different path",
				}
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("encoding default config: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			if manifestPath != "" {
				if err := writeManifestTemplate(manifestPath); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "also write a campaign manifest template to this path")
	return cmd
}

func writeManifestTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return &Error{Message: fmt.Sprintf("%s already exists", path), Hint: "remove it first or choose a different path"}
	}
	template := []byte(`{
  "target": {
    "path": "/path/to/instrumented/target",
    "args": ["{input}"]
  },
  "format": "png",
  "seeds": ["seeds/minimal.png"],
  "run_dir": "run"
}
`)
	return os.WriteFile(path, template, 0o644)
}
