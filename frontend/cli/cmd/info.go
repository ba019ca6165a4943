package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/emberhq/ember/shared/config"
)

func NewInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "info",
		Short:        "Show version and configuration information",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:    %s\n", Version)
			fmt.Fprintf(out, "Commit:     %s\n", GitCommit)
			fmt.Fprintf(out, "Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Provider:       %s\n", cfg.Provider)
			if cfg.Provider == config.ProviderKindOllama {
				fmt.Fprintf(out, "Host:           %s\n", cfg.Host)
			}
			fmt.Fprintf(out, "Model:          %s\n", cfg.Model)
			fmt.Fprintf(out, "Large model:    %s\n", cfg.LargeModel)
			fmt.Fprintf(out, "Small model:    %s\n", cfg.SmallModel)
			fmt.Fprintf(out, "Max iterations: %d\n", cfg.MaxIterations)
			fmt.Fprintf(out, "Project root:   %s\n", cfg.ProjectRoot)
			fmt.Fprintf(out, "Output dir:     %s\n", cfg.OutputDir)
			return nil
		},
	}

	return cmd
}
