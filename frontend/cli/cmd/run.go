package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/emberhq/ember/backend/agent"
	"github.com/emberhq/ember/backend/event"
	"github.com/emberhq/ember/backend/tool"
	"github.com/emberhq/ember/backend/tool/safety"
	"github.com/emberhq/ember/backend/transcript"
	"github.com/emberhq/ember/shared/config"
	"github.com/emberhq/ember/shared/keyring"
)

type runOptions struct {
	Model         string
	MaxIterations int
	ShowProgress  bool
}

func NewRunCmd() *cobra.Command {
	options := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <prompt> [args...]",
		Short: "Run the agent on a prompt until it answers or hits the iteration cap",
		Example: `  # Ask for a change in the current project
  ember run "add a --verbose flag to the CLI"

  # Use a reusable command template from .ember/commands/review.md
  ember run /review pkg/server.go

  # Pick the larger configured model
  ember run --model opus "refactor the storage layer"`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-iterations") {
				cfg.MaxIterations = options.MaxIterations
			}

			fs := afero.NewOsFs()
			sessionID := uuid.New()

			recorder, err := transcript.NewRecorder(fs, cfg.OutputDir, sessionID)
			if err != nil {
				return err
			}

			prompt, err := resolvePrompt(fs, cfg, args)
			if err != nil {
				return err
			}
			if strings.HasPrefix(args[0], "/") {
				if _, err := recorder.SavePrompt(prompt); err != nil {
					return err
				}
			}

			provider, err := buildProvider(cmd.Context(), cfg, keyring.NewKeyringProvider())
			if err != nil {
				return err
			}

			modelName := cfg.ResolveModel(options.Model)
			if err := ensureLocalModel(cmd.Context(), provider, modelName); err != nil {
				return err
			}

			bus := event.NewBus(prometheus.DefaultRegisterer)
			defer bus.Close()
			if options.ShowProgress {
				watchProgress(cmd, bus)
			}

			loop := agent.NewLoop(provider, modelName, buildRegistry(fs, cfg),
				agent.WithMaxIterations(cfg.MaxIterations),
				agent.WithRecorder(recorder),
				agent.WithBus(bus),
			)

			result, err := loop.RunSession(cmd.Context(), sessionID, prompt)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.FinalAnswer)

			if result.Outcome == agent.OutcomeTruncated {
				return fmt.Errorf("stopped after %d iterations without a final answer (transcript: %s)",
					result.Iterations, recorder.StreamPath())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&options.Model, "model", "m", "", `model name or alias ("opus", "sonnet")`)
	cmd.Flags().IntVar(&options.MaxIterations, "max-iterations", config.DefaultMaxIterations, "maximum number of model turns")
	cmd.Flags().BoolVar(&options.ShowProgress, "progress", true, "print tool activity while the agent works")

	return cmd
}

// buildRegistry wires the full tool set against the real file system and
// shell, rooted at the configured project directory.
func buildRegistry(fs afero.Fs, cfg *config.Config) *tool.Registry {
	files := tool.NewFiles(fs, cfg.ProjectRoot, nil)
	search := tool.NewSearch(fs, cfg.ProjectRoot)
	shell := tool.NewShell(safety.NewValidator(), cfg.ProjectRoot, cfg.CommandTimeout, nil)

	return tool.NewRegistry(
		files.ReadTool(),
		files.WriteTool(),
		files.EditTool(),
		shell.Tool(),
		search.GlobTool(),
		search.GrepTool(),
	)
}

// resolvePrompt returns either the literal prompt or, for /name
// invocations, the expanded command template. A /name with no template
// file is not an error: the raw command text becomes the prompt.
func resolvePrompt(fs afero.Fs, cfg *config.Config, args []string) (string, error) {
	if !strings.HasPrefix(args[0], "/") {
		return strings.Join(args, " "), nil
	}

	name := strings.TrimPrefix(args[0], "/")
	templates := agent.NewTemplates(fs, filepath.Join(cfg.ProjectRoot, ".ember", "commands"))
	prompt, err := templates.Expand(name, args[1:])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return strings.Join(args, " "), nil
		}
		return "", err
	}
	return prompt, nil
}

// watchProgress streams tool activity to the terminal as the run
// proceeds.
func watchProgress(cmd *cobra.Command, bus *event.Bus) {
	event.Subscribe(bus, func(ctx context.Context, e event.TurnCompleted) {
		fmt.Fprintf(cmd.ErrOrStderr(), "turn %d: %d tool call(s)\n", e.Iteration, e.ToolCalls)
	}, nil)
	event.Subscribe(bus, func(ctx context.Context, e event.ToolExecuted) {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s (%s)\n", e.Tool, e.Duration.Round(time.Millisecond))
	}, nil)
}
