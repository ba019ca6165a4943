package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/emberhq/ember/backend/agent"
	"github.com/emberhq/ember/backend/transcript"
	"github.com/emberhq/ember/shared/config"
	"github.com/emberhq/ember/shared/keyring"
)

type batchOptions struct {
	Model       string
	Concurrency int
}

func NewBatchCmd() *cobra.Command {
	options := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run one agent session per line of a prompt file",
		Long: `Reads prompts from a file, one per line, and runs each as an
independent agent session on a bounded worker pool. Sessions share no
conversation state; they do share the file system and shell, so prompts
that modify overlapping paths can race.`,
		Example: `  # Run every prompt in tasks.txt, three at a time
  ember batch tasks.txt

  # Serialize the runs
  ember batch tasks.txt --concurrency 1`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			prompts, err := readPrompts(args[0])
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				return fmt.Errorf("no prompts found in %s", args[0])
			}

			provider, err := buildProvider(cmd.Context(), cfg, keyring.NewKeyringProvider())
			if err != nil {
				return err
			}

			modelName := cfg.ResolveModel(options.Model)
			if err := ensureLocalModel(cmd.Context(), provider, modelName); err != nil {
				return err
			}

			fs := afero.NewOsFs()
			loop := agent.NewLoop(provider, modelName, buildRegistry(fs, cfg),
				agent.WithMaxIterations(cfg.MaxIterations),
				agent.WithRecorderFactory(func(sessionID uuid.UUID) (agent.Recorder, error) {
					return transcript.NewRecorder(fs, cfg.OutputDir, sessionID)
				}),
			)
			runtime := agent.NewRuntime(loop, agent.WithConcurrency(options.Concurrency))

			runCtx, stop := context.WithCancel(cmd.Context())
			runtimeDone := make(chan error, 1)
			go func() {
				runtimeDone <- runtime.Run(runCtx)
			}()

			jobs := make([]*agent.Job, 0, len(prompts))
			for _, prompt := range prompts {
				jobs = append(jobs, runtime.Submit(prompt))
			}

			failures := 0
			for i, job := range jobs {
				select {
				case <-job.Done:
				case <-cmd.Context().Done():
					stop()
					<-runtimeDone
					return cmd.Context().Err()
				}

				if job.Err != nil {
					failures++
					fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] failed: %v\n", i+1, len(jobs), job.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s (%d iterations)\n%s\n\n",
					i+1, len(jobs), job.Result.Outcome, job.Result.Iterations, job.Result.FinalAnswer)
			}

			stop()
			<-runtimeDone

			if failures > 0 {
				return fmt.Errorf("%d of %d prompts failed", failures, len(jobs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&options.Model, "model", "m", "", `model name or alias ("opus", "sonnet")`)
	cmd.Flags().IntVar(&options.Concurrency, "concurrency", 3, "number of sessions to run in parallel")

	return cmd
}

func readPrompts(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var prompts []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts, scanner.Err()
}
