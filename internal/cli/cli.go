// Package cli wires the taskexec Cobra commands: run submits one task
// against a configured executor and waits for it to complete; status
// prints a summary of the most recent diagnostic dump.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/diag"
	"github.com/fluxwork/taskexec/internal/executor"
	"github.com/fluxwork/taskexec/internal/handler"
	"github.com/fluxwork/taskexec/internal/metrics"
	"github.com/fluxwork/taskexec/internal/session"
	"github.com/fluxwork/taskexec/internal/task"
)

var configFile string

// fileConfig is the on-disk session config: the recognized session
// keys (spec.md §6) plus metrics server toggles borrowed from the
// teacher's config shape.
type fileConfig struct {
	Executor any `yaml:"executor"`
	Metrics  struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
	DumpPath string `yaml:"dumpPath"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config: %w", err)
	}
	return &cfg, nil
}

// BuildCLI constructs the root taskexec command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskexec",
		Short: "taskexec: task execution subsystem for a workflow engine",
		Long: `taskexec drives shell and native tasks across local and grid
backends, tracking per-task state through a submitted/running/
completed poll loop.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "session config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var executorName string
	var scriptPath string
	var workDir string
	var queue string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit one task to an executor and wait for completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(executorName, scriptPath, workDir, queue)
		},
	}

	cmd.Flags().StringVar(&executorName, "executor", "local", "executor name (local, or a name registered as grid)")
	cmd.Flags().StringVar(&scriptPath, "script", "", "shell script file to run")
	cmd.Flags().StringVar(&workDir, "workdir", "", "work directory (defaults to a temp directory)")
	cmd.Flags().StringVar(&queue, "queue", "", "grid queue name (grid executors only)")
	cmd.MarkFlagRequired("script")

	return cmd
}

func runTask(executorName, scriptPath, workDir, queue string) error {
	fileCfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if fileCfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go func() {
			if err := metrics.StartServer(fileCfg.Metrics.Port); err != nil {
				slog.Error("cli: metrics server stopped", "error", err)
			}
		}()
	}

	raw := map[string]any{"executor": fileCfg.Executor}
	sess := session.New(raw, collector)
	defer sess.Shutdown()

	taskCfg, err := config.NewTaskConfig(map[string]any{"queue": queue})
	if err != nil {
		return err
	}

	if executorName == "local" {
		if err := sess.RegisterLocal("local", taskCfg); err != nil {
			return err
		}
	} else {
		if err := sess.RegisterGrid(executorName, taskCfg, executor.SGE{}, handler.ExecRunner{}); err != nil {
			return err
		}
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("cli: read script: %w", err)
	}
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "taskexec-run-")
		if err != nil {
			return fmt.Errorf("cli: create work directory: %w", err)
		}
	}

	run := &task.Run{
		Name:          scriptPath,
		WorkDirectory: workDir,
		Type:          task.Shell,
		Script:        string(script),
		Config:        taskCfg,
	}

	if err := sess.Submit(executorName, run, nil, nil); err != nil {
		return fmt.Errorf("cli: submit task: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			slog.Warn("cli: received shutdown signal, stopping")
			return nil
		default:
		}
		if sess.ActiveCount(executorName) == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	slog.Info("task completed", "exitStatus", run.ExitStatus, "stdout", run.Stdout)
	if run.ExitStatusSet && run.ExitStatus != 0 {
		return fmt.Errorf("cli: task exited with status %d", run.ExitStatus)
	}
	return nil
}

func buildStatusCommand() *cobra.Command {
	var dumpPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the most recent monitor diagnostic dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(dumpPath)
		},
	}
	cmd.Flags().StringVar(&dumpPath, "dump", "", "path to a monitor diagnostic dump (overrides config dumpPath)")

	return cmd
}

func printStatus(dumpPath string) error {
	if dumpPath == "" {
		fileCfg, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		dumpPath = fileCfg.DumpPath
	}
	if dumpPath == "" {
		return fmt.Errorf("cli: no dump path configured; pass --dump or set dumpPath in the session config")
	}

	body, err := os.ReadFile(dumpPath)
	if err != nil {
		return fmt.Errorf("cli: read dump: %w", err)
	}
	var snap diag.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("cli: parse dump: %w", err)
	}

	fmt.Printf("executor: %s\n", snap.ExecutorName)
	fmt.Printf("taken at: %s\n", snap.TakenAt.Format(time.RFC3339))
	fmt.Printf("active:   %d\n", snap.ActiveCount)
	for status, count := range snap.CountsByStatus() {
		fmt.Printf("  %-10s %d\n", status, count)
	}
	return nil
}
