package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adaptiveedge/forge/internal/daemon"
	"github.com/adaptiveedge/forge/internal/orchestrator"
)

var (
	orchestrateForeground bool
	orchestrateStopForce  bool
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Run the pipeline orchestrator daemon",
	Long: `Run the orchestrator: a background loop that picks up briefs queued
for evaluation, resumes approved plans, and processes revision requests.

By default the daemon detaches into the background; use --foreground to
keep it attached to the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchestrateStartRun()
	},
}

var orchestrateStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the orchestrator daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchestrateStopRun()
	},
}

var orchestrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the orchestrator daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchestrateStatusRun()
	},
}

func init() {
	orchestrateCmd.Flags().BoolVarP(&orchestrateForeground, "foreground", "f", false, "Run attached to the terminal")
	orchestrateStopCmd.Flags().BoolVar(&orchestrateStopForce, "force", false, "Kill the daemon without waiting for in-flight pipelines")
	orchestrateCmd.AddCommand(orchestrateStopCmd)
	orchestrateCmd.AddCommand(orchestrateStatusCmd)
	rootCmd.AddCommand(orchestrateCmd)
}

func orchestratePIDFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "forge-orchestrator.pid"))
}

func orchestrateStartRun() error {
	pf := orchestratePIDFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("orchestrator already running (pid %d)", pid)
	}

	if !orchestrateForeground {
		return spawnOrchestrator(pf)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := pf.Write(); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() { _ = pf.Remove() }()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	o := orchestrator.New(s, p, logger, orchestrator.Options{
		PollInterval: viper.GetDuration("orchestrator.poll_interval"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals()...)
	go func() {
		<-sigCh
		o.Stop()
	}()

	ui.Info("Orchestrator running (pid %d)", os.Getpid())
	return o.Run(ctx)
}

// spawnOrchestrator re-invokes this binary with --foreground, detached.
func spawnOrchestrator(pf *daemon.PIDFile) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"orchestrate", "--foreground"}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	child := exec.Command(exe, args...)
	setDaemonAttrs(child)

	logPath := filepath.Join(viper.GetString("state_dir"), "orchestrator.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	child.Stdout = logFile
	child.Stderr = logFile

	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ui.Success("Orchestrator started (pid %d)", child.Process.Pid)
	ui.Info("Logs: %s", logPath)
	return nil
}

func orchestrateStopRun() error {
	pf := orchestratePIDFile()
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Orchestrator is not running")
		_ = pf.Remove()
		return nil
	}

	sig := sigTERM()
	if orchestrateStopForce {
		sig = sigKILL()
	}
	if err := pf.Signal(sig); err != nil {
		return fmt.Errorf("signal orchestrator: %w", err)
	}

	// Give it a moment to shut down gracefully.
	for i := 0; i < 50; i++ {
		if _, still := pf.IsRunning(); !still {
			_ = pf.Remove()
			ui.Success("Orchestrator stopped (pid %d)", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Orchestrator (pid %d) did not exit within 5s", pid)
	return nil
}

func orchestrateStatusRun() error {
	pf := orchestratePIDFile()
	if pid, running := pf.IsRunning(); running {
		ui.Success("Orchestrator running (pid %d)", pid)
	} else {
		ui.Info("Orchestrator is not running")
	}
	return nil
}
