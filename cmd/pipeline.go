package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/pipeline"
)

var (
	reviseFeedback string
	approveResume  bool
)

var runCmd = &cobra.Command{
	Use:   "run <brief-id>",
	Short: "Send a brief through the pipeline in the foreground",
	Long: `Queue a brief for evaluation and run the pipeline to completion in
this process. Use the orchestrator daemon instead to process briefs in
the background.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineRun(args[0])
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <brief-id>",
	Short: "Approve the plan of a brief paused at the plan-approval gate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return approvePlanRun(args[0])
	},
}

var reviseCmd = &cobra.Command{
	Use:   "revise <brief-id>",
	Short: "Request a revision of a brief in review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviseRun(args[0])
	},
}

func init() {
	approveCmd.Flags().BoolVar(&approveResume, "resume", false, "Resume the pipeline in this process instead of waiting for the daemon")
	reviseCmd.Flags().StringVarP(&reviseFeedback, "feedback", "m", "", "What to change (required)")
	_ = reviseCmd.MarkFlagRequired("feedback")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(reviseCmd)
}

// newPipeline wires a pipeline from the shared store and configured oracle.
func newPipeline() (*pipeline.Pipeline, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	o, err := newOracle()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return pipeline.New(s, o, pipeline.NewStoreLogger(s, logger), pipeline.DefaultConfig()), nil
}

func runPipelineRun(briefID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.GetBrief(ctx, briefID)
	if err != nil {
		return err
	}
	if b.Status != models.BriefStatusIntake && b.Status != models.BriefStatusReview {
		return fmt.Errorf("brief status is %s, expected intake or review", b.Status)
	}

	if dryRun {
		ui.DryRunMsg("Would run pipeline for brief %s", briefID)
		return nil
	}

	b.Status = models.BriefStatusEvaluating
	b.Stage = models.StageNone
	b.RejectionReason = ""
	if err := s.UpdateBrief(ctx, b); err != nil {
		return fmt.Errorf("queue brief: %w", err)
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}

	ui.Info("Running pipeline for %q...", b.Title)
	if err := p.Advance(ctx, briefID); err != nil {
		return err
	}

	return briefShowRun(briefID)
}

func approvePlanRun(briefID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.GetBrief(ctx, briefID)
	if err != nil {
		return err
	}
	if b.Stage != models.StagePlanApproval {
		return fmt.Errorf("brief stage is %s, expected plan_approval", b.Stage)
	}

	if dryRun {
		ui.DryRunMsg("Would approve plan for brief %s", briefID)
		return nil
	}

	b.Stage = models.StagePlanApproved
	if err := s.UpdateBrief(ctx, b); err != nil {
		return fmt.Errorf("approve plan: %w", err)
	}
	ui.Success("Plan approved for %q", b.Title)

	if !approveResume {
		ui.Info("The orchestrator will resume the pipeline on its next scan")
		return nil
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	ui.Info("Resuming pipeline...")
	if err := p.Resume(ctx, briefID); err != nil {
		return err
	}
	return briefShowRun(briefID)
}

func reviseRun(briefID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.GetBrief(ctx, briefID)
	if err != nil {
		return err
	}
	if b.Status != models.BriefStatusReview {
		return fmt.Errorf("brief status is %s, expected review", b.Status)
	}

	if dryRun {
		ui.DryRunMsg("Would request revision of brief %s", briefID)
		return nil
	}

	revision := &models.RevisionRequest{
		BriefID:  b.ID,
		Feedback: reviseFeedback,
		Status:   models.RevisionStatusPending,
	}
	if err := s.CreateRevisionRequest(ctx, revision); err != nil {
		return fmt.Errorf("create revision request: %w", err)
	}

	ui.Success("Revision %d queued for %q", revision.RevisionNumber, b.Title)
	ui.Info("The orchestrator will pick it up on its next scan")
	return nil
}
