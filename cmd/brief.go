package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/output"
	"github.com/adaptiveedge/forge/internal/store"
)

var (
	briefDescription  string
	briefProject      string
	briefType         string
	briefFastTrack    bool
	briefAutoDeploy   bool
	briefPlanApproval bool

	briefListStatus  string
	briefListProject string

	briefLogsLimit int
)

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Manage work briefs",
}

var briefCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a brief in intake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return briefCreateRun(args[0])
	},
}

var briefListCmd = &cobra.Command{
	Use:   "list",
	Short: "List briefs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return briefListRun()
	},
}

var briefShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a brief with its plan and latest decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return briefShowRun(args[0])
	},
}

var briefLogsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Show the build log of a brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return briefLogsRun(args[0])
	},
}

func init() {
	briefCreateCmd.Flags().StringVarP(&briefDescription, "description", "d", "", "What should be built or run, and why")
	briefCreateCmd.Flags().StringVarP(&briefProject, "project", "p", "", "Project name")
	briefCreateCmd.Flags().StringVarP(&briefType, "type", "t", "build", "Brief type: build or run")
	briefCreateCmd.Flags().BoolVar(&briefFastTrack, "fast-track", false, "Skip evaluation and go straight to planning")
	briefCreateCmd.Flags().BoolVar(&briefAutoDeploy, "auto-deploy", false, "Deploy automatically after a successful build")
	briefCreateCmd.Flags().BoolVar(&briefPlanApproval, "plan-approval", false, "Pause for human plan approval before building")

	briefListCmd.Flags().StringVar(&briefListStatus, "status", "", "Filter by status")
	briefListCmd.Flags().StringVar(&briefListProject, "project", "", "Filter by project name")

	briefLogsCmd.Flags().IntVar(&briefLogsLimit, "limit", 50, "Maximum log entries to show")

	briefCmd.AddCommand(briefCreateCmd)
	briefCmd.AddCommand(briefListCmd)
	briefCmd.AddCommand(briefShowCmd)
	briefCmd.AddCommand(briefLogsCmd)
	rootCmd.AddCommand(briefCmd)
}

func briefCreateRun(title string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	bt := models.BriefType(briefType)
	if bt != models.BriefTypeBuild && bt != models.BriefTypeRun {
		return fmt.Errorf("invalid brief type %q (expected build or run)", briefType)
	}

	b := &models.Brief{
		Title:               title,
		Description:         briefDescription,
		Type:                bt,
		Status:              models.BriefStatusIntake,
		FastTrack:           briefFastTrack,
		AutoDeploy:          briefAutoDeploy,
		RequirePlanApproval: briefPlanApproval,
	}

	if briefProject != "" {
		p, err := resolveProject(ctx, s, briefProject)
		if err != nil {
			return err
		}
		b.ProjectID = p.ID
	}

	if dryRun {
		ui.DryRunMsg("Would create brief %q", title)
		return nil
	}

	if err := s.CreateBrief(ctx, b); err != nil {
		return fmt.Errorf("create brief: %w", err)
	}

	ui.Success("Brief created: %s", b.ID)
	ui.Info("Run 'forge run %s' to send it for evaluation", b.ID)
	return nil
}

func briefListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.BriefListFilter{Status: models.BriefStatus(briefListStatus)}
	if briefListProject != "" {
		p, err := resolveProject(ctx, s, briefListProject)
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}

	briefs, err := s.ListBriefs(ctx, filter)
	if err != nil {
		return err
	}

	if len(briefs) == 0 {
		ui.Info("No briefs. Use 'forge brief create <title>' to get started.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Type", "Status", "Stage", "Updated"})
	for _, b := range briefs {
		table.Append([]string{
			b.ID,
			b.Title,
			string(b.Type),
			output.StatusColor(string(b.Status)),
			string(b.Stage),
			timeAgo(b.UpdatedAt),
		})
	}
	table.Render()
	return nil
}

func briefShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.GetBrief(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s (%s)\n", output.Cyan(b.Title), b.ID)
	fmt.Fprintf(ui.Out, "  Type:   %s\n", b.Type)
	fmt.Fprintf(ui.Out, "  Status: %s", output.StatusColor(string(b.Status)))
	if b.Stage != models.StageNone {
		fmt.Fprintf(ui.Out, " / %s", b.Stage)
	}
	fmt.Fprintln(ui.Out)
	if b.Description != "" {
		fmt.Fprintf(ui.Out, "  %s\n", b.Description)
	}
	if b.OutcomeTier > 0 {
		fmt.Fprintf(ui.Out, "  Tier:   %d (impact %d)\n", b.OutcomeTier, b.ImpactScore)
	}
	if b.PRURL != "" {
		fmt.Fprintf(ui.Out, "  PR:     %s\n", b.PRURL)
	}
	if b.OutputPath != "" {
		fmt.Fprintf(ui.Out, "  Output: %s\n", strings.ReplaceAll(b.OutputPath, "\n", ", "))
	}
	if b.RejectionReason != "" {
		fmt.Fprintf(ui.Out, "  Reason: %s\n", output.Red(b.RejectionReason))
	}

	if report, err := s.GetLatestDecisionReport(ctx, b.ID); err == nil && report != nil {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "Decision: %s (score %s)\n",
			output.VerdictColor(string(report.Decision)), output.ScoreColor(report.WeightedScore))
		fmt.Fprintf(ui.Out, "  %s\n", report.Summary)
		if report.DissentingViews != "" {
			fmt.Fprintf(ui.Out, "  Dissent: %s\n", report.DissentingViews)
		}
	}

	if evals, err := s.ListEvaluations(ctx, b.ID); err == nil && len(evals) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Agent", "Type", "Verdict", "Confidence"})
		for _, e := range evals {
			table.Append([]string{
				e.AgentSlug,
				e.EvaluationType,
				output.VerdictColor(string(e.Verdict)),
				fmt.Sprintf("%d", e.Confidence),
			})
		}
		table.Render()
	}

	if b.Plan != "" {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, output.Cyan("Plan:"))
		fmt.Fprintln(ui.Out, b.Plan)
	}
	return nil
}

func briefLogsRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	logs, err := s.ListBuildLogs(context.Background(), id, briefLogsLimit)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		ui.Info("No log entries for brief %s", id)
		return nil
	}

	for _, entry := range logs {
		prefix := entry.CreatedAt.Format("15:04:05")
		agent := output.Cyan(entry.Agent)
		switch entry.Level {
		case models.LogLevelError:
			agent = output.Red(entry.Agent)
		case models.LogLevelWarn:
			agent = output.Yellow(entry.Agent)
		}
		fmt.Fprintf(ui.Out, "%s  %-14s %s\n", prefix, agent, entry.Action)
	}
	return nil
}

// timeAgo renders a short relative timestamp.
func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
