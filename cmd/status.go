package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/output"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pipeline dashboard",
	Long: `Show recent briefs with their pipeline position and latest decision,
newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusOverviewRun()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Maximum briefs to show")
	rootCmd.AddCommand(statusCmd)
}

func statusOverviewRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	history, err := s.ListBriefHistory(ctx, statusLimit)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		ui.Info("No briefs. Use 'forge brief create <title>' to get started.")
		return nil
	}

	projects := make(map[string]string)
	if list, err := s.ListProjects(ctx); err == nil {
		for _, p := range list {
			projects[p.ID] = p.Name
		}
	}

	table := ui.Table([]string{"Brief", "Project", "Status", "Stage", "Decision", "Updated"})
	for _, entry := range history {
		b := entry.Brief

		decision := "-"
		if entry.Decision != nil {
			decision = output.VerdictColor(string(entry.Decision.Decision)) +
				" (" + output.ScoreColor(entry.Decision.WeightedScore) + ")"
		}

		stage := string(b.Stage)
		if b.Stage == models.StageNone {
			stage = "-"
		}

		table.Append([]string{
			b.Title,
			projects[b.ProjectID],
			output.StatusColor(string(b.Status)),
			stage,
			decision,
			timeAgo(b.UpdatedAt),
		})
	}
	table.Render()
	return nil
}
