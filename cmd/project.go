package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adaptiveedge/forge/internal/git"
	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/output"
	"github.com/adaptiveedge/forge/internal/store"
)

var (
	projectRepoURL         string
	projectDefaultBranch   string
	projectLocalPath       string
	projectDeploymentNotes string
	projectContextNotes    string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects briefs are built against",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a project",
	Args:  cobra.ExactArgs(1),
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

func init() {
	projectAddCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return projectAddRun(args[0])
	}

	for _, c := range []*cobra.Command{projectAddCmd} {
		c.Flags().StringVar(&projectRepoURL, "repo", "", "Repository URL")
		c.Flags().StringVar(&projectDefaultBranch, "branch", "main", "Default branch")
		c.Flags().StringVar(&projectLocalPath, "path", "", "Local checkout path")
		c.Flags().StringVar(&projectDeploymentNotes, "deployment-notes", "", "How to deploy this project")
		c.Flags().StringVar(&projectContextNotes, "context-notes", "", "Context given to agents working on this project")
	}

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projectBranchSet := projectAddCmd.Flags().Changed("branch")

	if existing, err := s.GetProjectByName(ctx, name); err == nil && existing != nil {
		return fmt.Errorf("project %q already exists", name)
	}

	p := &models.Project{
		Name:            name,
		RepoURL:         projectRepoURL,
		DefaultBranch:   projectDefaultBranch,
		LocalPath:       projectLocalPath,
		DeploymentNotes: projectDeploymentNotes,
		ContextNotes:    projectContextNotes,
	}

	// Fill in repo metadata from the local checkout when not given.
	if p.LocalPath != "" {
		gc := git.NewClient()
		if p.RepoURL == "" {
			if url, err := gc.RemoteURL(p.LocalPath); err == nil && url != "" {
				p.RepoURL = url
			}
		}
		if !projectBranchSet {
			if branch, err := gc.CurrentBranch(p.LocalPath); err == nil && branch != "" {
				p.DefaultBranch = branch
			}
		}
	}

	if dryRun {
		ui.DryRunMsg("Would add project %s", name)
		return nil
	}

	if err := s.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	ui.Success("Project %s added (%s)", output.Cyan(name), p.ID)
	return nil
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects registered. Use 'forge project add <name>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Name", "Repo", "Branch", "Path"})
	for _, p := range projects {
		table.Append([]string{
			output.Cyan(p.Name),
			p.RepoURL,
			p.DefaultBranch,
			p.LocalPath,
		})
	}
	table.Render()
	return nil
}

func projectShowRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s (%s)\n", output.Cyan(p.Name), p.ID)
	if p.RepoURL != "" {
		fmt.Fprintf(ui.Out, "  Repo:    %s (%s)\n", p.RepoURL, p.DefaultBranch)
	}
	if p.LocalPath != "" {
		fmt.Fprintf(ui.Out, "  Path:    %s\n", p.LocalPath)
	}
	if p.DeploymentNotes != "" {
		fmt.Fprintf(ui.Out, "  Deploy:  %s\n", p.DeploymentNotes)
	}
	if p.ContextNotes != "" {
		fmt.Fprintf(ui.Out, "  Context: %s\n", p.ContextNotes)
	}

	briefs, err := s.ListBriefs(ctx, store.BriefListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	if len(briefs) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Brief", "Type", "Status", "Stage"})
		for _, b := range briefs {
			table.Append([]string{
				b.Title,
				string(b.Type),
				output.StatusColor(string(b.Status)),
				string(b.Stage),
			})
		}
		table.Render()
	}
	return nil
}

func projectRemoveRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, name)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove project %s", p.Name)
		return nil
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	ui.Success("Project %s removed", p.Name)
	return nil
}

// resolveProject finds a project by name, falling back to id lookup.
func resolveProject(ctx context.Context, s store.Store, name string) (*models.Project, error) {
	if p, err := s.GetProjectByName(ctx, name); err == nil {
		return p, nil
	}
	p, err := s.GetProject(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("project not found: %s", name)
	}
	return p, nil
}
