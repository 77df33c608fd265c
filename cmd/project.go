/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

// ErrNoProjects is returned when a command needs a project but none exist.
var ErrNoProjects = errors.New("no projects found; create one with 'forge project create <name>'")

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage workspace projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		projects, err := st.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		if len(projects) == 0 {
			cmd.Println("No projects found.")
			cmd.Println("Create one with: forge project create \"My Project\"")
			return nil
		}

		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
		faint := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		cmd.Println(header.Render("Projects"))
		for _, p := range projects {
			marker := " "
			if p.ID == GetConfig().Project.ID {
				marker = "*"
			}
			cmd.Printf("%s %s  %s\n", marker, p.Name,
				faint.Render(fmt.Sprintf("[%s] edited %s", p.Status, p.LastEdited.Format("2006-01-02 15:04"))))
		}
		return nil
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project with its default planning documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		project, err := st.CreateProject(ctx, models.Project{Name: args[0]})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		docs, err := st.ListArtifacts(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("list seeded documents: %w", err)
		}

		cmd.Printf("Created project %q (ID: %s) with %d starter documents.\n", project.Name, project.ID, len(docs))
		if err := SetActiveProject(project.ID, project.Name); err != nil {
			cmd.PrintErrf("Warning: could not persist active project: %v\n", err)
		}
		return nil
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use",
	Short: "Select the active project",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		project, err := selectProjectInteractive(cmd.Context(), st, "Select a project")
		if err != nil {
			return err
		}
		if err := SetActiveProject(project.ID, project.Name); err != nil {
			return fmt.Errorf("persist active project: %w", err)
		}
		cmd.Printf("Active project is now %q.\n", project.Name)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a project and everything in it",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		project, err := selectProjectInteractive(ctx, st, "Select a project to delete")
		if err != nil {
			return err
		}

		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Delete %q and all its documents, tasks, and chats", project.Name),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			cmd.Println("Aborted.")
			return nil
		}

		if err := st.DeleteProject(ctx, project.ID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		if GetConfig().Project.ID == project.ID {
			_ = SetActiveProject("", "")
		}
		cmd.Printf("Deleted project %q.\n", project.Name)
		return nil
	},
}

// selectProjectInteractive prompts the user to pick a project.
func selectProjectInteractive(ctx context.Context, st store.ProjectStore, label string) (models.Project, error) {
	projects, err := st.ListProjects(ctx)
	if err != nil {
		return models.Project{}, fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		return models.Project{}, ErrNoProjects
	}
	if len(projects) == 1 {
		return projects[0], nil
	}

	prompt := promptui.Select{
		Label: label,
		Items: projects,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}?",
			Active:   `> {{ .Name | cyan }} ({{ .Status }})`,
			Inactive: `  {{ .Name | faint }} ({{ .Status }})`,
			Selected: `{{ "✔" | green }} {{ .Name | faint }}`,
		},
	}
	i, _, err := prompt.Run()
	if err != nil {
		return models.Project{}, fmt.Errorf("project selection cancelled: %w", err)
	}
	return projects[i], nil
}

// activeProject resolves the project commands operate on: the configured
// active project if set, otherwise an interactive pick.
func activeProject(ctx context.Context, st store.ProjectStore) (models.Project, error) {
	if id := GetConfig().Project.ID; id != "" {
		project, err := st.GetProject(ctx, id)
		if err == nil {
			return project, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.Project{}, err
		}
		// Configured project no longer exists; fall through to selection.
	}
	return selectProjectInteractive(ctx, st, "Select a project")
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectUseCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}
