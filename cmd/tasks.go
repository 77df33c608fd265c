/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

var (
	taskPriorityFlag   string
	taskImportanceFlag string
	taskDifficultyFlag string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show the active project's task board",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		project, err := activeProject(ctx, st)
		if err != nil {
			return err
		}
		tasks, err := st.ListTasks(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		cmd.Print(renderTaskBoard(project.Name, tasks))
		return nil
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		project, err := activeProject(ctx, st)
		if err != nil {
			return err
		}
		task, err := st.CreateTask(ctx, models.Task{
			ProjectID:  project.ID,
			Title:      args[0],
			Priority:   models.TaskPriority(taskPriorityFlag),
			Importance: models.TaskImportance(taskImportanceFlag),
			Difficulty: models.TaskDifficulty(taskDifficultyFlag),
		})
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		cmd.Printf("Added %q to %s.\n", task.Title, quadrantLabel(task.Quadrant))
		return nil
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		done := models.StatusDone
		task, err := st.UpdateTask(cmd.Context(), args[0], store.TaskUpdate{Status: &done})
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		cmd.Printf("Done: %s\n", task.Title)
		return nil
	},
}

func quadrantLabel(q models.Quadrant) string {
	switch q {
	case models.QuadrantOne:
		return "Do First (urgent + important)"
	case models.QuadrantTwo:
		return "Schedule (important)"
	case models.QuadrantThree:
		return "Delegate (urgent)"
	default:
		return "Later"
	}
}

var (
	boardTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	boardQuadrantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	boardFaintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderTaskBoard groups tasks into their priority matrix quadrants.
func renderTaskBoard(projectName string, tasks []models.Task) string {
	var sb strings.Builder
	sb.WriteString(boardTitleStyle.Render(projectName+" task board") + "\n")

	if len(tasks) == 0 {
		sb.WriteString("No tasks yet. Add one with: forge tasks add \"Your task\"\n")
		return sb.String()
	}

	byQuadrant := map[models.Quadrant][]models.Task{}
	for _, t := range tasks {
		byQuadrant[t.Quadrant] = append(byQuadrant[t.Quadrant], t)
	}

	for _, q := range []models.Quadrant{models.QuadrantOne, models.QuadrantTwo, models.QuadrantThree, models.QuadrantFour} {
		group := byQuadrant[q]
		if len(group) == 0 {
			continue
		}
		sb.WriteString("\n" + boardQuadrantStyle.Render(quadrantLabel(q)) + "\n")
		for _, t := range group {
			check := " "
			if t.Status == models.StatusDone {
				check = "x"
			}
			line := fmt.Sprintf("  [%s] %s", check, t.Title)
			if t.Difficulty != "" {
				line += " " + boardFaintStyle.Render("("+string(t.Difficulty)+")")
			}
			if t.DueDate != nil {
				line += " " + boardFaintStyle.Render("due "+t.DueDate.Format("2006-01-02"))
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksAddCmd)
	tasksCmd.AddCommand(tasksDoneCmd)

	tasksAddCmd.Flags().StringVar(&taskPriorityFlag, "priority", "low", "urgency axis: low or high")
	tasksAddCmd.Flags().StringVar(&taskImportanceFlag, "importance", "low", "importance axis: low or high")
	tasksAddCmd.Flags().StringVar(&taskDifficultyFlag, "difficulty", "", "display hint: easy, medium, hard")
}
