/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Browse project documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active project's documents",
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
		docs, err := st.ListArtifacts(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		// Highest priority first, then name.
		sort.SliceStable(docs, func(i, j int) bool {
			if docs[i].Priority != docs[j].Priority {
				return docs[i].Priority > docs[j].Priority
			}
			return docs[i].Name < docs[j].Name
		})

		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
		faint := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		cmd.Println(header.Render(project.Name + " documents"))
		for _, d := range docs {
			meta := string(d.Type)
			if d.Category != "" {
				meta += ", " + d.Category
			}
			cmd.Printf("  %s  %s\n", d.Name, faint.Render("("+meta+")"))
		}
		return nil
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a document's content",
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
		doc, err := st.GetArtifactByName(ctx, project.ID, args[0])
		if err != nil {
			return fmt.Errorf("document %q: %w", args[0], err)
		}
		cmd.Println(doc.Content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
}
