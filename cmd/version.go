/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Forge version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("forge %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
