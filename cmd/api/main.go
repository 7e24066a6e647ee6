/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var flags rootFlags
	rootCmd := &cobra.Command{
		Use:           "sprint-pulse",
		Short:         "Mirror project boards, analyse sprints and post reports",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.store, "store", "", "storage backend: postgres or memory (default from STORE)")
	rootCmd.PersistentFlags().StringVar(&flags.projects, "projects", "", "projects file (default from PROJECTS_FILE)")

	rootCmd.AddCommand(serveCmd(&flags))
	rootCmd.AddCommand(migrateCmd(&flags))
	for _, c := range []struct{ use, short, job string }{
		{"reconcile", "Mirror every active project's boards", "reconcile"},
		{"analyze", "Compute and post the daily sprint analysis", "analyze"},
		{"qa", "Post the QA review and rejection report", "qa"},
		{"leaderboard", "Post the weekly leaderboards", "leaderboard"},
		{"finance", "Post the financial hours report", "finance"},
		{"refresh-descriptions", "Refresh stale task descriptions", "descriptions"},
		{"prd", "Mirror every project's PRD board", "prd"},
	} {
		rootCmd.AddCommand(jobCmd(&flags, c.use, c.short, c.job))
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
