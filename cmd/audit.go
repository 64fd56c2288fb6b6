package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Softorize/mikiclaw/internal/audit"
)

func newAuditCmd() *cobra.Command {
	var (
		limit   int
		denials bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent permission decisions",
		Long: "Reads the SQLite decision log and prints recent entries: which tool\n" +
			"calls ran, which were blocked, and why.",
		Example: `  mikiclaw audit
  mikiclaw audit --denials --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := audit.DefaultDBPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(dbPath); err != nil {
				fmt.Println("No audit log found. It is written once a session runs with audit_log enabled.")
				return nil
			}
			rec, err := audit.NewSQLiteRecorder(dbPath, nil)
			if err != nil {
				return fmt.Errorf("open audit log: %w", err)
			}
			defer rec.Close()

			var entries []audit.Entry
			if denials {
				entries, err = rec.Denials(limit)
			} else {
				entries, err = rec.Recent(limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No entries.")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-8s %s", e.Time.Format("2006-01-02 15:04:05"), e.Decision, e.Tool)
				if e.Command != "" {
					line += ": " + e.Command
				}
				if e.Reason != "" {
					line += "  (" + e.Reason + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")
	cmd.Flags().BoolVar(&denials, "denials", false, "show only denied calls")
	return cmd
}
