package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

func newAuditCmd() *cobra.Command {
	var (
		action   string
		entityID string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
		Long:  "Lists audit log entries, most useful for reviewing failed fabric dispatches (action: dispatch_failed) before replaying them by hand.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				var entries []entities.AuditEntry
				var err error

				if entityID != "" {
					entries, err = d.Audit.HandleForEntity(cmd.Context(), entityID)
				} else {
					entries, err = d.Audit.HandleByAction(cmd.Context(), action, limit)
				}
				if err != nil {
					return err
				}

				if len(entries) == 0 {
					fmt.Println("No audit entries found.")
					return nil
				}

				for _, entry := range entries {
					fmt.Printf("%s  %-18s %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Action, entry.EntityID)
					if len(entry.Details) > 0 {
						details, err := json.Marshal(entry.Details)
						if err == nil {
							fmt.Printf("  %s\n", string(details))
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "dispatch_failed", "Action type to list")
	cmd.Flags().StringVarP(&entityID, "entity", "e", "", "List the audit trail of one entity instead")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of entries")

	return cmd
}
