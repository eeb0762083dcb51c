package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var (
		entityType string
		fromOrder  int
		toOrder    int
	)

	cmd := &cobra.Command{
		Use:   "diff ENTITY_ID",
		Short: "Compare an entity's states at two chapter orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Timelines.HandleDiff(cmd.Context(), projectID(), entityType, args[0], fromOrder, toOrder)
				if err != nil {
					return err
				}

				if len(result.Changes) == 0 {
					fmt.Printf("No changes between chapter orders %d and %d.\n", fromOrder, toOrder)
					return nil
				}

				fmt.Printf("Changes for %s between chapter orders %d and %d:\n\n", args[0], fromOrder, toOrder)
				for _, change := range result.Changes {
					switch {
					case change.OldValue == nil:
						fmt.Printf("  + %s = %v\n", change.FieldPath, change.NewValue)
					case change.NewValue == nil:
						fmt.Printf("  - %s (was %v)\n", change.FieldPath, change.OldValue)
					default:
						fmt.Printf("  ~ %s: %v -> %v\n", change.FieldPath, change.OldValue, change.NewValue)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "character", "Entity type (character, wiki_entry, relationship)")
	cmd.Flags().IntVar(&fromOrder, "from", 0, "Chapter order to compare from (required)")
	cmd.Flags().IntVar(&toOrder, "to", 0, "Chapter order to compare to (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
