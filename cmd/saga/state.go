package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	var (
		entityType string
		atOrder    int
	)

	cmd := &cobra.Command{
		Use:   "state ENTITY_ID",
		Short: "Show an entity's state",
		Long:  "Reconstructs an entity's complete state, either at a specific chapter order or as of its latest snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Timelines.HandleState(cmd.Context(), projectID(), entityType, args[0], atOrder)
				if err != nil {
					return err
				}

				out, err := json.MarshalIndent(result.State, "", "  ")
				if err != nil {
					return fmt.Errorf("rendering state: %w", err)
				}

				if atOrder > 0 {
					fmt.Printf("%s at chapter order %d:\n", args[0], atOrder)
				} else {
					fmt.Printf("%s (latest):\n", args[0])
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "character", "Entity type (character, wiki_entry, relationship)")
	cmd.Flags().IntVarP(&atOrder, "at", "a", 0, "Chapter order to reconstruct at (default: latest)")

	return cmd
}
