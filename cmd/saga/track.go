package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/saga-core/internal/application/handlers"
	"github.com/ersonp/saga-core/internal/domain/entities"
)

func newTrackCmd() *cobra.Command {
	var (
		entityType string
		entityName string
		chapterID  string
		order      int
		stateJSON  string
		summary    string
		reason     string
		sourceText string
	)

	cmd := &cobra.Command{
		Use:   "track ENTITY_ID",
		Short: "Track an entity state change",
		Long:  "Records an observed entity change. The snapshot, consistency check and index update run asynchronously before the command exits.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var state entities.StateMap
			if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
				return fmt.Errorf("parsing state JSON: %w", err)
			}

			return withDeps(func(d *Deps) error {
				result, err := d.Timelines.HandleTrack(cmd.Context(), projectID(), handlers.TrackRequest{
					EntityType:   entityType,
					EntityID:     args[0],
					EntityName:   entityName,
					ChapterID:    chapterID,
					ChapterOrder: order,
					State:        state,
					Summary:      summary,
					Reason:       reason,
					SourceText:   sourceText,
				})
				if err != nil {
					return err
				}

				fmt.Printf("Tracked %s of %s in chapter %s\n", result.Operation, result.SourceID, chapterID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "character", "Entity type (character, wiki_entry, relationship)")
	cmd.Flags().StringVarP(&entityName, "name", "n", "", "Entity display name")
	cmd.Flags().StringVarP(&chapterID, "chapter", "c", "", "Chapter id the change occurs in (required)")
	cmd.Flags().IntVarP(&order, "order", "o", 0, "Chapter order of the change (required)")
	cmd.Flags().StringVarP(&stateJSON, "state", "s", "", "Full or partial state as JSON; null values delete fields (required)")
	cmd.Flags().StringVarP(&summary, "summary", "m", "", "Human-readable change summary")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the change happened, kept on each change record")
	cmd.Flags().StringVar(&sourceText, "source", "", "Prose excerpt the change was observed in")
	_ = cmd.MarkFlagRequired("chapter")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("state")

	return cmd
}
