package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		entityType string
		snapshotID string
	)

	cmd := &cobra.Command{
		Use:   "history ENTITY_ID",
		Short: "Show an entity's snapshot history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				if snapshotID != "" {
					return printSnapshotDetail(cmd, d, snapshotID)
				}

				result, err := d.Timelines.HandleHistory(cmd.Context(), projectID(), entityType, args[0])
				if err != nil {
					return err
				}

				fmt.Printf("%d snapshots for %s:\n\n", result.Total, args[0])
				for _, snapshot := range result.Snapshots {
					marker := " "
					if snapshot.IsKeyframe {
						marker = "K"
					}
					fmt.Printf("  %s order %-4d [%s] %s  %s\n",
						marker, snapshot.ChapterOrder, snapshot.ChangeType, snapshot.ID, snapshot.ChangeSummary)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "character", "Entity type (character, wiki_entry, relationship)")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "Show one snapshot with its field-level change records")

	return cmd
}

func printSnapshotDetail(cmd *cobra.Command, d *Deps, snapshotID string) error {
	detail, err := d.Timelines.HandleSnapshot(cmd.Context(), snapshotID)
	if err != nil {
		return err
	}

	snapshot := detail.Snapshot
	fmt.Printf("Snapshot %s\n", snapshot.ID)
	fmt.Printf("  chapter:  %s (order %d)\n", snapshot.ChapterID, snapshot.ChapterOrder)
	fmt.Printf("  keyframe: %v\n", snapshot.IsKeyframe)
	fmt.Printf("  type:     %s\n", snapshot.ChangeType)
	if snapshot.ChangeSummary != "" {
		fmt.Printf("  summary:  %s\n", snapshot.ChangeSummary)
	}

	if len(detail.Records) == 0 {
		return nil
	}

	fmt.Println("  changes:")
	for _, record := range detail.Records {
		fmt.Printf("    %s: %v -> %v\n", record.FieldPath, record.OldValue, record.NewValue)
		if record.ChangeReason != "" {
			fmt.Printf("      reason: %s\n", record.ChangeReason)
		}
		if record.SourceText != "" {
			fmt.Printf("      source: %q\n", record.SourceText)
		}
	}
	return nil
}

func newForgetCmd() *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:   "forget ENTITY_ID",
		Short: "Delete an entity's timeline and derived data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				if err := d.Timelines.HandleForget(cmd.Context(), projectID(), entityType, args[0]); err != nil {
					return err
				}
				fmt.Printf("Forgot %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "character", "Entity type (character, wiki_entry, relationship)")

	return cmd
}
