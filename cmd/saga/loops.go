package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

func newLoopsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loops",
		Short: "Manage plot loops",
	}

	cmd.AddCommand(
		newLoopsListCmd(),
		newLoopsCreateCmd(),
		newLoopsResolveCmd(),
		newLoopsAbandonCmd(),
		newLoopsReopenCmd(),
		newLoopsEscalateCmd(),
		newLoopsDeleteCmd(),
	)

	return cmd
}

func newLoopsListCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plot loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Loops.HandleList(cmd.Context(), projectID(), filter)
				if err != nil {
					return err
				}

				if result.Total == 0 {
					fmt.Println("No plot loops found.")
					return nil
				}

				fmt.Printf("%-38s %-10s %-8s %s\n", "ID", "STATUS", "INTRO", "TITLE")
				for _, loop := range result.Loops {
					fmt.Printf("%-38s %-10s %-8d %s\n", loop.ID, loopStatusLabel(loop.Status), loop.IntroChapterOrder, loop.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "status", "s", "", "Filter: open, urgent, closed, abandoned, or active (open+urgent)")

	return cmd
}

func newLoopsCreateCmd() *cobra.Command {
	var (
		description string
		chapterID   string
		order       int
	)

	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Open a new plot loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				loop, err := d.Loops.HandleCreate(cmd.Context(), projectID(), args[0], description, chapterID, order)
				if err != nil {
					return err
				}
				fmt.Printf("Opened plot loop %s: %s\n", loop.ID, loop.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "What the loop sets up")
	cmd.Flags().StringVarP(&chapterID, "chapter", "c", "", "Chapter id that introduces the loop")
	cmd.Flags().IntVarP(&order, "order", "o", 0, "Chapter order of the introduction")

	return cmd
}

func newLoopsResolveCmd() *cobra.Command {
	var (
		chapterID string
		order     int
	)

	cmd := &cobra.Command{
		Use:   "resolve LOOP_ID",
		Short: "Close a plot loop against a resolution chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				loop, err := d.Loops.HandleResolve(cmd.Context(), args[0], chapterID, order)
				if err != nil {
					return err
				}
				fmt.Printf("Resolved %q in chapter %s\n", loop.Title, loop.ResolutionChapterID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&chapterID, "chapter", "c", "", "Chapter id that pays the loop off (required)")
	cmd.Flags().IntVarP(&order, "order", "o", 0, "Chapter order of the resolution")
	_ = cmd.MarkFlagRequired("chapter")

	return cmd
}

func newLoopsAbandonCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "abandon LOOP_ID",
		Short: "Mark a plot loop deliberately unresolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				loop, err := d.Loops.HandleAbandon(cmd.Context(), args[0], reason)
				if err != nil {
					return err
				}
				fmt.Printf("Abandoned %q: %s\n", loop.Title, loop.AbandonReason)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the loop is being abandoned (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newLoopsReopenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reopen LOOP_ID",
		Short: "Return a plot loop to the open state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				loop, err := d.Loops.HandleReopen(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Reopened %q\n", loop.Title)
				return nil
			})
		},
	}
}

func newLoopsEscalateCmd() *cobra.Command {
	var currentOrder int

	cmd := &cobra.Command{
		Use:   "escalate",
		Short: "Mark long-open loops urgent",
		Long:  "Sweeps the project's open loops and marks the ones introduced too many chapters ago as urgent. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Loops.HandleEscalate(cmd.Context(), projectID(), currentOrder)
				if err != nil {
					return err
				}

				if result.Count == 0 {
					fmt.Println("No loops needed escalation.")
					return nil
				}

				fmt.Printf("Escalated %d loops:\n", result.Count)
				for _, loop := range result.Escalated {
					fmt.Printf("  %s (introduced at order %d): %s\n", loop.ID, loop.IntroChapterOrder, loop.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&currentOrder, "order", "o", 0, "Current chapter order of the work (required)")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func newLoopsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete LOOP_ID",
		Short: "Delete a plot loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				if err := d.Loops.HandleDelete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Println("Deleted plot loop.")
				return nil
			})
		},
	}
}

// loopStatusLabel renders a status with urgency made visible in listings.
func loopStatusLabel(status entities.LoopStatus) string {
	if status == entities.LoopUrgent {
		return "URGENT"
	}
	return string(status)
}
