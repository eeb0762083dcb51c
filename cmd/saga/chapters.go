package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newChaptersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters",
		Short: "Manage the chapter registry",
	}

	cmd.AddCommand(
		newChaptersAddCmd(),
		newChaptersListCmd(),
	)

	return cmd
}

func newChaptersAddCmd() *cobra.Command {
	var (
		order int
		title string
	)

	cmd := &cobra.Command{
		Use:   "add CHAPTER_ID",
		Short: "Register a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				chapter, err := d.Chapters.HandleRegister(cmd.Context(), projectID(), args[0], order, title)
				if err != nil {
					return err
				}
				fmt.Printf("Registered chapter %s at position %d\n", chapter.ID, chapter.ChapterOrder)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&order, "order", "o", 0, "Position of the chapter in the work (required)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Chapter title")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func newChaptersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered chapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Chapters.HandleList(cmd.Context(), projectID())
				if err != nil {
					return err
				}

				if result.Total == 0 {
					fmt.Println("No chapters registered.")
					return nil
				}

				fmt.Printf("%-8s %-25s %s\n", "ORDER", "ID", "TITLE")
				for _, chapter := range result.Chapters {
					fmt.Printf("%-8d %-25s %s\n", chapter.ChapterOrder, chapter.ID, chapter.Title)
				}
				return nil
			})
		},
	}
}
