package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUESTION",
		Short: "Search tracked entities and plot loops",
		Long:  "Performs semantic search over the derived index of entity states and plot loops.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				if d.Search == nil {
					return errors.New("search requires embedder credentials (set OPENAI_API_KEY)")
				}

				result, err := d.Search.Handle(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}

				if len(result.Hits) == 0 {
					fmt.Println("No matches found.")
					return nil
				}

				fmt.Printf("Found %d matches:\n\n", len(result.Hits))
				for i, hit := range result.Hits {
					fmt.Printf("%d. %s (score %.2f)\n", i+1, hit.SourceID, hit.Score)
					fmt.Printf("   %s\n", hit.Content)
					if chapterID, ok := hit.Metadata["chapter_id"]; ok {
						fmt.Printf("   chapter: %s\n", chapterID)
					}
					fmt.Println()
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of results")

	return cmd
}
