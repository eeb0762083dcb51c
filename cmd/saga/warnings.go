package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

func newWarningsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warnings",
		Short: "Manage consistency warnings",
	}

	cmd.AddCommand(
		newWarningsListCmd(),
		newWarningsResolveCmd(),
		newWarningsDismissCmd(),
	)

	return cmd
}

func newWarningsListCmd() *cobra.Command {
	var (
		severity    string
		warningType string
		entityID    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				var warnings []entities.ConsistencyWarning
				if entityID != "" {
					listed, err := d.Warnings.HandleListForEntity(cmd.Context(), entityID)
					if err != nil {
						return err
					}
					warnings = listed.Warnings
				} else {
					listed, err := d.Warnings.HandleList(cmd.Context(), projectID(), severity, warningType)
					if err != nil {
						return err
					}
					warnings = listed.Warnings
				}

				if len(warnings) == 0 {
					fmt.Println("No warnings found.")
					return nil
				}

				fmt.Printf("Found %d warnings:\n\n", len(warnings))
				for _, warning := range warnings {
					printWarning(&warning)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&severity, "severity", "s", "", "Filter by severity (info, warning, error)")
	cmd.Flags().StringVarP(&warningType, "type", "t", "", "Filter by warning type")
	cmd.Flags().StringVarP(&entityID, "entity", "e", "", "List every warning for one entity, resolved included")

	return cmd
}

func printWarning(warning *entities.ConsistencyWarning) {
	state := "open"
	switch {
	case warning.Resolved:
		state = "resolved"
	case warning.Dismissed:
		state = "dismissed"
	}

	fmt.Printf("[%s/%s] %s (%s)\n", warning.Severity, state, warning.ID, warning.WarningType)
	fmt.Printf("  %s\n", warning.Description)
	if warning.Suggestion != "" {
		fmt.Printf("  suggestion: %s\n", warning.Suggestion)
	}
	if warning.FieldPath != "" {
		fmt.Printf("  field: %s (expected %q, actual %q)\n", warning.FieldPath, warning.ExpectedValue, warning.ActualValue)
	}
	fmt.Println()
}

func newWarningsResolveCmd() *cobra.Command {
	var (
		method   string
		entityID string
	)

	cmd := &cobra.Command{
		Use:   "resolve [WARNING_ID...]",
		Short: "Resolve warnings",
		Long:  "Resolves one or more warnings by id, or every open warning of an entity with --entity. Already-resolved warnings are skipped, not errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if entityID == "" && len(args) == 0 {
				return fmt.Errorf("provide warning ids or --entity")
			}

			return withDeps(func(d *Deps) error {
				if entityID != "" {
					count, err := d.Warnings.HandleResolveForEntity(cmd.Context(), entityID, method)
					if err != nil {
						return err
					}
					fmt.Printf("Resolved %d warnings for %s\n", count, entityID)
					return nil
				}

				if len(args) == 1 {
					changed, err := d.Warnings.HandleResolve(cmd.Context(), args[0], method)
					if err != nil {
						return err
					}
					if !changed {
						fmt.Println("Warning was already resolved.")
						return nil
					}
					fmt.Println("Resolved warning.")
					return nil
				}

				result, err := d.Warnings.HandleBulkResolve(cmd.Context(), args, method)
				if err != nil {
					return err
				}
				fmt.Printf("Resolved %d of %d warnings\n", result.Changed, result.Requested)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "manual", "How the inconsistency was addressed")
	cmd.Flags().StringVarP(&entityID, "entity", "e", "", "Resolve every open warning of an entity")

	return cmd
}

func newWarningsDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss WARNING_ID...",
		Short: "Dismiss warnings as not actual problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				if len(args) == 1 {
					changed, err := d.Warnings.HandleDismiss(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if !changed {
						fmt.Println("Warning was already dismissed.")
						return nil
					}
					fmt.Println("Dismissed warning.")
					return nil
				}

				result, err := d.Warnings.HandleBulkDismiss(cmd.Context(), args)
				if err != nil {
					return err
				}
				fmt.Printf("Dismissed %d of %d warnings\n", result.Changed, result.Requested)
				return nil
			})
		},
	}
}
