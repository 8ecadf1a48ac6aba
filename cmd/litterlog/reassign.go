package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
)

func reassignCmd() *cobra.Command {
	var catArg string
	var clear bool

	cmd := &cobra.Command{
		Use:   "reassign <visit-id>",
		Short: "Manually assign a visit to a cat",
		Long: `Override the classification of one visit. Manual assignments stick:
re-importing the same export never undoes them.`,
		Example: `  # Assign visit 42 to Mochi
  litterlog reassign 42 --cat Mochi

  # Clear the assignment back to unknown
  litterlog reassign 42 --clear`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			visitID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid visit ID %q", args[0])
			}
			if catArg == "" && !clear {
				return fmt.Errorf("either --cat or --clear is required")
			}
			if catArg != "" && clear {
				return fmt.Errorf("--cat and --clear are mutually exclusive")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := newEngine(store)
			if err != nil {
				return err
			}

			var catID *int64
			var catName string
			if catArg != "" {
				cat, err := resolveCat(ctx, store, catArg)
				if err != nil {
					return err
				}
				catID = &cat.ID
				catName = cat.Name
			}

			visit, err := eng.Reassign(ctx, visitID, catID)
			if err != nil {
				return err
			}

			if catID != nil {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Visit %d (%s, %.1f lbs) assigned to %s",
					visit.ID, visit.RecordedAt.Format("2006-01-02 15:04"), visit.Weight, catName)))
			} else {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Visit %d assignment cleared", visit.ID)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catArg, "cat", "", "Cat name or ID to assign")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the assignment back to unknown")

	return cmd
}
