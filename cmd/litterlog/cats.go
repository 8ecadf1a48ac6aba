package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
)

func catsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cats",
		Short: "Manage cat profiles",
		Long: `Add, list, and remove cat profiles.

Profiles drive classification: each visit is assigned to the cat whose
target weight is nearest the recorded weight. Removing a profile keeps
its visit history.`,
		Example: `  # Add a cat with a target weight
  litterlog cats add Biscuit --weight 8.0 --birthdate 2020-05-01

  # List all cats
  litterlog cats list

  # Remove a cat (history is kept)
  litterlog cats remove Biscuit`,
	}

	cmd.AddCommand(catsAddCmd())
	cmd.AddCommand(catsListCmd())
	cmd.AddCommand(catsRemoveCmd())

	return cmd
}

func catsAddCmd() *cobra.Command {
	var weight float64
	var birthdate string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a cat profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var bd *time.Time
			if birthdate != "" {
				parsed, err := parseDate(birthdate)
				if err != nil {
					return err
				}
				bd = &parsed
			}

			cat, err := store.CreateCat(ctx, args[0], weight, bd)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added %s %s (id %d, target %.1f lbs)",
				cli.CatIcon, cat.Name, cat.ID, cat.TargetWeight)))
			return nil
		},
	}

	cmd.Flags().Float64VarP(&weight, "weight", "w", 0, "Target weight in lbs (required)")
	cmd.Flags().StringVarP(&birthdate, "birthdate", "b", "", "Birthdate (2006-01-02)")
	_ = cmd.MarkFlagRequired("weight")

	return cmd
}

func catsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cat profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cats, err := store.GetCats(ctx)
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				fmt.Println(cli.FormatWarning("No cats yet. Add one with: litterlog cats add <name> --weight <lbs>"))
				return nil
			}

			fmt.Println(cli.FormatTitle("Cats"))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTARGET\tAGE")
			now := time.Now().UTC()
			for _, cat := range cats {
				fmt.Fprintf(w, "%d\t%s\t%.1f lbs\t%s\n", cat.ID, cat.Name, cat.TargetWeight, cat.Age(now))
			}
			return w.Flush()
		},
	}
}

func catsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name|id>",
		Short: "Remove a cat profile, keeping its visit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cat, err := resolveCat(ctx, store, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteCat(ctx, cat.ID); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Removed %s. Visit history is retained.", cat.Name)))
			return nil
		},
	}
}
