package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
	"github.com/catfall/litterlog/internal/model"
	"github.com/catfall/litterlog/internal/service"
)

func visitsCmd() *cobra.Command {
	var (
		catArg        string
		outcomeArg    string
		fromArg       string
		toArg         string
		limit         int
		includeHidden bool
	)

	cmd := &cobra.Command{
		Use:   "visits",
		Short: "List visit history",
		Long:  `List recorded visits, newest first, with optional filters.`,
		Example: `  # Last 20 visits
  litterlog visits --limit 20

  # Mochi's visits in March
  litterlog visits --cat Mochi --from 2026-03-01 --to 2026-03-31

  # Everything still unclassified
  litterlog visits --outcome unknown`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.VisitFilter{
				Limit:         limit,
				IncludeHidden: includeHidden,
			}

			if catArg != "" {
				cat, err := resolveCat(ctx, store, catArg)
				if err != nil {
					return err
				}
				filter.CatID = &cat.ID
			}
			if outcomeArg != "" {
				if !model.ValidOutcome(outcomeArg) {
					return fmt.Errorf("invalid outcome %q (want assigned, unknown, error, or system)", outcomeArg)
				}
				outcome := model.Outcome(outcomeArg)
				filter.Outcome = &outcome
			}
			if fromArg != "" {
				from, err := parseDate(fromArg)
				if err != nil {
					return err
				}
				filter.Start = &from
			}
			if toArg != "" {
				to, err := parseDate(toArg)
				if err != nil {
					return err
				}
				filter.End = &to
			}

			visits, err := store.GetVisits(ctx, filter)
			if err != nil {
				return err
			}

			return printVisits(cmd, store, visits)
		},
	}

	cmd.Flags().StringVar(&catArg, "cat", "", "Filter by cat name or ID")
	cmd.Flags().StringVar(&outcomeArg, "outcome", "", "Filter by outcome (assigned, unknown, error, system)")
	cmd.Flags().StringVar(&fromArg, "from", "", "Start of date range (2006-01-02)")
	cmd.Flags().StringVar(&toArg, "to", "", "End of date range (2006-01-02)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max rows to show (0 = all)")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden (blacklisted) visits")

	return cmd
}

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "List visits needing attention",
		Long: `List visits that could not be classified, failed the sanity checks,
or were flagged during import. Fix them with reassign or blacklist.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			visits, err := store.GetVisitsForReview(ctx)
			if err != nil {
				return err
			}
			if len(visits) == 0 {
				fmt.Println(cli.FormatSuccess("Nothing needs review."))
				return nil
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%d visit(s) need review", len(visits))))
			return printVisits(cmd, store, visits)
		},
	}
}

func printVisits(cmd *cobra.Command, store service.Storage, visits []model.Visit) error {
	if len(visits) == 0 {
		fmt.Println(cli.FormatWarning("No visits match."))
		return nil
	}

	names, err := catNames(cmd.Context(), store)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tWEIGHT\tCAT\tOUTCOME\tNOTE")
	for i := range visits {
		v := &visits[i]
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%s\t%s\t%s\n",
			v.ID,
			v.RecordedAt.Format("2006-01-02 15:04"),
			v.Weight,
			formatCat(v, names),
			v.Outcome,
			truncate(v.Note, 48),
		)
	}
	return w.Flush()
}
