package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
)

func importsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Show import history",
		Long:  `List past imports with their per-file counts, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			batches, err := store.GetImportBatches(ctx, limit)
			if err != nil {
				return err
			}
			if len(batches) == 0 {
				fmt.Println(cli.FormatInfo("No imports yet."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Imports"))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tFILE\tACCEPTED\tDUPES\tBANNED\tUNKNOWN\tERRORS\tSYSTEM\tMALFORMED")
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
					b.CreatedAt.Format("2006-01-02 15:04"),
					truncate(b.Filename, 32),
					b.Accepted,
					b.Duplicates,
					b.Blacklisted,
					b.Unknown,
					b.Errors,
					b.System,
					b.Malformed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Max imports to show (0 = all)")

	return cmd
}
