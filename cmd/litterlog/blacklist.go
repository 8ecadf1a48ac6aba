package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
)

func blacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the record blacklist",
		Long: `Blacklist records so they are dropped from every future import.

Blacklisting hides the stored visit rather than deleting it; restore
brings both the record and its visit back.`,
		Example: `  # Blacklist by visit ID (found via: litterlog visits)
  litterlog blacklist add 42 --reason "neighbor's cat"

  # Show the blacklist
  litterlog blacklist list

  # Undo
  litterlog blacklist restore <fingerprint>`,
	}

	cmd.AddCommand(blacklistAddCmd())
	cmd.AddCommand(blacklistListCmd())
	cmd.AddCommand(blacklistRestoreCmd())

	return cmd
}

func blacklistAddCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "add <visit-id|fingerprint>",
		Short: "Blacklist a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := newEngine(store)
			if err != nil {
				return err
			}

			// Numeric arguments are visit IDs; anything else is taken as a
			// fingerprint.
			if visitID, parseErr := strconv.ParseInt(args[0], 10, 64); parseErr == nil {
				if err := eng.BlacklistVisit(ctx, visitID, reason); err != nil {
					return err
				}
			} else {
				if err := eng.Blacklist(ctx, args[0], reason); err != nil {
					return err
				}
			}

			fmt.Println(cli.FormatSuccess("Blacklisted. The visit is hidden and future imports will skip it."))
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why this record is blacklisted")

	return cmd
}

func blacklistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blacklisted records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.GetBlacklist(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(cli.FormatInfo("The blacklist is empty."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Blacklist"))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FINGERPRINT\tADDED\tREASON")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					e.Fingerprint,
					e.CreatedAt.Format("2006-01-02"),
					truncate(e.Reason, 48))
			}
			return w.Flush()
		},
	}
}

func blacklistRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <fingerprint>",
		Short: "Remove a record from the blacklist and unhide its visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := newEngine(store)
			if err != nil {
				return err
			}
			if err := eng.Restore(ctx, args[0]); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess("Restored. The visit is visible again and future imports will accept it."))
			return nil
		},
	}
}
