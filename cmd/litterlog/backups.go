package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
)

func backupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Manage database snapshots",
		Long: `List and prune the database snapshots taken after each import.

Snapshots live next to the database in a backups/ directory and are
plain SQLite files; restoring one is copying it over the database.`,
	}

	cmd.AddCommand(backupsListCmd())
	cmd.AddCommand(backupsPruneCmd())

	return cmd
}

func backupsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := store.NewBackupManager()
			if err != nil {
				return err
			}

			backups, err := manager.List(ctx)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Println(cli.FormatInfo("No snapshots yet. One is created after every import."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Snapshots"))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSIZE\tVISITS\tCATS")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					b.ID,
					b.CreatedAt.Format("2006-01-02 15:04"),
					formatFileSize(b.FileSize),
					b.Visits,
					b.Cats)
			}
			return w.Flush()
		},
	}
}

func backupsPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := store.NewBackupManager()
			if err != nil {
				return err
			}

			removed, err := manager.Prune(ctx, keep)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Removed %d snapshot(s), kept the newest %d.", removed, keep)))
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "How many snapshots to keep")

	return cmd
}
