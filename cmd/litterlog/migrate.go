package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catfall/litterlog/internal/cli"
	"github.com/catfall/litterlog/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		Long: `Bring the database schema up to the current version.

Every command runs migrations automatically on startup; this exists to
run them explicitly, e.g. after restoring a snapshot.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Database schema is at version %d.", storage.ExpectedSchemaVersion)))
			return nil
		},
	}
}
