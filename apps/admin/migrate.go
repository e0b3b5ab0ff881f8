package main

import (
	"github.com/spf13/cobra"

	"github.com/bob-rietveld/unheard-v2-sub001/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Manage database migrations",
		Long: `Run a migration command against the configured database.

Commands:
  up                   Migrate the DB to the most recent version available
  up-by-one            Migrate the DB up by 1
  up-to VERSION        Migrate the DB to a specific VERSION
  down                 Roll back the version by 1
  down-to VERSION      Roll back to a specific VERSION
  redo                 Re-run the latest migration
  reset                Roll back all migrations
  status               Dump the migration status for the current DB
  version              Print the current version of the database`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(args[0], cli.db.DB, cli.db.DriverName(), args[1:]...)
}
