package main

import (
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/storage/database/sqlxrepos"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sqlx.DB
	logger core.Logger
	out    io.Writer

	prsSvc *persona.Service
	expSvc *experiment.Service
}

func newCommandLine(db *sqlx.DB, logger core.Logger, validate *validator.Validate) *commandLine {
	prsSvc := persona.NewService(db, sqlxrepos.NewPersonaRepository(db), validate)
	expSvc := experiment.NewService(
		db,
		sqlxrepos.NewExperimentRepository(db),
		sqlxrepos.NewResponseRepository(db),
		prsSvc,
		validate,
	)
	return &commandLine{
		db:     db,
		logger: logger,
		out:    os.Stdout,
		prsSvc: prsSvc,
		expSvc: expSvc,
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Unheard administration tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.seedCmd(),
		cli.completeCmd(),
	)
	return root
}

// run executes the command line; args includes the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}
