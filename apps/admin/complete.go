package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete EXPERIMENT_ID",
		Short: "Mark an experiment as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.complete(cmd.Context(), args[0])
		},
	}
}

func (cli *commandLine) complete(ctx context.Context, id string) error {
	exp, err := cli.expSvc.Complete(ctx, id)
	if err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("experiment %q completed", exp.Name), map[string]interface{}{"id": exp.ID})
	fmt.Fprintf(cli.out, "%s completed at %s\n", exp.ID, exp.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
