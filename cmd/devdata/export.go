package main

import (
	"context"

	"github.com/Sternrassler/devdata-fetch/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(g *globalOptions) *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load the SDG data file and series metadata into a SQL database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, nil)
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context(), a.cfg.SDGOutputDir())
			if err != nil {
				return closeOnError(a, err)
			}
			return a.run(cmd.Context(), func(ctx context.Context) error {
				exp, err := export.Open(ctx, driver, dsn)
				if err != nil {
					return err
				}
				defer exp.Close()
				_, err = exp.Run(ctx, store)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&driver, "driver", export.DriverSQLite, "Database driver: sqlite|pgx")
	cmd.Flags().StringVar(&dsn, "dsn", "devdata.db", "Database DSN (file path for sqlite)")
	return cmd
}
