package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// migrator is implemented by stores that own a schema
type migrator interface {
	Migrate(ctx context.Context) error
}

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the policy database",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the schema, skipping tables that already exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.policyStore(cmd.Context())
			if err != nil {
				return err
			}
			m, ok := store.(migrator)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Store needs no schema")
				return nil
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s schema\n", a.cfg.Database.Driver)
			return nil
		},
	})
	return cmd
}
