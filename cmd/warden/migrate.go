package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(a.applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied migrations: %v\n", a.applied)
			}

			if seed {
				return a.seedAdmin(cmd.Context())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed-admin", true, "create the bootstrap administrator when no users exist")
	return cmd
}
