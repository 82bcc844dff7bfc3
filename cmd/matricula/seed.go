package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-matricula/pkg/catalog"
)

func seedCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a catalog dataset into the database",
		Long: `Load a catalog dataset into the database.

Without --file the bundled dataset is used. Records are upserted, so
seeding twice is harmless.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := catalog.DefaultDataset()
			if file != "" {
				ds, err = catalog.LoadDataset(file)
			}
			if err != nil {
				return err
			}
			store, err := catalog.OpenSQLite(a.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Seed(cmd.Context(), ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", a.cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML dataset to load")
	return cmd
}
