package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-matricula/internal/openapi"
)

func routesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the documented HTTP operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := openapi.Document(version, a.cfg.Server.InstitutionHeader)
			if err := openapi.Validate(cmd.Context(), doc); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, op := range openapi.Operations(doc) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", op.Method, op.Path, op.Summary)
			}
			return w.Flush()
		},
	}
}
