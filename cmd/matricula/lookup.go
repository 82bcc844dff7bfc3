package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-matricula/components/students"
	"github.com/goliatone/go-matricula/internal/config"
)

func lookupCmd(a *app) *cobra.Command {
	var (
		link        bool
		remote      bool
		institution int64
	)

	cmd := &cobra.Command{
		Use:   "lookup <identificacion>",
		Short: "Search a student by identification",
		Long: `Search a student by identification and report whether the
identification is available, already registered in the active institution
or registered elsewhere. With --link a student found elsewhere is added to
the active institution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if institution > 0 {
				config.WithInstitution(institution)(&a.cfg)
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := a.connect(store, remote)
			if err != nil {
				return err
			}
			token := c.cfg.Client.CSRFToken
			client, err := students.NewClient(c.cfg.Client.BaseURL,
				students.WithHTTPClient(c.client),
				students.WithActiveInstitution(c.cfg.Client.Institution),
				students.WithCSRFToken(func() string { return token }),
			)
			if err != nil {
				return err
			}

			res, err := client.Search(ctx, args[0])
			if err != nil {
				return errors.New(students.Alert(err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Title)
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			if !link || !res.CanCopy {
				return nil
			}
			resp, err := client.Link(ctx, res.Student.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, resp.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&link, "link", false, "Add a student found elsewhere to the active institution")
	cmd.Flags().BoolVar(&remote, "remote", false, "Call the configured server instead of serving in process")
	cmd.Flags().Int64Var(&institution, "institution", 0, "Active institution id")
	return cmd
}
