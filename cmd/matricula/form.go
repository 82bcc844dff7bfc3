package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-matricula/internal/config"
	"github.com/goliatone/go-matricula/internal/enrollment"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/prompt"
)

func formCmd(a *app) *cobra.Command {
	var (
		student     bool
		rows        int
		remote      bool
		institution int64
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "form",
		Short: "Fill the enrollment or student form interactively",
		Long: `Fill the enrollment or student form interactively.

Static choices (provinces, school years, levels) are read from the local
database. Dependent selects are filled through the catalog endpoints, served
in process by default or by the configured server with --remote.

Examples:
  matricula form --institution 1
  matricula form --student --rows 2
  matricula form --remote --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if institution > 0 {
				config.WithInstitution(institution)(&a.cfg)
			}
			if a.cfg.Client.Institution <= 0 {
				return errors.New("an institution is required (--institution or MATRICULA_INSTITUCION)")
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
			choices, err := enrollment.LoadChoices(ctx, store, c.cfg.Client.Institution)
			if err != nil {
				return err
			}
			f, err := buildForm(choices, student, rows)
			if err != nil {
				return err
			}

			session, err := enrollment.Wire(ctx, f, c.cfg,
				enrollment.WithLogger(a.logger),
				enrollment.WithHTTPClient(c.client),
			)
			if err != nil {
				return err
			}
			defer session.Close()

			p, err := prompt.New(f, prompt.NewSurveyDriver(),
				prompt.WithSettle(session.Wait),
				prompt.WithLabels(enrollment.Labels),
				prompt.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}
			values, err := p.Run(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(values)
			}
			return p.Summary(ctx)
		},
	}
	cmd.Flags().BoolVar(&student, "student", false, "Fill the student form instead of a single enrollment")
	cmd.Flags().IntVar(&rows, "rows", 1, "Enrollment rows added to the student form")
	cmd.Flags().BoolVar(&remote, "remote", false, "Call the configured server instead of serving in process")
	cmd.Flags().Int64Var(&institution, "institution", 0, "Active institution id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the values as JSON")
	return cmd
}

func buildForm(choices enrollment.Choices, student bool, rows int) (*form.Form, error) {
	if !student {
		return enrollment.NewEnrollmentForm(choices)
	}
	f, err := enrollment.NewStudentForm(choices)
	if err != nil {
		return nil, err
	}
	for i := 0; i < rows; i++ {
		if _, err := enrollment.AddEnrollment(f, choices); err != nil {
			return nil, fmt.Errorf("enrollment row %d: %w", i, err)
		}
	}
	return f, nil
}
