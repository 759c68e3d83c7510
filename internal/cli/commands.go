package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rosevil15/TPMSS-sub001/internal/aggregation"
	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/report"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
	"github.com/Rosevil15/TPMSS-sub001/migrations"
)

func newStatsCmd(app *App, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print totals for the selected location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(db *database.DB) error {
				stats, err := aggregation.NewStatisticsAggregator(db, app.Logger).Aggregate(cmd.Context(), g.filter)
				if err != nil {
					return userError(err)
				}
				return encode(cmd.OutOrStdout(), g.output, stats)
			})
		},
	}
}

func newWarningsCmd(app *App, g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "warnings",
		Short: "List profiles flagged for repeated pregnancy or school dropout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(db *database.DB) error {
				res, err := warning.NewEvaluator(db, app.Logger).Evaluate(cmd.Context(), g.filter)
				if err != nil {
					return userError(err)
				}
				if limit > 0 && len(res.Cases) > limit {
					res.Cases = res.Cases[:limit]
				}
				return encode(cmd.OutOrStdout(), g.output, res)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many cases (0 for all)")
	return cmd
}

func newBreakdownCmd(app *App, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "breakdown",
		Short: "Group the selected location by the next finer level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(db *database.DB) error {
				b, err := aggregation.NewBreakdownAggregator(db, app.Logger).Aggregate(cmd.Context(), g.filter)
				if err != nil {
					return userError(err)
				}
				return encode(cmd.OutOrStdout(), g.output, b)
			})
		},
	}
}

func newReportCmd(app *App, g *globals) *cobra.Command {
	var format, theme, outDir string
	cmd := &cobra.Command{
		Use:       "report <kind>",
		Short:     "Write a report file",
		Long:      "Write a report file. Kinds: profiles, health, education, cases, summary, breakdown, warnings.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := report.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown report type %q", args[0])
			}
			w, err := report.WriterFor(format)
			if err != nil {
				return err
			}
			return app.withStore(func(db *database.DB) error {
				doc, err := report.NewGenerator(db, app.Logger).Generate(cmd.Context(), kind, g.filter, report.ParseTheme(theme))
				if err != nil {
					return userError(err)
				}
				path, err := report.Save(outDir, doc, w)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", app.ReportFormat, "File format: pdf | xlsx")
	cmd.Flags().StringVar(&theme, "theme", app.ReportTheme, "Table theme: grid | striped")
	cmd.Flags().StringVar(&outDir, "out-dir", app.ReportDir, "Directory to write the report to")
	return cmd
}

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(db *database.DB) error {
				if err := db.RunMigrations(migrations.FS); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func kindNames() []string {
	names := make([]string, len(report.Kinds))
	for i, k := range report.Kinds {
		names[i] = string(k)
	}
	return names
}

// userError keeps the short message of classified errors for the terminal.
func userError(err error) error {
	if apperror.KindOf(err) == apperror.KindUnknown {
		return err
	}
	return errors.New(apperror.Message(err))
}
