// Package cli contains the tpmss commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

// Version is the current version of tpmss
var Version = "0.1.0"

// Opener connects to the store. The returned func releases it.
type Opener func() (*database.DB, func(), error)

// App carries what every command needs.
type App struct {
	Open   Opener
	Logger *zap.Logger

	ReportFormat string
	ReportTheme  string
	ReportDir    string
}

type globals struct {
	filter location.Filter
	output string
}

// NewRootCmd builds the tpmss command tree.
func NewRootCmd(app *App) *cobra.Command {
	if app.Logger == nil {
		app.Logger = zap.NewNop()
	}
	g := &globals{}

	root := &cobra.Command{
		Use:   "tpmss",
		Short: "Teen-parent case statistics and reports",
		Long: `tpmss reads case-management records and prints statistics, early
warnings and location breakdowns, or writes PDF/XLSX reports.

Every command accepts a location scope:
  --filter-type   all | region | province | municipality | barangay
  --region, --province, --municipality, --barangay

Examples:
  tpmss stats --filter-type province --province Cebu
  tpmss warnings --output yaml
  tpmss breakdown --filter-type region --region "Region VII"
  tpmss report summary --format xlsx --out-dir ./reports`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar((*string)(&g.filter.FilterType), "filter-type", string(location.All), "Location level to scope to")
	flags.StringVar(&g.filter.Region, "region", "", "Region name")
	flags.StringVar(&g.filter.Province, "province", "", "Province name")
	flags.StringVar(&g.filter.Municipality, "municipality", "", "Municipality name")
	flags.StringVar(&g.filter.Barangay, "barangay", "", "Barangay name")
	flags.StringVarP(&g.output, "output", "o", "json", "Output format: json | yaml")

	root.AddCommand(
		newStatsCmd(app, g),
		newWarningsCmd(app, g),
		newBreakdownCmd(app, g),
		newReportCmd(app, g),
		newMigrateCmd(app),
	)
	return root
}

// withStore opens the store for the duration of fn.
func (a *App) withStore(fn func(db *database.DB) error) error {
	db, release, err := a.Open()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer release()
	return fn(db)
}

func encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q (expected json or yaml)", format)
	}
}
