// Package main is the entry point for the tpmss CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Rosevil15/TPMSS-sub001/internal/cli"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/logger"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logs go to stderr only when asked for, so command output stays clean.
	lg := logger.MustNew("error", "console", "tpmss-cli")
	if cfg.Log.Level == "debug" {
		lg = logger.MustNew("debug", "console", "tpmss-cli")
	}
	defer lg.Sync()

	app := &cli.App{
		Open: func() (*database.DB, func(), error) {
			db, err := database.Connect(cfg.Database.Driver, cfg.Database.ConnectionString(), lg)
			if err != nil {
				return nil, nil, err
			}
			return db, func() { db.Close() }, nil
		},
		Logger:       lg,
		ReportFormat: cfg.Reports.Format,
		ReportTheme:  cfg.Reports.Theme,
		ReportDir:    cfg.Reports.OutputDir,
	}

	if err := cli.NewRootCmd(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
