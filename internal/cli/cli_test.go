package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/database/dbtest"
)

func setupApp(t *testing.T) *App {
	t.Helper()

	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p1", First: "Ana", Last: "Cruz", Age: 14,
		Region: "Region VII", Province: "Cebu", Municipality: "Argao"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p2", First: "Bea", Last: "Reyes", Age: 18,
		Region: "Region VII", Province: "Bohol", Municipality: "Tagbilaran"})
	dbtest.AddHealth(t, db, "p1", "Pregnant", 3)
	dbtest.AddEducation(t, db, "p2", "Dropout", nil)

	return &App{
		Open:         func() (*database.DB, func(), error) { return db, func() {}, nil },
		ReportFormat: "pdf",
		ReportTheme:  "grid",
		ReportDir:    t.TempDir(),
	}
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStats_JSON(t *testing.T) {
	app := setupApp(t)

	out, err := run(t, app, "stats", "--filter-type", "province", "--province", "Cebu")
	require.NoError(t, err)

	var stats map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats["totalProfiles"])
	assert.Equal(t, 1, stats["pregnantCount"])
	assert.Equal(t, 0, stats["totalEducationRecords"])
}

func TestStats_YAML(t *testing.T) {
	app := setupApp(t)

	out, err := run(t, app, "stats", "-o", "yaml")
	require.NoError(t, err)

	var stats map[string]int
	require.NoError(t, yaml.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats["totalProfiles"])
	assert.Equal(t, 1, stats["totalHealthRecords"])
}

func TestStats_BadOutput(t *testing.T) {
	app := setupApp(t)

	_, err := run(t, app, "stats", "-o", "toml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestWarnings(t *testing.T) {
	app := setupApp(t)

	out, err := run(t, app, "warnings")
	require.NoError(t, err)

	var res struct {
		Cases []struct {
			ProfileID string `json:"profileid"`
			RiskLevel string `json:"riskLevel"`
		} `json:"cases"`
		Stats struct {
			TotalDropouts int `json:"totalDropouts"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Cases, 2)
	assert.Equal(t, "p1", res.Cases[0].ProfileID)
	assert.Equal(t, "medium", res.Cases[0].RiskLevel)
	assert.Equal(t, 1, res.Stats.TotalDropouts)

	out, err = run(t, app, "warnings", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Cases, 1)
}

func TestBreakdown(t *testing.T) {
	app := setupApp(t)

	out, err := run(t, app, "breakdown", "--filter-type", "region", "--region", "Region VII")
	require.NoError(t, err)
	assert.Contains(t, out, `"location": "Bohol"`)
	assert.Contains(t, out, `"location": "TOTAL"`)
	assert.Contains(t, out, `"averageAge": "16.0"`)

	_, err = run(t, app, "breakdown")
	assert.EqualError(t, err, "select a region, province or municipality to break down")
}

func TestReport_Save(t *testing.T) {
	app := setupApp(t)

	out, err := run(t, app, "report", "summary", "--format", "xlsx")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, app.ReportDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "Summary_Report_"))
	assert.Equal(t, ".xlsx", filepath.Ext(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestReport_Errors(t *testing.T) {
	app := setupApp(t)

	_, err := run(t, app, "report", "payroll")
	assert.ErrorContains(t, err, "unknown report type")

	_, err = run(t, app, "report", "cases", "--filter-type", "region", "--region", "NCR")
	assert.EqualError(t, err, "no profiles found for selected location")

	_, err = run(t, app, "report")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	app := &App{Open: func() (*database.DB, func(), error) { return db, func() {}, nil }}

	out, err := run(t, app, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	_, err = run(t, app, "stats")
	assert.NoError(t, err)
}
