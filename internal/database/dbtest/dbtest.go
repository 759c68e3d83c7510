// Package dbtest opens migrated in-memory SQLite stores and seeds them for
// tests in other packages.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/migrations"
)

// New returns an empty, migrated store closed at test cleanup.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Connect("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(migrations.FS))
	return db
}

// Person describes a profile to seed.
type Person struct {
	ID           string
	First, Last  string
	Age          int // 0 stores NULL
	Region       string
	Province     string
	Municipality string
	Barangay     string
}

// AddProfile inserts p.
func AddProfile(t testing.TB, db *database.DB, p Person) {
	t.Helper()

	profile := &database.Profile{
		ProfileID:    p.ID,
		FirstName:    opt(p.First),
		LastName:     opt(p.Last),
		Region:       opt(p.Region),
		Province:     opt(p.Province),
		Municipality: opt(p.Municipality),
		Barangay:     opt(p.Barangay),
	}
	if p.Age > 0 {
		age := p.Age
		profile.Age = &age
	}
	require.NoError(t, db.InsertProfile(context.Background(), profile))
}

// AddHealth inserts a health record; pregnancies < 0 stores NULL.
func AddHealth(t testing.TB, db *database.DB, profileID, status string, pregnancies int) {
	t.Helper()

	r := &database.HealthRecord{ProfileID: profileID, PregnancyStatus: opt(status)}
	if pregnancies >= 0 {
		n := pregnancies
		r.NumOfPregnancies = &n
	}
	require.NoError(t, db.InsertHealthRecord(context.Background(), r))
}

// AddEducation inserts an education record with an optional date.
func AddEducation(t testing.TB, db *database.DB, profileID, status string, date *time.Time) {
	t.Helper()

	r := &database.EducationRecord{
		ProfileID:         profileID,
		Status:            opt(status),
		Program:           opt("ALS"),
		EnrollDropoutDate: date,
	}
	require.NoError(t, db.InsertEducationRecord(context.Background(), r))
}

// AddCase inserts a case with no service details.
func AddCase(t testing.TB, db *database.DB, caseID int64, profileID string) {
	t.Helper()

	c := &database.CaseRecord{CaseID: caseID, ProfileID: profileID, ReceivedGC: "No", ReceivedFS: "No"}
	require.NoError(t, db.InsertCase(context.Background(), c))
}

// AddBulk inserts n profiles in province (ids bulk000001 upward, ages
// cycling 15 to 18) with a Pregnant health record on every tenth profile.
// Every thousandth profile reports two pregnancies.
func AddBulk(t testing.TB, db *database.DB, n int, province string) {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < ?)
INSERT INTO profiles (profileid, first_name, age, region, province)
SELECT printf('bulk%06d', n), 'Bulk', 15 + n % 4, 'Region VII', ? FROM seq`, n, province)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
WITH RECURSIVE seq(n) AS (SELECT 10 UNION ALL SELECT n + 10 FROM seq WHERE n + 10 <= ?)
INSERT INTO health_records (profileid, pregnancy_status, num_of_pregnancies)
SELECT printf('bulk%06d', n), 'Pregnant', CASE WHEN n % 1000 = 0 THEN 2 ELSE 1 END FROM seq`, n)
	require.NoError(t, err)
}

func opt(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
