package aggregation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/aggregation"
	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/database/dbtest"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

// spyStore records calls and serves canned results.
type spyStore struct {
	counts    []string
	idReads   int
	profiles  int
	education int

	ids []string
	err error
}

func (s *spyStore) Count(_ context.Context, q *database.Query) (int, error) {
	s.counts = append(s.counts, q.Table())
	if s.err != nil {
		return 0, s.err
	}
	if q.Table() == database.TableProfiles {
		return len(s.ids), nil
	}
	return 0, nil
}

func (s *spyStore) ProfileIDs(context.Context, *database.Query) ([]string, error) {
	s.idReads++
	return s.ids, s.err
}

func (s *spyStore) Profiles(context.Context, *database.Query) ([]*database.Profile, error) {
	s.profiles++
	return nil, s.err
}

func (s *spyStore) EducationRecords(context.Context, *database.Query) ([]*database.EducationRecord, error) {
	s.education++
	return nil, s.err
}

func seed(t *testing.T) *database.DB {
	db := dbtest.New(t)

	dbtest.AddProfile(t, db, dbtest.Person{ID: "p1", First: "Ana", Last: "Cruz", Age: 14, Region: "Region VII", Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p2", First: "Bea", Last: "Reyes", Age: 16, Region: "Region VII", Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p3", First: "Cara", Last: "Santos", Region: "Region VII", Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p4", First: "Dina", Last: "Lim", Age: 20, Region: "Region VII", Province: "Cebu", Municipality: "Argao"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p5", First: "Ella", Last: "Tan", Age: 17, Region: "Region VII", Province: "Bohol"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p6", First: "Faye", Last: "Go", Age: 15, Region: "NCR", Province: "Metro Manila", Municipality: "Pasig"})

	dbtest.AddHealth(t, db, "p1", "Pregnant", 1)
	dbtest.AddHealth(t, db, "p1", "Postpartum", 2)
	dbtest.AddHealth(t, db, "p4", "Pregnant", -1)
	dbtest.AddHealth(t, db, "p6", "Pregnant", 1)

	dbtest.AddEducation(t, db, "p1", "Enrolled", nil)
	dbtest.AddEducation(t, db, "p2", "Dropout", nil)
	dbtest.AddEducation(t, db, "p4", "Enrolled", nil)
	dbtest.AddEducation(t, db, "p5", "Dropout", nil)
	dbtest.AddEducation(t, db, "p6", "Enrolled", nil)

	dbtest.AddCase(t, db, 20250001, "p1")
	dbtest.AddCase(t, db, 20250002, "p6")

	return db
}

func TestStatistics_AllLocations(t *testing.T) {
	db := seed(t)
	agg := aggregation.NewStatisticsAggregator(db, zap.NewNop())

	stats, err := agg.Aggregate(context.Background(), location.Filter{FilterType: location.All})
	require.NoError(t, err)

	assert.Equal(t, &aggregation.Statistics{
		TotalProfiles:         6,
		TotalHealthRecords:    4,
		PregnantCount:         3,
		TotalEducationRecords: 5,
		EnrolledCount:         3,
		TotalCases:            2,
	}, stats)
}

func TestStatistics_ScopedToProvince(t *testing.T) {
	db := seed(t)
	agg := aggregation.NewStatisticsAggregator(db, nil)

	stats, err := agg.Aggregate(context.Background(), location.Filter{FilterType: location.Province, Province: "Cebu"})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalProfiles)
	assert.Equal(t, 3, stats.TotalHealthRecords)
	assert.Equal(t, 2, stats.PregnantCount)
	assert.Equal(t, 3, stats.TotalEducationRecords)
	assert.Equal(t, 2, stats.EnrolledCount)
	assert.Equal(t, 1, stats.TotalCases)
}

func TestStatistics_CountMatchesScope(t *testing.T) {
	db := seed(t)
	agg := aggregation.NewStatisticsAggregator(db, nil)

	filters := []location.Filter{
		{FilterType: location.All},
		{FilterType: location.Region, Region: "NCR"},
		{FilterType: location.Municipality, Municipality: "Talisay"},
		{FilterType: location.Barangay, Barangay: "Nowhere"},
		{FilterType: location.Province},
	}
	for _, f := range filters {
		t.Run(f.Describe(), func(t *testing.T) {
			stats, err := agg.Aggregate(context.Background(), f)
			require.NoError(t, err)

			scope, err := aggregation.ResolveScope(context.Background(), db, f)
			require.NoError(t, err)
			assert.Equal(t, len(scope.ProfileIDs), stats.TotalProfiles)
		})
	}
}

func TestStatistics_MoreProfilesThanBindLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("seeds 40000 profiles")
	}
	db := dbtest.New(t)
	dbtest.AddBulk(t, db, 40000, "Cebu")

	stats, err := aggregation.NewStatisticsAggregator(db, nil).
		Aggregate(context.Background(), location.Filter{FilterType: location.Province, Province: "Cebu"})
	require.NoError(t, err)
	assert.Equal(t, &aggregation.Statistics{
		TotalProfiles:      40000,
		TotalHealthRecords: 4000,
		PregnantCount:      4000,
	}, stats)

	b, err := aggregation.NewBreakdownAggregator(db, nil).
		Aggregate(context.Background(), location.Filter{FilterType: location.Region, Region: "Region VII"})
	require.NoError(t, err)
	assert.Equal(t, []aggregation.BreakdownStat{
		{Location: "Cebu", Count: 40000, AverageAge: "16.5"},
		{Location: "TOTAL", Count: 40000, AverageAge: "16.5"},
	}, b.Rows)
}

func TestStatistics_EmptyScopeSkipsDependentReads(t *testing.T) {
	store := &spyStore{}
	agg := aggregation.NewStatisticsAggregator(store, nil)

	stats, err := agg.Aggregate(context.Background(), location.Filter{FilterType: location.Region, Region: "Nowhere"})
	require.NoError(t, err)

	assert.Equal(t, &aggregation.Statistics{}, stats)
	assert.Equal(t, []string{database.TableProfiles}, store.counts)
	assert.Equal(t, 1, store.idReads)
}

func TestStatistics_ReadFailureAborts(t *testing.T) {
	store := &spyStore{err: errors.New("connection refused")}
	agg := aggregation.NewStatisticsAggregator(store, nil)

	stats, err := agg.Aggregate(context.Background(), location.Filter{})
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, apperror.ErrStoreRead)
	assert.Equal(t, "failed to load data", apperror.Message(err))
}

func TestBreakdown_AverageAgeOverAllValidAges(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "a1", Age: 14, Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "a2", Age: 16, Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "a3", Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "b1", Age: 20, Province: "Cebu", Municipality: "Argao"})

	agg := aggregation.NewBreakdownAggregator(db, zap.NewNop())
	b, err := agg.Aggregate(context.Background(), location.Filter{FilterType: location.Province, Province: "Cebu"})
	require.NoError(t, err)

	assert.Equal(t, location.Municipality, b.GroupBy)
	assert.Equal(t, []aggregation.BreakdownStat{
		{Location: "Argao", Count: 1, AverageAge: "20.0"},
		{Location: "Talisay", Count: 3, AverageAge: "15.0"},
		{Location: "TOTAL", Count: 4, AverageAge: "16.7"},
	}, b.Rows)
}

func TestBreakdown_TotalsAndUnknown(t *testing.T) {
	db := seed(t)
	agg := aggregation.NewBreakdownAggregator(db, nil)

	b, err := agg.Aggregate(context.Background(), location.Filter{FilterType: location.Region, Region: "Region VII"})
	require.NoError(t, err)

	assert.Equal(t, location.Province, b.GroupBy)
	require.Len(t, b.Groups(), 2)
	assert.Equal(t, aggregation.BreakdownStat{Location: "Bohol", Count: 1, AverageAge: "17.0", Dropout: 1}, b.Groups()[0])
	assert.Equal(t, aggregation.BreakdownStat{Location: "Cebu", Count: 4, AverageAge: "16.7", Enrolled: 2, Dropout: 1}, b.Groups()[1])

	var count, enrolled, dropout int
	for _, g := range b.Groups() {
		count += g.Count
		enrolled += g.Enrolled
		dropout += g.Dropout
	}
	total := b.Total()
	assert.Equal(t, "TOTAL", total.Location)
	assert.Equal(t, count, total.Count)
	assert.Equal(t, enrolled, total.Enrolled)
	assert.Equal(t, dropout, total.Dropout)

	b, err = agg.Aggregate(context.Background(), location.Filter{FilterType: location.Province, Province: "Bohol"})
	require.NoError(t, err)
	assert.Equal(t, []aggregation.BreakdownStat{
		{Location: "Unknown", Count: 1, AverageAge: "17.0", Dropout: 1},
		{Location: "TOTAL", Count: 1, AverageAge: "17.0", Dropout: 1},
	}, b.Rows)
}

func TestBreakdown_NoValidAges(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "x", Municipality: "Talisay", Barangay: "Lawaan"})

	b, err := aggregation.NewBreakdownAggregator(db, nil).
		Aggregate(context.Background(), location.Filter{FilterType: location.Municipality, Municipality: "Talisay"})
	require.NoError(t, err)
	assert.Equal(t, "N/A", b.Total().AverageAge)
	assert.Equal(t, "Lawaan", b.Groups()[0].Location)
}

func TestBreakdown_BlankLabelIsUnknown(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "x1", Age: 15, Municipality: "Talisay", Barangay: "   "})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "x2", Age: 17, Municipality: "Talisay"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "x3", Age: 16, Municipality: "Talisay", Barangay: " Lawaan "})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "x4", Age: 18, Municipality: "Talisay", Barangay: "Lawaan"})

	b, err := aggregation.NewBreakdownAggregator(db, nil).
		Aggregate(context.Background(), location.Filter{FilterType: location.Municipality, Municipality: "Talisay"})
	require.NoError(t, err)
	assert.Equal(t, []aggregation.BreakdownStat{
		{Location: "Lawaan", Count: 2, AverageAge: "17.0"},
		{Location: "Unknown", Count: 2, AverageAge: "16.0"},
		{Location: "TOTAL", Count: 4, AverageAge: "16.5"},
	}, b.Rows)
}

func TestBreakdown_NoData(t *testing.T) {
	db := seed(t)

	_, err := aggregation.NewBreakdownAggregator(db, nil).
		Aggregate(context.Background(), location.Filter{FilterType: location.Region, Region: "CAR"})
	assert.ErrorIs(t, err, apperror.ErrEmptyResult)
	assert.Equal(t, "no data found for the selected location", apperror.Message(err))
}

func TestBreakdown_RejectedBeforeStoreCall(t *testing.T) {
	filters := []location.Filter{
		{FilterType: location.All},
		{FilterType: location.Barangay, Barangay: "Lawaan"},
		{FilterType: location.Region},
		{FilterType: "district", Region: "NCR"},
	}
	for _, f := range filters {
		t.Run(string(f.FilterType), func(t *testing.T) {
			store := &spyStore{}
			_, err := aggregation.NewBreakdownAggregator(store, nil).Aggregate(context.Background(), f)

			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Empty(t, store.counts)
			assert.Zero(t, store.idReads+store.profiles+store.education)
		})
	}
}

func TestFormatAverage(t *testing.T) {
	assert.Equal(t, "N/A", aggregation.FormatAverage(0, 0))
	assert.Equal(t, "16.7", aggregation.FormatAverage(50, 3))
	assert.Equal(t, "15.0", aggregation.FormatAverage(30, 2))
}
