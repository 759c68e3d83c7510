package warning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/database/dbtest"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
)

func TestEvaluate_RepeatedPregnancyIsMedium(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p1", First: "Ana", Last: "Cruz", Age: 17, Province: "Cebu", Municipality: "Talisay"})
	dbtest.AddHealth(t, db, "p1", "Postpartum", 1)
	dbtest.AddHealth(t, db, "p1", "Pregnant", 3)

	eval := warning.NewEvaluator(db, zap.NewNop())
	res, err := eval.Evaluate(context.Background(), location.Filter{FilterType: location.All})
	require.NoError(t, err)

	require.Len(t, res.Cases, 1)
	c := res.Cases[0]
	assert.Equal(t, "p1", c.ProfileID)
	assert.Equal(t, "Ana Cruz", c.Name)
	assert.Equal(t, 17, c.Age)
	assert.Equal(t, "Talisay, Cebu", c.Location)
	assert.True(t, c.RepeatedPregnancy)
	assert.False(t, c.SchoolDropout)
	assert.Equal(t, 3, c.PregnancyCount)
	assert.Equal(t, warning.RiskMedium, c.RiskLevel)

	dbtest.AddEducation(t, db, "p1", "Dropout", nil)

	res, err = eval.Evaluate(context.Background(), location.Filter{FilterType: location.All})
	require.NoError(t, err)
	require.Len(t, res.Cases, 1)
	assert.Equal(t, warning.RiskHigh, res.Cases[0].RiskLevel)
	assert.Equal(t, warning.Stats{TotalHighRisk: 1, TotalRepeatedPregnancy: 1, TotalDropouts: 1}, res.Stats)
}

func TestEvaluate_OrderAndExclusion(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "a", Region: "NCR"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "b", Region: "NCR"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "c", Region: "NCR"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "d", Region: "Region VII"})

	dbtest.AddEducation(t, db, "a", "Dropout", nil)
	dbtest.AddHealth(t, db, "b", "Pregnant", 1)
	dbtest.AddEducation(t, db, "b", "Enrolled", nil)
	dbtest.AddHealth(t, db, "c", "Pregnant", 2)
	dbtest.AddHealth(t, db, "c", "Pregnant", -1)
	dbtest.AddEducation(t, db, "d", "Dropout", nil)

	res, err := warning.NewEvaluator(db, nil).
		Evaluate(context.Background(), location.Filter{FilterType: location.Region, Region: "NCR"})
	require.NoError(t, err)

	var ids []string
	for _, c := range res.Cases {
		ids = append(ids, c.ProfileID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.Equal(t, []string{"a", "b", "c"}, res.Scanned)
	assert.Equal(t, warning.Stats{TotalRepeatedPregnancy: 1, TotalDropouts: 1}, res.Stats)
}

func TestEvaluate_EmptyScope(t *testing.T) {
	db := dbtest.New(t)

	res, err := warning.NewEvaluator(db, nil).
		Evaluate(context.Background(), location.Filter{FilterType: location.Barangay, Barangay: "Lawaan"})
	require.NoError(t, err)
	assert.Empty(t, res.Cases)
	assert.Equal(t, warning.Stats{}, res.Stats)
}

type failingStore struct{}

func (failingStore) Profiles(context.Context, *database.Query) ([]*database.Profile, error) {
	return nil, errors.New("timeout")
}

func (failingStore) HealthRecords(context.Context, *database.Query) ([]*database.HealthRecord, error) {
	return nil, nil
}

func (failingStore) EducationRecords(context.Context, *database.Query) ([]*database.EducationRecord, error) {
	return nil, nil
}

func TestEvaluate_ReadFailure(t *testing.T) {
	res, err := warning.NewEvaluator(failingStore{}, nil).Evaluate(context.Background(), location.Filter{})
	assert.Nil(t, res)
	assert.Equal(t, apperror.KindStoreRead, apperror.KindOf(err))
}

func TestAssess(t *testing.T) {
	name := "Lia"
	p := &database.Profile{ProfileID: "x", FirstName: &name, CreatedAt: time.Now()}

	tests := []struct {
		pregnancies int
		dropout     bool
		want        warning.RiskLevel
	}{
		{0, false, warning.RiskNone},
		{1, false, warning.RiskNone},
		{2, false, warning.RiskMedium},
		{0, true, warning.RiskMedium},
		{4, true, warning.RiskHigh},
	}
	for _, tt := range tests {
		c := warning.Assess(p, tt.pregnancies, tt.dropout)
		assert.Equal(t, tt.want, c.RiskLevel, "pregnancies=%d dropout=%v", tt.pregnancies, tt.dropout)
	}

	assert.Equal(t, "N/A", warning.Assess(p, 2, false).Location)
	assert.Equal(t, 0, warning.Assess(p, 2, false).Age)
}
