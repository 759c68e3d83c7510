package aggregation

import (
	"context"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

// Statistics holds the summary counters for one location scope.
type Statistics struct {
	TotalProfiles         int `json:"totalProfiles" yaml:"totalProfiles"`
	TotalHealthRecords    int `json:"totalHealthRecords" yaml:"totalHealthRecords"`
	PregnantCount         int `json:"pregnantCount" yaml:"pregnantCount"`
	TotalEducationRecords int `json:"totalEducationRecords" yaml:"totalEducationRecords"`
	EnrolledCount         int `json:"enrolledCount" yaml:"enrolledCount"`
	TotalCases            int `json:"totalCases" yaml:"totalCases"`
}

// StatisticsAggregator computes Statistics
type StatisticsAggregator struct {
	store  Store
	logger *zap.Logger
}

// NewStatisticsAggregator creates a new statistics aggregator
func NewStatisticsAggregator(store Store, logger *zap.Logger) *StatisticsAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsAggregator{store: store, logger: logger}
}

// Aggregate counts profiles and their dependent records within f. Any failed
// read aborts the whole aggregate.
func (a *StatisticsAggregator) Aggregate(ctx context.Context, f location.Filter) (*Statistics, error) {
	const op = "statistics"

	scope, err := ResolveScope(ctx, a.store, f)
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}
	if scope.Count != len(scope.ProfileIDs) {
		a.logger.Warn("profile count changed between reads",
			zap.Int("count", scope.Count),
			zap.Int("ids", len(scope.ProfileIDs)))
	}

	stats := &Statistics{TotalProfiles: scope.Count}
	if scope.Empty() {
		return stats, nil
	}

	counts := []struct {
		dst *int
		q   *database.Query
	}{
		{&stats.TotalHealthRecords, scope.Dependents(database.TableHealthRecords)},
		{&stats.TotalEducationRecords, scope.Dependents(database.TableEducationRecords)},
		{&stats.TotalCases, scope.Dependents(database.TableCaseRecords)},
		{&stats.PregnantCount, scope.Dependents(database.TableHealthRecords).
			Where(database.ColPregnancyStatus, database.PregnancyStatusPregnant)},
		{&stats.EnrolledCount, scope.Dependents(database.TableEducationRecords).
			Where(database.ColStatus, database.EducationStatusEnrolled)},
	}
	for _, c := range counts {
		n, err := a.store.Count(ctx, c.q)
		if err != nil {
			return nil, apperror.StoreRead(op, err)
		}
		*c.dst = n
	}

	a.logger.Debug("statistics aggregated",
		zap.String("scope", f.Describe()),
		zap.Int("profiles", stats.TotalProfiles))

	return stats, nil
}
