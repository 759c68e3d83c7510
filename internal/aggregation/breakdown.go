package aggregation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

const (
	// UnknownLocation labels profiles with no value at the grouping level.
	UnknownLocation = "Unknown"
	// TotalLabel labels the synthetic last row.
	TotalLabel = "TOTAL"
	// NoAge renders an average over no valid ages.
	NoAge = "N/A"
)

// BreakdownStat is one row of a location breakdown.
type BreakdownStat struct {
	Location   string `json:"location" yaml:"location"`
	Count      int    `json:"count" yaml:"count"`
	AverageAge string `json:"averageAge" yaml:"averageAge"`
	Enrolled   int    `json:"enrolled" yaml:"enrolled"`
	Dropout    int    `json:"dropout" yaml:"dropout"`
}

// Breakdown groups a scope by the next finer location level. The last row is
// always the TOTAL row.
type Breakdown struct {
	Filter  location.Filter `json:"filter" yaml:"filter"`
	GroupBy location.Level  `json:"groupBy" yaml:"groupBy"`
	Rows    []BreakdownStat `json:"rows" yaml:"rows"`
}

// Total returns the TOTAL row.
func (b *Breakdown) Total() BreakdownStat {
	return b.Rows[len(b.Rows)-1]
}

// Groups returns the rows without TOTAL.
func (b *Breakdown) Groups() []BreakdownStat {
	return b.Rows[:len(b.Rows)-1]
}

// BreakdownAggregator computes Breakdown
type BreakdownAggregator struct {
	store  Store
	logger *zap.Logger
}

// NewBreakdownAggregator creates a new breakdown aggregator
func NewBreakdownAggregator(store Store, logger *zap.Logger) *BreakdownAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakdownAggregator{store: store, logger: logger}
}

type group struct {
	label    string
	ids      []string
	ageSum   int
	ageCount int
	enrolled int
	dropout  int
}

// Aggregate groups the profiles in f by the level below f's. Only region,
// province and municipality filters with a selected value are accepted.
func (a *BreakdownAggregator) Aggregate(ctx context.Context, f location.Filter) (*Breakdown, error) {
	const op = "breakdown"

	next, ok := NextLevelFor(f)
	if !ok {
		return nil, apperror.Validation(op, "select a region, province or municipality to break down")
	}

	profiles, err := a.store.Profiles(ctx, ProfileQuery(f))
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}
	if len(profiles) == 0 {
		return nil, apperror.EmptyResult(op, "no data found for the selected location")
	}

	groups := make(map[string]*group)
	byProfile := make(map[string]*group, len(profiles))
	ids := make([]string, 0, len(profiles))
	var ageSum, ageCount int

	for _, p := range profiles {
		label := strings.TrimSpace(p.LocationValue(string(next)))
		if label == "" {
			label = UnknownLocation
		}
		g, ok := groups[label]
		if !ok {
			g = &group{label: label}
			groups[label] = g
		}
		g.ids = append(g.ids, p.ProfileID)
		byProfile[p.ProfileID] = g
		ids = append(ids, p.ProfileID)

		if p.Age != nil && *p.Age > 0 {
			g.ageSum += *p.Age
			g.ageCount++
			ageSum += *p.Age
			ageCount++
		}
	}

	records, err := a.store.EducationRecords(ctx,
		database.From(database.TableEducationRecords).WhereIn(database.ColProfileID, ids))
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}
	for _, r := range records {
		g, ok := byProfile[r.ProfileID]
		if !ok || r.Status == nil {
			continue
		}
		switch *r.Status {
		case database.EducationStatusEnrolled:
			g.enrolled++
		case database.EducationStatusDropout:
			g.dropout++
		}
	}

	rows := make([]BreakdownStat, 0, len(groups)+1)
	for _, g := range groups {
		rows = append(rows, BreakdownStat{
			Location:   g.label,
			Count:      len(g.ids),
			AverageAge: FormatAverage(g.ageSum, g.ageCount),
			Enrolled:   g.enrolled,
			Dropout:    g.dropout,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Location < rows[j].Location })

	total := BreakdownStat{Location: TotalLabel, AverageAge: FormatAverage(ageSum, ageCount)}
	for _, r := range rows {
		total.Count += r.Count
		total.Enrolled += r.Enrolled
		total.Dropout += r.Dropout
	}
	rows = append(rows, total)

	a.logger.Debug("breakdown aggregated",
		zap.String("scope", f.Describe()),
		zap.String("group_by", string(next)),
		zap.Int("groups", len(groups)))

	return &Breakdown{Filter: f, GroupBy: next, Rows: rows}, nil
}

// NextLevelFor returns the grouping level for f, or false when f cannot be
// broken down.
func NextLevelFor(f location.Filter) (location.Level, bool) {
	next, ok := location.NextLevel(f.FilterType)
	if !ok || f.Selected() == "" {
		return "", false
	}
	return next, true
}

// FormatAverage renders sum/count to one decimal, or N/A when count is 0.
func FormatAverage(sum, count int) string {
	if count == 0 {
		return NoAge
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(count))
}
