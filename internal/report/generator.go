package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/aggregation"
	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
)

// Store is every read a report can need. *database.DB implements it.
type Store interface {
	aggregation.Store
	warning.Store
	CaseRecords(ctx context.Context, q *database.Query) ([]*database.CaseRecord, error)
}

const noProfiles = "no profiles found for selected location"

var recordNoun = map[Kind]string{
	KindHealth:    "health",
	KindEducation: "education",
	KindCases:     "case",
}

// Generator builds report documents for a location scope
type Generator struct {
	store      Store
	statistics *aggregation.StatisticsAggregator
	breakdown  *aggregation.BreakdownAggregator
	warnings   *warning.Evaluator
	logger     *zap.Logger
	now        func() time.Time
}

// NewGenerator creates a new report generator
func NewGenerator(store Store, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:      store,
		statistics: aggregation.NewStatisticsAggregator(store, logger),
		breakdown:  aggregation.NewBreakdownAggregator(store, logger),
		warnings:   warning.NewEvaluator(store, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// Generate builds the document for kind within f.
func (g *Generator) Generate(ctx context.Context, kind Kind, f location.Filter, theme Theme) (*Document, error) {
	doc := &Document{
		Title:       kind.Title(),
		Location:    f.Describe(),
		GeneratedAt: g.now(),
		Theme:       theme,
	}

	var err error
	switch kind {
	case KindProfiles, KindHealth, KindEducation, KindCases:
		doc.Table, err = g.profileScoped(ctx, kind, f)
	case KindSummary:
		var stats *aggregation.Statistics
		if stats, err = g.statistics.Aggregate(ctx, f); err == nil {
			doc.Table = SummaryTable(stats)
		}
	case KindBreakdown:
		var b *aggregation.Breakdown
		if b, err = g.breakdown.Aggregate(ctx, f); err == nil {
			doc.Table = BreakdownTable(b)
			doc.HighlightLastRow = true
		}
	case KindWarnings:
		var res *warning.Result
		if res, err = g.warnings.Evaluate(ctx, f); err == nil {
			if len(res.Cases) == 0 {
				err = apperror.EmptyResult("warnings report", "no early warning cases for selected location")
				break
			}
			doc.Table = WarningsTable(res)
			doc.Notes = WarningNotes(res.Stats)
		}
	default:
		err = apperror.Validation("report", fmt.Sprintf("unknown report type %q", kind))
	}
	if err != nil {
		return nil, err
	}

	g.logger.Info("report generated",
		zap.String("kind", string(kind)),
		zap.String("scope", doc.Location),
		zap.Int("rows", len(doc.Table.Rows)))

	return doc, nil
}

// profileScoped loads the profiles in f, then the kind's records for them.
func (g *Generator) profileScoped(ctx context.Context, kind Kind, f location.Filter) (*Table, error) {
	op := string(kind) + " report"

	profiles, err := g.store.Profiles(ctx, aggregation.ProfileQuery(f))
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}
	if len(profiles) == 0 {
		return nil, apperror.EmptyResult(op, noProfiles)
	}
	if kind == KindProfiles {
		return ProfilesTable(profiles), nil
	}

	ids := make([]string, len(profiles))
	names := make(map[string]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ProfileID
		names[p.ProfileID] = p.FullName()
	}
	scope := &aggregation.Scope{Filter: f, Count: len(ids), ProfileIDs: ids}
	dependents := func(table string) *database.Query {
		return scope.Dependents(table).OrderBy(database.ColCreatedAt, false)
	}

	var t *Table
	switch kind {
	case KindHealth:
		var records []*database.HealthRecord
		if records, err = g.store.HealthRecords(ctx, dependents(database.TableHealthRecords)); err == nil {
			byCreatedAt(records, func(r *database.HealthRecord) time.Time { return r.CreatedAt })
			t = HealthTable(records, names)
		}
	case KindEducation:
		var records []*database.EducationRecord
		if records, err = g.store.EducationRecords(ctx, dependents(database.TableEducationRecords)); err == nil {
			byCreatedAt(records, func(r *database.EducationRecord) time.Time { return r.CreatedAt })
			t = EducationTable(records, names)
		}
	case KindCases:
		var records []*database.CaseRecord
		if records, err = g.store.CaseRecords(ctx, dependents(database.TableCaseRecords)); err == nil {
			byCreatedAt(records, func(r *database.CaseRecord) time.Time { return r.CreatedAt })
			t = CasesTable(records, names)
		}
	}
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}
	if len(t.Rows) == 0 {
		return nil, apperror.EmptyResult(op, fmt.Sprintf("no %s records found for selected location", recordNoun[kind]))
	}
	return t, nil
}

// byCreatedAt restores creation order across batched reads. Ties keep the
// order the store returned.
func byCreatedAt[T any](records []T, at func(T) time.Time) {
	slices.SortStableFunc(records, func(a, b T) int {
		return at(a).Compare(at(b))
	})
}
