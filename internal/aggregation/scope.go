// Package aggregation computes location-scoped statistics and breakdowns over
// the record store.
//
// Every aggregate runs as a two-phase plan. Phase 1 resolves the location
// filter to a set of profile ids; phase 2 reads dependent records by
// membership in that set. The phases are separate reads without a shared
// snapshot, so a concurrent write can land between them.
package aggregation

import (
	"context"

	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

// Store is the read side of the record store. *database.DB implements it.
type Store interface {
	Count(ctx context.Context, q *database.Query) (int, error)
	ProfileIDs(ctx context.Context, q *database.Query) ([]string, error)
	Profiles(ctx context.Context, q *database.Query) ([]*database.Profile, error)
	EducationRecords(ctx context.Context, q *database.Query) ([]*database.EducationRecord, error)
}

// Scope is a resolved location filter.
type Scope struct {
	Filter     location.Filter
	Count      int
	ProfileIDs []string
}

// ProfileQuery returns the profile query for f in store order.
func ProfileQuery(f location.Filter) *database.Query {
	return database.From(database.TableProfiles).
		Scope(f).
		OrderBy(database.ColCreatedAt, false).
		OrderBy(database.ColProfileID, false)
}

// ResolveScope runs phase 1: an exact profile count, then the id set.
func ResolveScope(ctx context.Context, store Store, f location.Filter) (*Scope, error) {
	count, err := store.Count(ctx, database.From(database.TableProfiles).Scope(f))
	if err != nil {
		return nil, err
	}

	ids, err := store.ProfileIDs(ctx, ProfileQuery(f))
	if err != nil {
		return nil, err
	}

	return &Scope{Filter: f, Count: count, ProfileIDs: ids}, nil
}

// Empty reports whether no profile matched.
func (s *Scope) Empty() bool {
	return len(s.ProfileIDs) == 0
}

// Dependents starts a phase-2 query over table restricted to the scope's ids.
func (s *Scope) Dependents(table string) *database.Query {
	return database.From(table).WhereIn(database.ColProfileID, s.ProfileIDs)
}
