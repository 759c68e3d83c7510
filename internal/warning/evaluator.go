// Package warning flags profiles at elevated risk: repeated pregnancy,
// school dropout, or both.
package warning

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/aggregation"
	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

// RiskLevel grades a profile.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// rank orders levels for escalation checks.
func (l RiskLevel) rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// RepeatedPregnancyThreshold is the pregnancy count from which a profile is
// flagged.
const RepeatedPregnancyThreshold = 2

// Case is a flagged profile. It is derived on every evaluation and never
// stored.
type Case struct {
	ProfileID         string    `json:"profileid" yaml:"profileid"`
	Name              string    `json:"name" yaml:"name"`
	Age               int       `json:"age" yaml:"age"`
	Location          string    `json:"location" yaml:"location"`
	RiskLevel         RiskLevel `json:"riskLevel" yaml:"riskLevel"`
	RepeatedPregnancy bool      `json:"repeatedPregnancy" yaml:"repeatedPregnancy"`
	PregnancyCount    int       `json:"pregnancyCount" yaml:"pregnancyCount"`
	SchoolDropout     bool      `json:"schoolDropout" yaml:"schoolDropout"`
}

// Stats counts over a case list.
type Stats struct {
	TotalHighRisk          int `json:"totalHighRisk" yaml:"totalHighRisk"`
	TotalRepeatedPregnancy int `json:"totalRepeatedPregnancy" yaml:"totalRepeatedPregnancy"`
	TotalDropouts          int `json:"totalDropouts" yaml:"totalDropouts"`
}

// Result is the flagged cases in store order, their stats, and the ids of
// every profile examined (flagged or not).
type Result struct {
	Cases   []Case   `json:"cases" yaml:"cases"`
	Stats   Stats    `json:"stats" yaml:"stats"`
	Scanned []string `json:"-" yaml:"-"`
}

// Store is the read side the evaluator needs.
type Store interface {
	Profiles(ctx context.Context, q *database.Query) ([]*database.Profile, error)
	HealthRecords(ctx context.Context, q *database.Query) ([]*database.HealthRecord, error)
	EducationRecords(ctx context.Context, q *database.Query) ([]*database.EducationRecord, error)
}

// Evaluator computes early warnings for a location scope
type Evaluator struct {
	store  Store
	logger *zap.Logger
}

// NewEvaluator creates a new early-warning evaluator
func NewEvaluator(store Store, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{store: store, logger: logger}
}

// Evaluate loads the profiles in f with their health and education records
// and classifies each one.
func (e *Evaluator) Evaluate(ctx context.Context, f location.Filter) (*Result, error) {
	const op = "warnings"

	profiles, err := e.store.Profiles(ctx, aggregation.ProfileQuery(f))
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}

	result := &Result{Cases: []Case{}}
	if len(profiles) == 0 {
		return result, nil
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ProfileID
	}

	health, err := e.store.HealthRecords(ctx,
		database.From(database.TableHealthRecords).WhereIn(database.ColProfileID, ids))
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}
	education, err := e.store.EducationRecords(ctx,
		database.From(database.TableEducationRecords).WhereIn(database.ColProfileID, ids))
	if err != nil {
		return nil, apperror.StoreRead(op, err)
	}

	maxPregnancies := make(map[string]int)
	for _, r := range health {
		if r.NumOfPregnancies != nil && *r.NumOfPregnancies > maxPregnancies[r.ProfileID] {
			maxPregnancies[r.ProfileID] = *r.NumOfPregnancies
		}
	}
	dropouts := make(map[string]bool)
	for _, r := range education {
		if r.Status != nil && *r.Status == database.EducationStatusDropout {
			dropouts[r.ProfileID] = true
		}
	}

	result.Scanned = ids
	for _, p := range profiles {
		c := Assess(p, maxPregnancies[p.ProfileID], dropouts[p.ProfileID])
		if c.RiskLevel == RiskNone {
			continue
		}
		result.Cases = append(result.Cases, c)
	}
	result.Stats = Summarize(result.Cases)

	e.logger.Debug("warnings evaluated",
		zap.String("scope", f.Describe()),
		zap.Int("profiles", len(profiles)),
		zap.Int("flagged", len(result.Cases)))

	return result, nil
}

// Assess classifies one profile from its highest reported pregnancy count
// and whether any education record is a dropout.
func Assess(p *database.Profile, pregnancies int, dropout bool) Case {
	c := Case{
		ProfileID:         p.ProfileID,
		Name:              p.FullName(),
		Location:          Location(p),
		RepeatedPregnancy: pregnancies >= RepeatedPregnancyThreshold,
		PregnancyCount:    pregnancies,
		SchoolDropout:     dropout,
	}
	if p.Age != nil {
		c.Age = *p.Age
	}

	switch {
	case c.RepeatedPregnancy && c.SchoolDropout:
		c.RiskLevel = RiskHigh
	case c.RepeatedPregnancy || c.SchoolDropout:
		c.RiskLevel = RiskMedium
	default:
		c.RiskLevel = RiskNone
	}
	return c
}

// Summarize counts high-risk, repeated-pregnancy and dropout cases.
func Summarize(cases []Case) Stats {
	var s Stats
	for _, c := range cases {
		if c.RiskLevel == RiskHigh {
			s.TotalHighRisk++
		}
		if c.RepeatedPregnancy {
			s.TotalRepeatedPregnancy++
		}
		if c.SchoolDropout {
			s.TotalDropouts++
		}
	}
	return s
}

// Location joins the profile's location fields from finest to broadest.
func Location(p *database.Profile) string {
	var parts []string
	for _, v := range []*string{p.Barangay, p.Municipality, p.Province, p.Region} {
		if v != nil && *v != "" {
			parts = append(parts, *v)
		}
	}
	if len(parts) == 0 {
		return "N/A"
	}
	return strings.Join(parts, ", ")
}
