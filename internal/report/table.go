// Package report shapes record sets into tables and renders them as
// downloadable documents.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/Rosevil15/TPMSS-sub001/internal/aggregation"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
)

// NA renders any missing value.
const NA = "N/A"

// DateLayout is the short date form used in every report.
const DateLayout = "1/2/2006"

// Kind names a report.
type Kind string

const (
	KindProfiles  Kind = "profiles"
	KindHealth    Kind = "health"
	KindEducation Kind = "education"
	KindCases     Kind = "cases"
	KindSummary   Kind = "summary"
	KindBreakdown Kind = "breakdown"
	KindWarnings  Kind = "warnings"
)

// Kinds lists every report kind.
var Kinds = []Kind{KindProfiles, KindHealth, KindEducation, KindCases, KindSummary, KindBreakdown, KindWarnings}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Title is the document title for the kind.
func (k Kind) Title() string {
	switch k {
	case KindProfiles:
		return "Profiles Report"
	case KindHealth:
		return "Health Records Report"
	case KindEducation:
		return "Education Records Report"
	case KindCases:
		return "Case Records Report"
	case KindSummary:
		return "Summary Report"
	case KindBreakdown:
		return "Location Breakdown Report"
	case KindWarnings:
		return "Early Warning Report"
	default:
		return "Report"
	}
}

// Table is a rectangular set of display strings.
type Table struct {
	Columns []string
	Rows    [][]string
}

func text(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return NA
	}
	return *s
}

func number(n *int) string {
	if n == nil {
		return NA
	}
	return strconv.Itoa(*n)
}

// age treats 0 as unknown.
func age(n *int) string {
	if n == nil || *n <= 0 {
		return NA
	}
	return strconv.Itoa(*n)
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NA
	}
	return t.Format(DateLayout)
}

func flag(v string) string {
	if v == "" {
		return NA
	}
	return v
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func nameOf(names map[string]string, id string) string {
	if n := names[id]; n != "" {
		return n
	}
	return NA
}

// ProfilesTable lists profiles with their location and demographics.
func ProfilesTable(profiles []*database.Profile) *Table {
	t := &Table{Columns: []string{
		"Profile ID", "Name", "Age", "Region", "Province", "Municipality", "Barangay",
		"Civil Status", "Religion", "Contact Number", "Date Added",
	}}
	for _, p := range profiles {
		name := p.FullName()
		t.Rows = append(t.Rows, []string{
			p.ProfileID, text(&name), age(p.Age),
			text(p.Region), text(p.Province), text(p.Municipality), text(p.Barangay),
			text(p.CivilStatus), text(p.Religion), text(p.ContactNumber),
			date(&p.CreatedAt),
		})
	}
	return t
}

// HealthTable lists health records with the owning profile's name.
func HealthTable(records []*database.HealthRecord, names map[string]string) *Table {
	t := &Table{Columns: []string{
		"Profile ID", "Name", "Pregnancy Status", "No. of Pregnancies",
		"Stage of Pregnancy", "Medical History", "Date Recorded",
	}}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.ProfileID, nameOf(names, r.ProfileID),
			text(r.PregnancyStatus), number(r.NumOfPregnancies),
			text(r.StageOfPregnancy), text(r.MedicalHistory),
			date(&r.CreatedAt),
		})
	}
	return t
}

// EducationTable lists education records with the owning profile's name.
func EducationTable(records []*database.EducationRecord, names map[string]string) *Table {
	t := &Table{Columns: []string{
		"Profile ID", "Name", "Status", "Program", "Institution", "Enroll/Dropout Date",
	}}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.ProfileID, nameOf(names, r.ProfileID),
			text(r.Status), text(r.Program), text(r.Institution),
			date(r.EnrollDropoutDate),
		})
	}
	return t
}

// CasesTable lists case records. Received flags are shown as stored.
func CasesTable(records []*database.CaseRecord, names map[string]string) *Table {
	t := &Table{Columns: []string{
		"Case ID", "Profile ID", "Name",
		"Received GC", "GC Type", "GC Source", "GC Frequency",
		"Received FS", "FS Type", "FS Source", "FS Frequency",
	}}
	for _, c := range records {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(c.CaseID, 10), c.ProfileID, nameOf(names, c.ProfileID),
			flag(c.ReceivedGC), text(c.GCType), text(c.GCSource), text(c.GCFrequency),
			flag(c.ReceivedFS), text(c.FSType), text(c.FSSource), text(c.FSFrequency),
		})
	}
	return t
}

// SummaryTable lists the six statistics counters.
func SummaryTable(s *aggregation.Statistics) *Table {
	row := func(label string, n int) []string { return []string{label, strconv.Itoa(n)} }
	return &Table{
		Columns: []string{"Metric", "Count"},
		Rows: [][]string{
			row("Total Profiles", s.TotalProfiles),
			row("Health Records", s.TotalHealthRecords),
			row("Pregnant", s.PregnantCount),
			row("Education Records", s.TotalEducationRecords),
			row("Enrolled", s.EnrolledCount),
			row("Case Records", s.TotalCases),
		},
	}
}

// BreakdownTable lists breakdown groups followed by TOTAL.
func BreakdownTable(b *aggregation.Breakdown) *Table {
	t := &Table{Columns: []string{levelTitle(b.GroupBy), "Count", "Average Age", "Enrolled", "Dropout"}}
	for _, r := range b.Rows {
		t.Rows = append(t.Rows, []string{
			r.Location, strconv.Itoa(r.Count), r.AverageAge,
			strconv.Itoa(r.Enrolled), strconv.Itoa(r.Dropout),
		})
	}
	return t
}

// WarningsTable lists flagged profiles in evaluation order.
func WarningsTable(res *warning.Result) *Table {
	t := &Table{Columns: []string{
		"Profile ID", "Name", "Age", "Location", "Risk Level",
		"Repeated Pregnancy", "Pregnancies", "School Dropout",
	}}
	for _, c := range res.Cases {
		a := c.Age
		t.Rows = append(t.Rows, []string{
			c.ProfileID, text(&c.Name), age(&a), c.Location,
			strings.ToUpper(string(c.RiskLevel)),
			yesNo(c.RepeatedPregnancy), strconv.Itoa(c.PregnancyCount), yesNo(c.SchoolDropout),
		})
	}
	return t
}

// WarningNotes summarizes warning stats for the document header.
func WarningNotes(s warning.Stats) []string {
	return []string{
		"High Risk: " + strconv.Itoa(s.TotalHighRisk),
		"Repeated Pregnancy: " + strconv.Itoa(s.TotalRepeatedPregnancy),
		"School Dropout: " + strconv.Itoa(s.TotalDropouts),
	}
}

func levelTitle(l location.Level) string {
	s := string(l)
	if s == "" {
		return "Location"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
