package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const (
	TableProfiles         = "profiles"
	TableHealthRecords    = "health_records"
	TableEducationRecords = "education_records"
	TableCaseRecords      = "case_records"
)

// Column names shared by queries outside this package.
const (
	ColProfileID       = "profileid"
	ColCaseID          = "caseid"
	ColPregnancyStatus = "pregnancy_status"
	ColStatus          = "status"
	ColCreatedAt       = "created_at"
)

const (
	PregnancyStatusPregnant = "Pregnant"
	EducationStatusEnrolled = "Enrolled"
	EducationStatusDropout  = "Dropout"
)

// Profile is a tracked individual.
type Profile struct {
	ProfileID     string
	FirstName     *string
	MiddleName    *string
	LastName      *string
	Age           *int
	Region        *string
	Province      *string
	Municipality  *string
	Barangay      *string
	CivilStatus   *string
	Religion      *string
	ContactNumber *string
	CreatedAt     time.Time
}

// HealthRecord belongs to one profile; a profile may have many.
type HealthRecord struct {
	ID               int64
	ProfileID        string
	PregnancyStatus  *string
	NumOfPregnancies *int
	StageOfPregnancy *string
	MedicalHistory   *string
	CreatedAt        time.Time
}

// EducationRecord belongs to one profile.
type EducationRecord struct {
	ID                int64
	ProfileID         string
	Status            *string
	Program           *string
	Institution       *string
	EnrollDropoutDate *time.Time
	CreatedAt         time.Time
}

// CaseRecord tracks guidance-counseling (GC) and family-support (FS) services.
// ReceivedGC and ReceivedFS hold the literal strings "Yes" or "No".
type CaseRecord struct {
	CaseID      int64
	ProfileID   string
	ReceivedGC  string
	GCType      *string
	GCSource    *string
	GCFrequency *string
	ReceivedFS  string
	FSType      *string
	FSSource    *string
	FSFrequency *string
	CreatedAt   time.Time
}

var (
	profileColumns = []string{
		"profileid", "first_name", "middle_name", "last_name", "age",
		"region", "province", "municipality", "barangay",
		"civil_status", "religion", "contact_number", "created_at",
	}
	healthColumns = []string{
		"id", "profileid", "pregnancy_status", "num_of_pregnancies",
		"stage_of_pregnancy", "medical_history", "created_at",
	}
	educationColumns = []string{
		"id", "profileid", "status", "program", "institution",
		"enroll_dropout_date", "created_at",
	}
	caseColumns = []string{
		"caseid", "profileid",
		"received_gc", "gc_type", "gc_source", "gc_frequency",
		"received_fs", "fs_type", "fs_source", "fs_frequency",
		"created_at",
	}
)

// FullName joins the non-empty name parts.
func (p *Profile) FullName() string {
	name := ""
	for _, part := range []*string{p.FirstName, p.MiddleName, p.LastName} {
		if part == nil || *part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += *part
	}
	return name
}

// LocationValue returns the profile's value for a location column.
func (p *Profile) LocationValue(column string) string {
	var v *string
	switch column {
	case "region":
		v = p.Region
	case "province":
		v = p.Province
	case "municipality":
		v = p.Municipality
	case "barangay":
		v = p.Barangay
	}
	if v == nil {
		return ""
	}
	return *v
}

// timeValue scans timestamps from drivers that return time.Time (lib/pq) or
// text (SQLite without a typed column).
type timeValue struct {
	t     *time.Time
	valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (v *timeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		v.valid = false
		return nil
	case time.Time:
		*v.t = s
		v.valid = true
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t
			v.valid = true
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

// dateArg binds an optional date as a driver value.
func dateArg(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}
