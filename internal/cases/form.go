package cases

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
)

const (
	Yes = "Yes"
	No  = "No"
)

// Form is the editable state of a case record. ReceivedGC and ReceivedFS
// each gate three dependent fields.
type Form struct {
	ProfileID   string `json:"profileid" validate:"required"`
	ReceivedGC  string `json:"received_gc" validate:"oneof=Yes No"`
	GCType      string `json:"gc_type" validate:"max=100"`
	GCSource    string `json:"gc_source" validate:"max=100"`
	GCFrequency string `json:"gc_frequency" validate:"max=100"`
	ReceivedFS  string `json:"received_fs" validate:"oneof=Yes No"`
	FSType      string `json:"fs_type" validate:"max=100"`
	FSSource    string `json:"fs_source" validate:"max=100"`
	FSFrequency string `json:"fs_frequency" validate:"max=100"`
}

// NewForm returns a blank form for profileID with both tracks at No.
func NewForm(profileID string) Form {
	return Form{ProfileID: profileID, ReceivedGC: No, ReceivedFS: No}
}

// SetReceivedGC moves the GC track to v. Yes to No clears the GC fields.
func (f *Form) SetReceivedGC(v string) {
	if f.ReceivedGC == Yes && v == No {
		f.GCType, f.GCSource, f.GCFrequency = "", "", ""
	}
	f.ReceivedGC = v
}

// SetReceivedFS moves the FS track to v. Yes to No clears the FS fields.
func (f *Form) SetReceivedFS(v string) {
	if f.ReceivedFS == Yes && v == No {
		f.FSType, f.FSSource, f.FSFrequency = "", "", ""
	}
	f.ReceivedFS = v
}

// Apply copies the service fields of in onto f, then moves both tracks
// through their transitions so a flip to No wins over stale field values.
func (f *Form) Apply(in Form) {
	f.GCType, f.GCSource, f.GCFrequency = in.GCType, in.GCSource, in.GCFrequency
	f.FSType, f.FSSource, f.FSFrequency = in.FSType, in.FSSource, in.FSFrequency
	f.SetReceivedGC(in.ReceivedGC)
	f.SetReceivedFS(in.ReceivedFS)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the form before any store call.
func (f *Form) Validate() error {
	const op = "case form"

	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperror.Validation(op, "invalid case form")
	}
	fe := ve[0]
	switch {
	case fe.Field() == "profileid":
		return apperror.Validation(op, "select a profile before saving")
	case fe.Tag() == "oneof":
		return apperror.Validation(op, fmt.Sprintf("%s must be Yes or No", fe.Field()))
	default:
		return apperror.Validation(op, fmt.Sprintf("%s is too long", fe.Field()))
	}
}

// FormFromRecord loads a stored case into a form.
func FormFromRecord(c *database.CaseRecord) Form {
	return Form{
		ProfileID:   c.ProfileID,
		ReceivedGC:  c.ReceivedGC,
		GCType:      deref(c.GCType),
		GCSource:    deref(c.GCSource),
		GCFrequency: deref(c.GCFrequency),
		ReceivedFS:  c.ReceivedFS,
		FSType:      deref(c.FSType),
		FSSource:    deref(c.FSSource),
		FSFrequency: deref(c.FSFrequency),
	}
}

// Record converts the form into a storable case. Empty fields become NULL,
// and a track at No stores none of its fields.
func (f *Form) Record(caseID int64) *database.CaseRecord {
	rec := &database.CaseRecord{
		CaseID:      caseID,
		ProfileID:   f.ProfileID,
		ReceivedGC:  f.ReceivedGC,
		GCType:      optional(f.GCType),
		GCSource:    optional(f.GCSource),
		GCFrequency: optional(f.GCFrequency),
		ReceivedFS:  f.ReceivedFS,
		FSType:      optional(f.FSType),
		FSSource:    optional(f.FSSource),
		FSFrequency: optional(f.FSFrequency),
	}
	if rec.ReceivedGC != Yes {
		rec.GCType, rec.GCSource, rec.GCFrequency = nil, nil, nil
	}
	if rec.ReceivedFS != Yes {
		rec.FSType, rec.FSSource, rec.FSFrequency = nil, nil, nil
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
