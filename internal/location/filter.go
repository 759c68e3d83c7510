// Package location scopes record queries to one administrative level.
package location

import "strings"

// Level is an administrative level, from broadest to finest.
type Level string

const (
	All          Level = "all"
	Region       Level = "region"
	Province     Level = "province"
	Municipality Level = "municipality"
	Barangay     Level = "barangay"
)

// Filter narrows record sets to a region, province, municipality or
// barangay. The zero value matches everything.
type Filter struct {
	FilterType   Level  `json:"filterType" yaml:"filterType" form:"filterType"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty" form:"region"`
	Province     string `json:"province,omitempty" yaml:"province,omitempty" form:"province"`
	Municipality string `json:"municipality,omitempty" yaml:"municipality,omitempty" form:"municipality"`
	Barangay     string `json:"barangay,omitempty" yaml:"barangay,omitempty" form:"barangay"`
}

// Narrowing reports the profile column and value the filter restricts on.
// ok is false when the filter selects everything: type all, an unrecognized
// type, or a recognized type whose field is empty.
func (f Filter) Narrowing() (column, value string, ok bool) {
	switch f.FilterType {
	case Region:
		column, value = "region", f.Region
	case Province:
		column, value = "province", f.Province
	case Municipality:
		column, value = "municipality", f.Municipality
	case Barangay:
		column, value = "barangay", f.Barangay
	default:
		return "", "", false
	}
	if strings.TrimSpace(value) == "" {
		return "", "", false
	}
	return column, value, true
}

// Selected returns the value of the field named by FilterType ("" for all).
func (f Filter) Selected() string {
	_, v, _ := f.Narrowing()
	return v
}

// NextLevel maps a level to the finer level a breakdown groups by.
// Barangay has no finer level and All is too broad.
func NextLevel(l Level) (Level, bool) {
	switch l {
	case Region:
		return Province, true
	case Province:
		return Municipality, true
	case Municipality:
		return Barangay, true
	default:
		return "", false
	}
}

// Describe renders the filter for report headers.
func (f Filter) Describe() string {
	column, value, ok := f.Narrowing()
	if !ok {
		return "All Locations"
	}
	return strings.ToUpper(column[:1]) + column[1:] + ": " + value
}
