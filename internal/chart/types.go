// Package chart provides the core clinical types shared by MediScribe.
package chart

import "strings"

// Unknown is shown in place of any demographic field left blank.
const Unknown = "미상"

// Gender is the patient's recorded gender.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "남성"
	GenderFemale      Gender = "여성"
)

// Genders lists the selectable values in display order.
var Genders = []Gender{GenderUnspecified, GenderMale, GenderFemale}

// ParseGender maps free input to a Gender. Anything unrecognised is unspecified.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(GenderMale), "m", "male", "남":
		return GenderMale
	case string(GenderFemale), "f", "female", "여":
		return GenderFemale
	default:
		return GenderUnspecified
	}
}

// Next cycles to the following gender option.
func (g Gender) Next() Gender {
	for i, v := range Genders {
		if v == g {
			return Genders[(i+1)%len(Genders)]
		}
	}
	return GenderUnspecified
}

// Label returns the gender for display, falling back to Unknown.
func (g Gender) Label() string {
	if g == GenderUnspecified {
		return Unknown
	}
	return string(g)
}

// PatientField names an editable demographic field.
type PatientField string

const (
	FieldName   PatientField = "name"
	FieldAge    PatientField = "age"
	FieldGender PatientField = "gender"
)

// PatientInfo holds the free-text demographics for the current session.
// No validation is applied to any field.
type PatientInfo struct {
	Name   string `json:"name" yaml:"name"`
	Age    string `json:"age" yaml:"age"`
	Gender Gender `json:"gender" yaml:"gender"`
}

// NameOrUnknown returns the name or the Unknown placeholder.
func (p PatientInfo) NameOrUnknown() string { return orUnknown(p.Name) }

// AgeOrUnknown returns the age or the Unknown placeholder.
func (p PatientInfo) AgeOrUnknown() string { return orUnknown(p.Age) }

// GenderOrUnknown returns the gender or the Unknown placeholder.
func (p PatientInfo) GenderOrUnknown() string { return p.Gender.Label() }

// With returns a copy of p with field set to value.
func (p PatientInfo) With(field PatientField, value string) PatientInfo {
	switch field {
	case FieldName:
		p.Name = value
	case FieldAge:
		p.Age = value
	case FieldGender:
		p.Gender = ParseGender(value)
	}
	return p
}

// IsZero reports whether no demographic field has been filled in.
func (p PatientInfo) IsZero() bool {
	return p == PatientInfo{}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
