package chart

import (
	"fmt"
	"strings"
)

// ExportText builds the block copied to the clipboard: a patient header
// followed by the generated chart.
func ExportText(p PatientInfo, chartText string) string {
	var sb strings.Builder
	sb.WriteString("[환자 정보]\n")
	sb.WriteString(fmt.Sprintf("성함: %s\n", p.NameOrUnknown()))
	sb.WriteString(fmt.Sprintf("나이: %s\n", p.AgeOrUnknown()))
	sb.WriteString(fmt.Sprintf("성별: %s\n", p.GenderOrUnknown()))
	sb.WriteString("\n")
	sb.WriteString(chartText)
	return sb.String()
}

// Summary is the one-line "name / age세 / gender" label shown above a chart.
func Summary(p PatientInfo) string {
	age := p.Age
	if age == "" {
		age = "?"
	}
	gender := string(p.Gender)
	if gender == "" {
		gender = "미기재"
	}
	return fmt.Sprintf("%s / %s세 / %s", p.NameOrUnknown(), age, gender)
}
