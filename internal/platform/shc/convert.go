package shc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-sql/civil"

	"github.com/vaxcheck/vaxcheck/internal/domain/vaccination"
	"github.com/vaxcheck/vaxcheck/internal/platform/fhir"
)

// ConvertBundle maps a FHIR Bundle onto the records the vaccination package
// classifies. The root shape is carried over unchecked; deciding whether it
// is acceptable is left to validation.
func ConvertBundle(raw json.RawMessage) (vaccination.Bundle, error) {
	if len(raw) == 0 {
		return vaccination.Bundle{}, ErrNotHealthCard
	}
	b, err := fhir.ParseBundle(raw)
	if err != nil {
		return vaccination.Bundle{}, err
	}

	out := vaccination.Bundle{
		ResourceType: b.ResourceType,
		Type:         b.Type,
		Entries:      make([]vaccination.Entry, 0, len(b.Entry)),
	}
	for i, e := range b.Entry {
		res, err := convertResource(e.Resource)
		if err != nil {
			return vaccination.Bundle{}, fmt.Errorf("entry %d: %w", i, err)
		}
		out.Entries = append(out.Entries, vaccination.Entry{Key: e.FullURL, Resource: res})
	}
	return out, nil
}

func convertResource(raw json.RawMessage) (vaccination.Resource, error) {
	switch rt := fhir.ResourceTypeOf(raw); rt {
	case fhir.ResourceTypeImmunization:
		var im fhir.Immunization
		if err := json.Unmarshal(raw, &im); err != nil {
			return nil, fmt.Errorf("decode Immunization: %w", err)
		}
		return convertImmunization(im), nil
	case fhir.ResourceTypePatient:
		var p fhir.Patient
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode Patient: %w", err)
		}
		return convertPatient(p), nil
	default:
		return vaccination.OtherResource{Type: rt}, nil
	}
}

func convertImmunization(im fhir.Immunization) vaccination.Immunization {
	out := vaccination.Immunization{
		VaccineCode: vaccination.VaccineCode{Text: im.VaccineCode.Text},
		Occurrence:  convertOccurrence(im),
		Status:      vaccination.ImmunizationStatus(im.Status),
	}
	for _, c := range im.VaccineCode.Coding {
		out.VaccineCode.Codings = append(out.VaccineCode.Codings, vaccination.Coding{System: c.System, Code: c.Code})
	}
	for _, p := range im.Performer {
		out.Performers = append(out.Performers, vaccination.Performer{Display: p.Actor.Display})
	}
	if im.LotNumber != "" {
		lot := im.LotNumber
		out.LotNumber = &lot
	}
	if im.Patient.Reference != "" {
		ref := im.Patient.Reference
		out.PatientRef = &ref
	}
	return out
}

// convertOccurrence reads occurrenceDateTime as a full date or an RFC 3339
// timestamp. Partial dates such as "2021-03" are kept as text.
func convertOccurrence(im fhir.Immunization) vaccination.Occurrence {
	if v := im.OccurrenceDateTime; v != "" {
		if d, err := civil.ParseDate(v); err == nil {
			return vaccination.DateOccurrence(d)
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return vaccination.DateTimeOccurrence(t)
		}
		return vaccination.TextOccurrence(v)
	}
	if im.OccurrenceString != "" {
		return vaccination.TextOccurrence(im.OccurrenceString)
	}
	return vaccination.Occurrence{}
}

func convertPatient(p fhir.Patient) vaccination.Patient {
	var out vaccination.Patient
	for _, n := range p.Name {
		out.Names = append(out.Names, vaccination.HumanName{Given: n.Given, Family: n.Family, Text: n.Text})
	}
	if d, err := civil.ParseDate(p.BirthDate); err == nil {
		out.BirthDate = &d
	}
	return out
}
