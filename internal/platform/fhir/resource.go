package fhir

import "encoding/json"

// Resource types read from a health card.
const (
	ResourceTypeBundle       = "Bundle"
	ResourceTypePatient      = "Patient"
	ResourceTypeImmunization = "Immunization"
)

// Resource is the base FHIR resource representation.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
	Prefix []string `json:"prefix,omitempty"`
	Suffix []string `json:"suffix,omitempty"`
}

// Patient carries the Patient fields present in a health card bundle.
type Patient struct {
	Resource
	Name      []HumanName `json:"name,omitempty"`
	BirthDate string      `json:"birthDate,omitempty"`
}

// Immunization carries the Immunization fields present in a health card
// bundle. Only one of the occurrence[x] choices is expected to be set.
type Immunization struct {
	Resource
	Status             string                  `json:"status"`
	VaccineCode        CodeableConcept         `json:"vaccineCode"`
	Patient            Reference               `json:"patient"`
	OccurrenceDateTime string                  `json:"occurrenceDateTime,omitempty"`
	OccurrenceString   string                  `json:"occurrenceString,omitempty"`
	Performer          []ImmunizationPerformer `json:"performer,omitempty"`
	LotNumber          string                  `json:"lotNumber,omitempty"`
}

type ImmunizationPerformer struct {
	Actor Reference `json:"actor"`
}

// ResourceTypeOf returns the resourceType of a raw resource, or "" when the
// payload is not a JSON object with a resourceType.
func ResourceTypeOf(raw json.RawMessage) string {
	var r Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return ""
	}
	return r.ResourceType
}
