package vaccination

import (
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// CVXSystem is the coding system for CDC vaccine administered codes.
const CVXSystem = "http://hl7.org/fhir/sid/cvx"

// Coding identifies a clinical concept. Two codings are equal when both the
// system and the code match.
type Coding struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

func (c Coding) String() string {
	if c.System == CVXSystem {
		if name, ok := cvxNames[c.Code]; ok {
			return name
		}
		return "CVX " + c.Code
	}
	return c.System + "|" + c.Code
}

// cvxNames covers the COVID-19 products most commonly seen on health cards.
var cvxNames = map[string]string{
	"207": "Moderna COVID-19",
	"208": "Pfizer-BioNTech COVID-19",
	"210": "AstraZeneca COVID-19",
	"211": "Novavax COVID-19",
	"212": "Janssen COVID-19",
	"213": "COVID-19, unspecified",
	"217": "Pfizer-BioNTech COVID-19 (tris-sucrose)",
	"218": "Pfizer-BioNTech COVID-19 (pediatric)",
}

// VaccineCode describes the product given in one immunization.
type VaccineCode struct {
	Codings []Coding `json:"codings"`
	Text    string   `json:"text,omitempty"`
}

func (v VaccineCode) String() string {
	if v.Text != "" {
		return v.Text
	}
	if len(v.Codings) == 0 {
		return "UNKNOWN"
	}
	parts := make([]string, len(v.Codings))
	for i, c := range v.Codings {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// OccurrenceKind tags the shape of an Occurrence.
type OccurrenceKind int

const (
	OccurrenceNone OccurrenceKind = iota
	OccurrenceDate
	OccurrenceDateTime
	OccurrenceText
)

// Occurrence is when a dose was administered, known to the day or to the
// instant. Text occurrences carry free-form values that cannot be placed on a
// calendar.
type Occurrence struct {
	kind    OccurrenceKind
	date    civil.Date
	instant time.Time
	text    string
}

func DateOccurrence(d civil.Date) Occurrence {
	return Occurrence{kind: OccurrenceDate, date: d}
}

// DateTimeOccurrence keeps the instant in its own location; the calendar date
// is taken in that location.
func DateTimeOccurrence(t time.Time) Occurrence {
	return Occurrence{kind: OccurrenceDateTime, instant: t}
}

func TextOccurrence(s string) Occurrence {
	return Occurrence{kind: OccurrenceText, text: s}
}

func (o Occurrence) Kind() OccurrenceKind { return o.kind }

func (o Occurrence) String() string {
	switch o.kind {
	case OccurrenceDate:
		return o.date.String()
	case OccurrenceDateTime:
		return o.instant.Format(time.RFC3339)
	case OccurrenceText:
		return o.text
	default:
		return "UNKNOWN"
	}
}

// ImmunizationStatus is the FHIR Immunization.status code.
type ImmunizationStatus string

const (
	StatusCompleted      ImmunizationStatus = "completed"
	StatusNotDone        ImmunizationStatus = "not-done"
	StatusEnteredInError ImmunizationStatus = "entered-in-error"
)

// Performer is whoever administered a dose, as displayed on the card.
type Performer struct {
	Display string `json:"display"`
}

func (p Performer) String() string { return p.Display }

// Immunization is one dose record taken from the bundle.
type Immunization struct {
	VaccineCode VaccineCode
	Occurrence  Occurrence
	Performers  []Performer
	LotNumber   *string
	Status      ImmunizationStatus
	PatientRef  *string
}

// Completed reports whether the dose counts toward vaccination status.
func (im Immunization) Completed() bool {
	return im.Status == StatusCompleted
}

// Provider joins the performer names, or returns UNKNOWN when there are none.
func (im Immunization) Provider() string {
	if len(im.Performers) == 0 {
		return unknownValue
	}
	names := make([]string, len(im.Performers))
	for i, p := range im.Performers {
		names[i] = p.String()
	}
	return strings.Join(names, "; ")
}

// Lot returns the lot number, or UNKNOWN when it was not recorded.
func (im Immunization) Lot() string {
	if im.LotNumber == nil {
		return unknownValue
	}
	return *im.LotNumber
}

const unknownValue = "UNKNOWN"

type HumanName struct {
	Given  []string `json:"given,omitempty"`
	Family string   `json:"family,omitempty"`
	Text   string   `json:"text,omitempty"`
}

func (n HumanName) String() string {
	if n.Text != "" {
		return n.Text
	}
	parts := append([]string{}, n.Given...)
	if n.Family != "" {
		parts = append(parts, n.Family)
	}
	return strings.Join(parts, " ")
}

type Patient struct {
	Names     []HumanName
	BirthDate *civil.Date
}

// DisplayName joins every recorded name with "; ".
func (p Patient) DisplayName() string {
	names := make([]string, len(p.Names))
	for i, n := range p.Names {
		names[i] = n.String()
	}
	return strings.Join(names, "; ")
}

// Issuer identifies the authority that signed a credential.
type Issuer struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

func (i Issuer) Display() string {
	if i.Name != "" {
		return i.Name
	}
	return i.URL
}

// Resource is the closed set of bundle entries the validator distinguishes.
// Implemented by Immunization, Patient and OtherResource only.
type Resource interface {
	resource()
}

func (Immunization) resource()  {}
func (Patient) resource()       {}
func (OtherResource) resource() {}

// OtherResource is any entry that plays no part in classification.
type OtherResource struct {
	Type string
}

// Entry is one keyed bundle entry; Key is the entry's fullUrl.
type Entry struct {
	Key      string
	Resource Resource
}

// Bundle is the decoded resource collection carried by a credential.
type Bundle struct {
	ResourceType string
	Type         string
	Entries      []Entry
}

// Credential is what the decoder hands over after verifying a raw credential.
type Credential struct {
	Bundle Bundle
	Issuer Issuer
	KeyID  *string
	Raw    string
}

// Color is the verdict traffic light.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

// StatusVerdict is the overall vaccination status shown to the user.
type StatusVerdict struct {
	Color   Color  `json:"color"`
	Message string `json:"message"`
}

// DoseDetail is the display row for one immunization.
type DoseDetail struct {
	Mark     Color  `json:"mark"`
	Code     string `json:"code"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Lot      string `json:"lot"`
}
