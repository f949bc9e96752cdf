package vaccination

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-sql/civil"
)

func strPtr(s string) *string { return &s }

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func cvx(code string) VaccineCode {
	return VaccineCode{Codings: []Coding{{System: CVXSystem, Code: code}}}
}

func dose(code string, status ImmunizationStatus, occ Occurrence) Immunization {
	return Immunization{
		VaccineCode: cvx(code),
		Occurrence:  occ,
		Status:      status,
		PatientRef:  strPtr("resource:0"),
	}
}

func testPatient() Patient {
	return Patient{Names: []HumanName{{Given: []string{"John", "B."}, Family: "Anyperson"}}}
}

// cardBundle builds a collection whose first entry is the patient at
// resource:0, followed by the given immunizations.
func cardBundle(imms ...Immunization) Bundle {
	entries := []Entry{{Key: "resource:0", Resource: testPatient()}}
	for i, im := range imms {
		entries = append(entries, Entry{Key: "resource:" + strconv.Itoa(i+1), Resource: im})
	}
	return Bundle{ResourceType: "Bundle", Type: "collection", Entries: entries}
}

type stubDecoder struct {
	cred  *Credential
	err   error
	calls int
}

func (d *stubDecoder) Decode(_ context.Context, raw string) (*Credential, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	cred := *d.cred
	cred.Raw = raw
	return &cred, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
