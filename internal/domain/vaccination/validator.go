package vaccination

import (
	"fmt"

	"github.com/vaxcheck/vaxcheck/internal/platform/fhir"
)

// Validate extracts the single patient and the ordered immunizations from a
// bundle and checks that every immunization refers to that patient and that at
// least one of them can be placed on a calendar. Nothing is returned on
// failure.
func Validate(b Bundle) (*Patient, []Immunization, error) {
	if b.ResourceType != fhir.ResourceTypeBundle || b.Type != fhir.BundleTypeCollection {
		return nil, nil, fmt.Errorf("%w: got %s/%s", ErrInvalidRootShape, b.ResourceType, b.Type)
	}

	var (
		patient    *Patient
		patientKey string
		imms       []Immunization
	)
	for _, entry := range b.Entries {
		switch r := entry.Resource.(type) {
		case Immunization:
			imms = append(imms, r)
		case Patient:
			if patient != nil {
				return nil, nil, fmt.Errorf("%w: %s and %s", ErrMultiplePatients, patientKey, entry.Key)
			}
			p := r
			patient = &p
			patientKey = entry.Key
		case OtherResource:
		default:
			// nil or unexpected entries play no part in classification.
		}
	}

	if patient == nil {
		return nil, nil, ErrMissingPatient
	}
	for i, im := range imms {
		if im.PatientRef == nil {
			return nil, nil, fmt.Errorf("%w: immunization %d has no patient reference", ErrPatientMismatch, i)
		}
		if *im.PatientRef != patientKey {
			return nil, nil, fmt.Errorf("%w: immunization %d refers to %q, patient is %q", ErrPatientMismatch, i, *im.PatientRef, patientKey)
		}
	}
	if len(imms) > 0 {
		if _, ok := LatestDate(imms); !ok {
			return nil, nil, fmt.Errorf("%w: %d immunizations", ErrUndatedImmunizations, len(imms))
		}
	}
	return patient, imms, nil
}
