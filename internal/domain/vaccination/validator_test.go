package vaccination

import (
	"errors"
	"testing"
	"time"
)

func TestValidate_Success(t *testing.T) {
	first := dose("208", StatusCompleted, DateOccurrence(day(2021, time.January, 1)))
	second := dose("207", StatusNotDone, DateOccurrence(day(2021, time.January, 29)))
	b := cardBundle(first, second)
	b.Entries = append(b.Entries, Entry{Key: "resource:9", Resource: OtherResource{Type: "Observation"}})

	patient, imms, err := Validate(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patient == nil || patient.DisplayName() != "John B. Anyperson" {
		t.Errorf("unexpected patient: %+v", patient)
	}
	if len(imms) != 2 {
		t.Fatalf("expected 2 immunizations, got %d", len(imms))
	}
	if imms[0].VaccineCode.Codings[0].Code != "208" || imms[1].VaccineCode.Codings[0].Code != "207" {
		t.Error("expected immunizations in bundle order")
	}
}

func TestValidate_PatientAfterImmunizations(t *testing.T) {
	b := Bundle{ResourceType: "Bundle", Type: "collection", Entries: []Entry{
		{Key: "resource:1", Resource: dose("212", StatusCompleted, DateOccurrence(day(2021, time.April, 1)))},
		{Key: "resource:0", Resource: testPatient()},
	}}
	if _, imms, err := Validate(b); err != nil || len(imms) != 1 {
		t.Errorf("expected success with 1 immunization, got %d, %v", len(imms), err)
	}
}

func TestValidate_NoImmunizations(t *testing.T) {
	patient, imms, err := Validate(cardBundle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patient == nil {
		t.Error("expected patient")
	}
	if len(imms) != 0 {
		t.Errorf("expected no immunizations, got %d", len(imms))
	}
}

func TestValidate_InvalidRootShape(t *testing.T) {
	tests := []Bundle{
		{ResourceType: "Bundle", Type: "searchset", Entries: cardBundle().Entries},
		{ResourceType: "Patient", Type: "collection"},
		{},
	}
	for _, b := range tests {
		_, imms, err := Validate(b)
		if !errors.Is(err, ErrInvalidRootShape) {
			t.Errorf("Validate(%s/%s) error = %v, want ErrInvalidRootShape", b.ResourceType, b.Type, err)
		}
		if imms != nil {
			t.Error("expected no immunizations on failure")
		}
	}
}

func TestValidate_MultiplePatients(t *testing.T) {
	b := cardBundle(dose("208", StatusCompleted, DateOccurrence(day(2021, time.January, 1))))
	b.Entries = append(b.Entries, Entry{Key: "resource:5", Resource: testPatient()})

	patient, imms, err := Validate(b)
	if !errors.Is(err, ErrMultiplePatients) {
		t.Fatalf("expected ErrMultiplePatients, got %v", err)
	}
	if patient != nil || imms != nil {
		t.Error("expected nothing returned on failure")
	}
}

func TestValidate_PatientMismatch(t *testing.T) {
	other := dose("208", StatusCompleted, DateOccurrence(day(2021, time.January, 22)))
	other.PatientRef = strPtr("resource:7")
	b := cardBundle(dose("208", StatusCompleted, DateOccurrence(day(2021, time.January, 1))), other)

	_, imms, err := Validate(b)
	if !errors.Is(err, ErrPatientMismatch) {
		t.Fatalf("expected ErrPatientMismatch, got %v", err)
	}
	if imms != nil {
		t.Error("expected no immunizations on failure")
	}
}

func TestValidate_MissingPatientReference(t *testing.T) {
	im := dose("212", StatusCompleted, DateOccurrence(day(2021, time.April, 1)))
	im.PatientRef = nil
	if _, _, err := Validate(cardBundle(im)); !errors.Is(err, ErrPatientMismatch) {
		t.Errorf("expected ErrPatientMismatch for a dose without a patient reference, got %v", err)
	}
}

func TestValidate_MissingPatient(t *testing.T) {
	b := Bundle{ResourceType: "Bundle", Type: "collection", Entries: []Entry{
		{Key: "resource:1", Resource: dose("212", StatusCompleted, DateOccurrence(day(2021, time.April, 1)))},
	}}
	if _, _, err := Validate(b); !errors.Is(err, ErrMissingPatient) {
		t.Errorf("expected ErrMissingPatient, got %v", err)
	}
}

func TestValidate_UndatedImmunizations(t *testing.T) {
	undated := cardBundle(
		dose("212", StatusCompleted, TextOccurrence("2021-03")),
		dose("212", StatusNotDone, Occurrence{}),
	)
	if _, _, err := Validate(undated); !errors.Is(err, ErrUndatedImmunizations) {
		t.Errorf("expected ErrUndatedImmunizations, got %v", err)
	}

	// One dated dose is enough to place the series on a calendar.
	mixed := cardBundle(
		dose("208", StatusCompleted, TextOccurrence("spring 2021")),
		dose("208", StatusCompleted, DateOccurrence(day(2021, time.April, 1))),
	)
	if _, imms, err := Validate(mixed); err != nil || len(imms) != 2 {
		t.Errorf("expected the mixed bundle to validate, got %d immunizations, err %v", len(imms), err)
	}
}

func TestIsValidationError(t *testing.T) {
	for _, err := range []error{ErrInvalidRootShape, ErrMultiplePatients, ErrPatientMismatch, ErrMissingPatient, ErrUndatedImmunizations} {
		if !IsValidationError(err) {
			t.Errorf("expected %v to be a validation error", err)
		}
	}
	if IsValidationError(ErrNoCredential) {
		t.Error("ErrNoCredential is not a validation error")
	}
}
