package types

import (
	"fmt"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

const (
	MinPatientAge = 1
	MaxPatientAge = 120
)

// PatientInput is the raw intake record as entered by the caller. It is
// immutable for the duration of a run.
type PatientInput struct {
	PatientID   string `json:"patient_id"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Gender      Gender `json:"gender"`
	RawSymptoms string `json:"symptoms"`
}

func (in PatientInput) Validate() error {
	if strings.TrimSpace(in.PatientID) == "" {
		return fmt.Errorf("patient_id must not be empty")
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if in.Age < MinPatientAge || in.Age > MaxPatientAge {
		return fmt.Errorf("age %d out of range [%d, %d]", in.Age, MinPatientAge, MaxPatientAge)
	}
	if !in.Gender.Valid() {
		return fmt.Errorf("gender %q is not one of male/female/other", in.Gender)
	}
	if strings.TrimSpace(in.RawSymptoms) == "" {
		return fmt.Errorf("symptoms must not be empty")
	}
	return nil
}

// StructuredPatient is the extraction stage output. Name, age and gender are
// copied verbatim from PatientInput; symptoms are standardized terms.
type StructuredPatient struct {
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	Gender   Gender   `json:"gender"`
	Symptoms []string `json:"symptoms"`
}

func (p StructuredPatient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if p.Age < MinPatientAge || p.Age > MaxPatientAge {
		return fmt.Errorf("age %d out of range [%d, %d]", p.Age, MinPatientAge, MaxPatientAge)
	}
	if !p.Gender.Valid() {
		return fmt.Errorf("gender %q is not one of male/female/other", p.Gender)
	}
	if len(p.Symptoms) == 0 {
		return fmt.Errorf("symptoms list must not be empty")
	}
	for i, s := range p.Symptoms {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symptom %d is empty", i)
		}
	}
	return nil
}
