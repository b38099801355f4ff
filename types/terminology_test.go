package types

import (
	"io/ioutil"
	"path"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitSymptoms(t *testing.T) {
	terms := DefaultTerminology()
	cases := map[string][]string{
		"persistent cough and mild fever":        {"persistent cough", "mild fever"},
		"chest pain, trouble breathing":          {"chest pain", "trouble breathing"},
		"sore throat; runny nose and high fever": {"sore throat", "runny nose", "high fever"},
		"headache":                               {"headache"},
	}
	for raw, want := range cases {
		if diff := cmp.Diff(want, terms.SplitSymptoms(raw)); diff != "" {
			t.Errorf("SplitSymptoms(%q) mismatch (-want +got):\n%s", raw, diff)
		}
	}
}

func TestNormalizeSymptom(t *testing.T) {
	terms := DefaultTerminology()
	if got := terms.NormalizeSymptom("Persistent Cough"); got != "Chronic cough" {
		t.Errorf("NormalizeSymptom = %q, want Chronic cough", got)
	}
	if got := terms.NormalizeSymptom("left ear itching"); got != "left ear itching" {
		t.Errorf("unknown phrase must pass through, got %q", got)
	}
}

func TestRecognizeConditions(t *testing.T) {
	terms := DefaultTerminology()
	got := terms.RecognizeConditions("Patient has high blood pressure and mild asthma.")
	want := map[string]bool{"Hypertension": true, "Asthma": true}
	if len(got) != len(want) {
		t.Fatalf("RecognizeConditions = %v, want %v", got, want)
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected condition %q", c)
		}
	}
}

func TestRecognizeAllergies(t *testing.T) {
	terms := DefaultTerminology()
	got := terms.RecognizeAllergies("Allergic to penicillin. Also noted allergy to shellfish, see chart.")
	want := map[string]bool{"Penicillin": true, "Shellfish": true}
	if len(got) != len(want) {
		t.Fatalf("RecognizeAllergies = %v, want %v", got, want)
	}
	for _, a := range got {
		if !want[a] {
			t.Errorf("unexpected allergen %q", a)
		}
	}
}

func TestRecognizeAllergiesInNonASCIIText(t *testing.T) {
	terms := DefaultTerminology()
	// Case folding changes byte lengths for these runes; marker offsets must
	// still land on the marker, not inside it or past the end of the text.
	cases := map[string][]string{
		strings.Repeat("Ⱥ", 40) + " allergy:shellfish":  {"Shellfish"},
		"İİİİİİİİİİ allergic to penicillin. No others.": {"Penicillin"},
		"Notes: ALLERGIC TO latex.":                     {"Latex"},
	}
	for text, want := range cases {
		if diff := cmp.Diff(want, terms.RecognizeAllergies(text)); diff != "" {
			t.Errorf("RecognizeAllergies(%q) mismatch (-want +got):\n%s", text, diff)
		}
	}
}

func TestLoadTerminologyMergesFiles(t *testing.T) {
	dir := t.TempDir()
	extra := []byte(`
symptoms:
  "ringing ears": "Tinnitus"
  "persistent cough": "Protracted cough"
conditions:
  "thyroid trouble": "Thyroid disorder"
`)
	if err := ioutil.WriteFile(path.Join(dir, "extra.yaml"), extra, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path.Join(dir, "ignored.txt"), []byte("not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	terms, err := LoadTerminology(dir)
	if err != nil {
		t.Fatalf("LoadTerminology returned error: %v", err)
	}
	if got := terms.NormalizeSymptom("ringing ears"); got != "Tinnitus" {
		t.Errorf("merged symptom = %q, want Tinnitus", got)
	}
	// Later files win over the defaults.
	if got := terms.NormalizeSymptom("persistent cough"); got != "Protracted cough" {
		t.Errorf("overridden symptom = %q, want Protracted cough", got)
	}
	if got := terms.RecognizeConditions("known thyroid trouble"); len(got) != 1 || got[0] != "Thyroid disorder" {
		t.Errorf("merged condition = %v", got)
	}
}
