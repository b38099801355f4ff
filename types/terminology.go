package types

import (
	"io/ioutil"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"clinsight.com/cra/logger"
)

// Terminology maps colloquial phrasing onto standardized clinical terms. It is
// applied deterministically on top of model output, so a known phrase always
// lands on the same term regardless of what the model returned.
type Terminology struct {
	Symptoms   map[string]string `yaml:"symptoms"`
	Conditions map[string]string `yaml:"conditions"`
	Allergies  []string          `yaml:"allergy_markers"`
}

// DefaultTerminology covers the phrases the intake form sees most. Deployments
// extend it with YAML files, see LoadTerminology.
func DefaultTerminology() *Terminology {
	return &Terminology{
		Symptoms: map[string]string{
			"persistent cough":    "Chronic cough",
			"mild fever":          "Low-grade fever",
			"high fever":          "Pyrexia",
			"trouble breathing":   "Dyspnea",
			"shortness of breath": "Dyspnea",
			"runny nose":          "Rhinorrhea",
			"sore throat":         "Pharyngitis",
			"chest pain":          "Chest pain",
			"throwing up":         "Emesis",
			"stomach ache":        "Abdominal pain",
			"belly pain":          "Abdominal pain",
		},
		Conditions: map[string]string{
			"high blood pressure": "Hypertension",
			"hypertension":        "Hypertension",
			"sugar disease":       "Diabetes mellitus",
			"diabetes":            "Diabetes mellitus",
			"asthma":              "Asthma",
			"mild asthma":         "Asthma",
			"heart disease":       "Cardiovascular disease",
			"kidney disease":      "Chronic kidney disease",
		},
		Allergies: []string{
			"allergic to",
			"allergy to",
			"allergy:",
		},
	}
}

// LoadTerminology reads every *.yaml file in dirPath and merges it into the
// default dictionary. Later files win on conflicting keys.
func LoadTerminology(dirPath string) (*Terminology, error) {
	termsLogger := logger.NewLogger("LoadTerminology")
	terms := DefaultTerminology()

	files, err := ioutil.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}
		filePath := path.Join(dirPath, f.Name())
		buf, err := ioutil.ReadFile(filePath)
		if err != nil {
			termsLogger.Err(err).Str("file", filePath).Msg("Failed to read terminology file")
			return nil, err
		}
		var extra Terminology
		if err := yaml.Unmarshal(buf, &extra); err != nil {
			termsLogger.Err(err).Str("file", filePath).Msg("Failed to parse terminology file")
			return nil, err
		}
		for k, v := range extra.Symptoms {
			terms.Symptoms[strings.ToLower(k)] = v
		}
		for k, v := range extra.Conditions {
			terms.Conditions[strings.ToLower(k)] = v
		}
		terms.Allergies = append(terms.Allergies, extra.Allergies...)
	}
	termsLogger.Info().
		Int("symptoms", len(terms.Symptoms)).
		Int("conditions", len(terms.Conditions)).
		Msg("Loaded terminology")
	return terms, nil
}

var symptomDelimiters = regexp.MustCompile(`(?i)\s*(?:,|;|\band\b)\s*`)

// SplitSymptoms breaks a raw symptom line on natural delimiters.
func (t *Terminology) SplitSymptoms(raw string) []string {
	parts := symptomDelimiters.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeSymptom maps a phrase to its standardized term when one is known,
// otherwise the phrase passes through unchanged.
func (t *Terminology) NormalizeSymptom(phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if std, ok := t.Symptoms[strings.ToLower(phrase)]; ok {
		return std
	}
	return phrase
}

// RecognizeConditions scans free text for known chronic condition phrasing.
func (t *Terminology) RecognizeConditions(text string) []string {
	lowered := strings.ToLower(text)
	seen := make(map[string]bool)
	var out []string
	for phrase, std := range t.Conditions {
		if strings.Contains(lowered, phrase) && !seen[std] {
			seen[std] = true
			out = append(out, std)
		}
	}
	return out
}

// RecognizeAllergies pulls allergy mentions out of free text. The fragment
// after a marker up to the next sentence break is taken as the allergen.
// Markers match case-insensitively on the text itself; lowering a copy first
// shifts byte offsets for non-ASCII runes.
func (t *Terminology) RecognizeAllergies(text string) []string {
	var out []string
	for _, marker := range t.Allergies {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(marker))
		for _, loc := range re.FindAllStringIndex(text, -1) {
			rest := text[loc[1]:]
			if cut := strings.IndexAny(rest, ".,;\n("); cut >= 0 {
				rest = rest[:cut]
			}
			allergen := strings.TrimSpace(rest)
			if allergen != "" {
				out = append(out, capitalizeAllergen(allergen))
			}
		}
	}
	return out
}

func capitalizeAllergen(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
