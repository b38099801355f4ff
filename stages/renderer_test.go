package stages

import (
	"context"
	"fmt"
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clinsight.com/cra/types"
)

func testAssessment() types.ClinicalAssessment {
	return types.ClinicalAssessment{
		PatientSummary: types.PatientSummary{
			Name:                  "Jane Doe",
			Age:                   34,
			Gender:                types.GenderFemale,
			CurrentSymptoms:       []string{"Chronic cough", "Low-grade fever"},
			MedicalHistorySummary: []string{"Diagnosed with mild asthma"},
		},
		Assessment: types.AssessmentDetails{
			SymptomAnalysis:    "Cough with low-grade fever in an asthmatic patient",
			PotentialDiagnoses: []string{"Possible bronchitis"},
			RiskFactors:        []string{"Asthma"},
			Severity:           types.SeverityModerate,
			Urgency:            types.UrgencyRoutine,
		},
		Recommendations: types.Recommendations{
			ImmediateActions: []string{"Rest & fluids"},
			FollowUpCare:     []string{"See GP within a week"},
			AdditionalTests:  []string{"Chest X-ray"},
			Precautions:      []string{"Avoid cold air"},
		},
	}
}

func reportCovering(assessment types.ClinicalAssessment) string {
	var b strings.Builder
	b.WriteString("<html><head><style>body{font-family:sans-serif}</style></head><body>")
	for _, list := range assessment.Lists() {
		for _, item := range list {
			b.WriteString(fmt.Sprintf("<li>%s</li>", html.EscapeString(item)))
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestRenderUnwrapsMarkdownFences(t *testing.T) {
	assessment := testAssessment()
	document := reportCovering(assessment)
	client := &llmMock{responses: []string{"```html\n" + document + "\n```"}}
	renderer := NewRenderer(client)

	report, err := renderer.Render(context.Background(), assessment)
	require.NoError(t, err)
	require.Equal(t, document, report)
}

func TestRenderAcceptsEscapedEntries(t *testing.T) {
	// "Rest & fluids" appears only as "Rest &amp; fluids" in the document.
	assessment := testAssessment()
	client := &llmMock{responses: []string{reportCovering(assessment)}}
	renderer := NewRenderer(client)

	report, err := renderer.Render(context.Background(), assessment)
	require.NoError(t, err)
	require.Contains(t, report, html.EscapeString("Rest & fluids"))
}

func TestRenderRejectsTruncatedReport(t *testing.T) {
	assessment := testAssessment()
	truncated := strings.Replace(reportCovering(assessment), "<li>Chest X-ray</li>", "", 1)
	client := &llmMock{responses: []string{truncated}}
	renderer := NewRenderer(client)

	_, err := renderer.Render(context.Background(), assessment)
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "Report", schemaErr.Schema)
	require.Contains(t, schemaErr.Err.Error(), "Chest X-ray")
}

func TestRenderRejectsExternalStylesheet(t *testing.T) {
	assessment := testAssessment()
	document := strings.Replace(
		reportCovering(assessment),
		"<head>",
		`<head><link rel="stylesheet" href="https://cdn.example.com/report.css">`,
		1,
	)
	client := &llmMock{responses: []string{document}}
	renderer := NewRenderer(client)

	_, err := renderer.Render(context.Background(), assessment)
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestRenderRejectsNonHTMLOutput(t *testing.T) {
	client := &llmMock{responses: []string{"Here is your report: everything looks fine."}}
	renderer := NewRenderer(client)

	_, err := renderer.Render(context.Background(), testAssessment())
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestExtractHTML(t *testing.T) {
	document := "<html><body>ok</body></html>"
	require.Equal(t, document, ExtractHTML(document))
	require.Equal(t, document, ExtractHTML("```html\n"+document+"\n```"))
	require.Equal(t, document, ExtractHTML("```\n"+document+"\n```"))
}
