package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/pharmaguard/internal/analysis"
)

func codeineResult() *analysis.Result {
	return &analysis.Result{
		PatientID: "PATIENT_ABCDEF012345",
		Drug:      "CODEINE",
		PharmacogenomicProfile: analysis.Profile{
			PrimaryGene: "CYP2D6",
			Diplotype:   "*4/*4",
			Phenotype:   "PM",
			DetectedVariants: []analysis.DetectedVariant{
				{RsID: "rs3892097", Gene: "CYP2D6", Star: "*4"},
				{RsID: "pos_22_42126000", Gene: "CYP2D6"},
			},
		},
		RiskAssessment: analysis.RiskAssessment{
			RiskLabel:       "Toxic",
			Severity:        "Critical",
			ConfidenceScore: 0.92,
		},
		ClinicalRecommendation: analysis.ClinicalRecommendation{
			Action:           "Avoid Codeine",
			DosingAdjustment: "N/A; contraindicated",
		},
	}
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := buf.String()
	for _, col := range []string{"#Patient", "Drug", "Gene", "Diplotype", "Phenotype", "Risk", "Confidence"} {
		assert.Contains(t, header, col)
	}
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(codeineResult()))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, 11)
	assert.Equal(t, "PATIENT_ABCDEF012345", fields[0])
	assert.Equal(t, "CODEINE", fields[1])
	assert.Equal(t, "*4/*4", fields[3])
	assert.Equal(t, "Toxic", fields[5])
	assert.Equal(t, "0.92", fields[7])
	assert.Equal(t, "rs3892097(*4),pos_22_42126000", fields[10])
}

func TestTabWriter_Write_UnknownDrug(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(&analysis.Result{
		PatientID: "PATIENT_000000000000",
		Drug:      "ASPIRIN",
		PharmacogenomicProfile: analysis.Profile{
			PrimaryGene: "Unknown", Diplotype: "Unknown", Phenotype: "Unknown",
		},
		RiskAssessment: analysis.RiskAssessment{RiskLabel: "Unknown", Severity: "Unknown"},
	}))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	assert.Equal(t, "0.00", fields[7])
	assert.Equal(t, "-", fields[8])
	assert.Equal(t, "-", fields[10])
}

func TestTabWriter_WriteProfile(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteProfile(&analysis.ProfileReport{
		Genes: []analysis.GeneProfile{
			{Gene: "CYP2C19", Diplotype: "*2/*2", Phenotype: "PM", Variants: []analysis.DetectedVariant{{RsID: "rs4244285"}}},
			{Gene: "TPMT", Diplotype: "*1/*3A", Phenotype: "IM"},
		},
	}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#Gene\tDiplotype\tPhenotype\tVariants", lines[0])
	assert.Equal(t, "CYP2C19\t*2/*2\tPM\trs4244285", lines[1])
	assert.Equal(t, "TPMT\t*1/*3A\tIM\t-", lines[2])
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf, "").Write(codeineResult()))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, `"risk_label":"Toxic"`)
	assert.Contains(t, out, `"llm_generated_explanation":{}`)

	buf.Reset()
	require.NoError(t, NewJSONWriter(&buf, "  ").Write(map[string]string{"a": "<b>"}))
	assert.Equal(t, "{\n  \"a\": \"<b>\"\n}\n", buf.String())
}
