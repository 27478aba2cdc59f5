package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/pharmaguard/internal/knowledge"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return NewEngine(kb)
}

func TestAssess_Scenarios(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name      string
		drug      string
		gene      string
		phenotype knowledge.Phenotype
		label     knowledge.RiskLabel
		severity  knowledge.Severity
	}{
		{"codeine poor metabolizer", "CODEINE", "CYP2D6", knowledge.PhenotypePoorMetabolizer, knowledge.RiskToxic, knowledge.SeverityCritical},
		{"codeine lower case", "  codeine ", "CYP2D6", knowledge.PhenotypePoorMetabolizer, knowledge.RiskToxic, knowledge.SeverityCritical},
		{"warfarin intermediate", "WARFARIN", "CYP2C9", knowledge.PhenotypeIntermediateMetabolizer, knowledge.RiskAdjustDosage, knowledge.SeverityHigh},
		{"clopidogrel poor", "Clopidogrel", "CYP2C19", knowledge.PhenotypePoorMetabolizer, knowledge.RiskIneffective, knowledge.SeverityHigh},
		{"simvastatin poor function", "SIMVASTATIN", "SLCO1B1", knowledge.PhenotypePoorFunction, knowledge.RiskToxic, knowledge.SeverityCritical},
		{"5-FU alias", "5-fu", "DPYD", knowledge.PhenotypeNormalMetabolizer, knowledge.RiskSafe, knowledge.SeverityLow},
		{"tramadol poor", "TRAMADOL", "CYP2D6", knowledge.PhenotypePoorMetabolizer, knowledge.RiskIneffective, knowledge.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Assess(tt.drug, tt.gene, knowledge.Found(tt.phenotype))
			assert.True(t, a.Matched)
			assert.Equal(t, tt.label, a.RiskLabel)
			assert.Equal(t, tt.severity, a.Severity)
			assert.Greater(t, a.Confidence, 0.0)
			assert.NotEmpty(t, a.Action)
		})
	}
}

func TestAssess_StoredValuesVerbatim(t *testing.T) {
	e := newEngine(t)
	a := e.Assess("WARFARIN", "CYP2C9", knowledge.Found(knowledge.PhenotypeIntermediateMetabolizer))

	assert.InDelta(t, 0.90, a.Confidence, 1e-9)
	assert.Equal(t, "Reduce warfarin dose", a.Action)
	assert.Equal(t, "Reduce initial dose by 25-50%", a.DosingAdjustment)
	assert.Equal(t, "Frequent INR monitoring; target INR 2.0-3.0", a.Monitoring)
}

func TestAssess_UnknownNeverSafe(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name      string
		drug      string
		gene      string
		phenotype knowledge.Maybe[knowledge.Phenotype]
	}{
		{"unmapped drug", "ASPIRIN", "CYP2D6", knowledge.Found(knowledge.PhenotypeNormalMetabolizer)},
		{"unknown phenotype", "CODEINE", "CYP2D6", knowledge.Unknown[knowledge.Phenotype]()},
		{"phenotype without rule", "WARFARIN", "CYP2C9", knowledge.Found(knowledge.PhenotypeUltraRapidMetabolizer)},
		{"wrong gene for drug", "CODEINE", "CYP2C9", knowledge.Found(knowledge.PhenotypePoorMetabolizer)},
		{"unknown gene", "CODEINE", "NAT2", knowledge.Found(knowledge.PhenotypePoorMetabolizer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Assess(tt.drug, tt.gene, tt.phenotype)
			assert.False(t, a.Matched)
			assert.Equal(t, knowledge.RiskUnknown, a.RiskLabel)
			assert.NotEqual(t, knowledge.RiskSafe, a.RiskLabel)
			assert.Equal(t, knowledge.SeverityUnknown, a.Severity)
			assert.Equal(t, 0.0, a.Confidence)
			assert.Equal(t, InsufficientDataAction, a.Action)
		})
	}
}

func TestEngine_Drugs(t *testing.T) {
	e := newEngine(t)

	assert.Contains(t, e.SupportedDrugs(), "CODEINE")
	assert.Equal(t, "CYP2D6", e.GeneForDrug("tramadol").OrElse(""))
	assert.False(t, e.GeneForDrug("ASPIRIN").IsKnown())
	assert.Equal(t, "FLUOROURACIL", e.CanonicalDrug(" 5-fu"))
	assert.Equal(t, "ASPIRIN", e.CanonicalDrug("aspirin "))
	assert.Equal(t, "SLCO1B1", e.GeneDrugMap()["SIMVASTATIN"])
}
