package analysis

import (
	"bytes"
	"encoding/json"

	"github.com/inodb/pharmaguard/internal/explain"
)

// Result is the structured analysis for one (file, drug) pair.
type Result struct {
	PatientID               string                 `json:"patient_id"`
	Drug                    string                 `json:"drug"`
	PharmacogenomicProfile  Profile                `json:"pharmacogenomic_profile"`
	RiskAssessment          RiskAssessment         `json:"risk_assessment"`
	ClinicalRecommendation  ClinicalRecommendation `json:"clinical_recommendation"`
	QualityMetrics          QualityMetrics         `json:"quality_metrics"`
	LLMGeneratedExplanation ExplanationPayload     `json:"llm_generated_explanation"`
}

// Profile is the pharmacogenomic profile for the drug's primary gene.
type Profile struct {
	PrimaryGene      string            `json:"primary_gene"`
	Diplotype        string            `json:"diplotype"`
	Phenotype        string            `json:"phenotype"`
	DetectedVariants []DetectedVariant `json:"detected_variants"`
}

// DetectedVariant is a variant attributed to the primary gene.
type DetectedVariant struct {
	RsID string `json:"rsid"`
	Gene string `json:"gene"`
	Star string `json:"star"`
}

// RiskAssessment is the rule outcome.
type RiskAssessment struct {
	RiskLabel       string  `json:"risk_label"`
	Severity        string  `json:"severity"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ClinicalRecommendation holds the rule's recommendation texts.
type ClinicalRecommendation struct {
	Action           string `json:"action"`
	DosingAdjustment string `json:"dosing_adjustment"`
	Monitoring       string `json:"monitoring"`
}

// QualityMetrics summarizes the parse.
type QualityMetrics struct {
	VCFParsingSuccess bool     `json:"vcf_parsing_success"`
	VariantsDetected  int      `json:"variants_detected"`
	GenesAnalyzed     int      `json:"genes_analyzed"`
	ParseWarnings     []string `json:"parse_warnings"`
	VCFVersion        string   `json:"vcf_version"`
}

// ExplanationPayload serializes as {} when no explanation is available.
type ExplanationPayload struct {
	*explain.Explanation
}

// Present reports whether an explanation was merged.
func (e ExplanationPayload) Present() bool {
	return e.Explanation != nil
}

// MarshalJSON implements json.Marshaler.
func (e ExplanationPayload) MarshalJSON() ([]byte, error) {
	if e.Explanation == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Explanation)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExplanationPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
		e.Explanation = nil
		return nil
	}
	var exp explain.Explanation
	if err := json.Unmarshal(data, &exp); err != nil {
		return err
	}
	e.Explanation = &exp
	return nil
}

// GeneProfile is the inferred diplotype for one gene in a parse-only report.
type GeneProfile struct {
	Gene      string            `json:"gene"`
	Diplotype string            `json:"diplotype"`
	Phenotype string            `json:"phenotype"`
	Variants  []DetectedVariant `json:"variants"`
}

// ProfileReport is the parse-only view of an upload across all catalog genes.
type ProfileReport struct {
	PatientID           string            `json:"patient_id"`
	VCFVersion          string            `json:"vcf_version"`
	TotalLinesProcessed int               `json:"total_lines_processed"`
	VariantsParsed      int               `json:"variants_parsed"`
	TotalVariants       int               `json:"total_variants"`
	GenesFound          []string          `json:"genes_found"`
	Variants            []DetectedVariant `json:"variants"`
	Genes               []GeneProfile     `json:"genes"`
	ParseWarnings       []string          `json:"parse_warnings"`
}

// RiskReport is a direct gene/diplotype/drug rule evaluation.
type RiskReport struct {
	Gene             string  `json:"gene"`
	Diplotype        string  `json:"diplotype"`
	Phenotype        string  `json:"phenotype"`
	Drug             string  `json:"drug"`
	RiskLabel        string  `json:"risk_label"`
	Severity         string  `json:"severity"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Action           string  `json:"action"`
	DosingAdjustment string  `json:"dosing_adjustment"`
	Monitoring       string  `json:"monitoring"`
}
