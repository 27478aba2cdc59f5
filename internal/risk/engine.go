// Package risk evaluates gene-drug-phenotype rules.
package risk

import (
	"go.uber.org/zap"

	"github.com/inodb/pharmaguard/internal/knowledge"
)

// Recommendation texts used when no rule applies.
const (
	InsufficientDataAction = "Insufficient data for this gene-drug-phenotype combination; consult a specialist"
	NoGuidelineDosing      = "No guideline available for this combination"
	StandardMonitoring     = "Standard monitoring recommended"
)

// Assessment is the outcome of a rule lookup.
type Assessment struct {
	Gene             string
	Drug             string
	Phenotype        knowledge.Phenotype
	RiskLabel        knowledge.RiskLabel
	Severity         knowledge.Severity
	Confidence       float64
	Action           string
	DosingAdjustment string
	Monitoring       string
	// Matched is false when the result is the Unknown default.
	Matched bool
}

// UnknownAssessment is the safety default for a knowledge-base miss.
// Absence of data is never reported as Safe.
func UnknownAssessment(gene, drug string, phenotype knowledge.Phenotype) Assessment {
	return Assessment{
		Gene:             gene,
		Drug:             drug,
		Phenotype:        phenotype,
		RiskLabel:        knowledge.RiskUnknown,
		Severity:         knowledge.SeverityUnknown,
		Confidence:       0,
		Action:           InsufficientDataAction,
		DosingAdjustment: NoGuidelineDosing,
		Monitoring:       StandardMonitoring,
	}
}

// Engine looks up risk rules. It holds no mutable state.
type Engine struct {
	kb     *knowledge.Base
	logger *zap.Logger
}

// NewEngine creates a rule engine backed by the knowledge base.
func NewEngine(kb *knowledge.Base) *Engine {
	return &Engine{kb: kb, logger: zap.NewNop()}
}

// SetLogger sets the logger for debug messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Assess returns the rule for (gene, drug, phenotype), or the Unknown default.
// The drug name is trimmed, upper-cased and resolved through aliases.
func (e *Engine) Assess(drug, gene string, phenotype knowledge.Maybe[knowledge.Phenotype]) Assessment {
	name := knowledge.NormalizeDrug(drug)
	if d, ok := e.kb.Drug(name).Get(); ok {
		name = d.Name
	}
	p, ok := phenotype.Get()
	if !ok {
		return UnknownAssessment(gene, name, knowledge.PhenotypeUnknown)
	}

	rule, ok := e.kb.Rule(gene, name, p).Get()
	if !ok {
		e.logger.Debug("no risk rule",
			zap.String("gene", gene), zap.String("drug", name), zap.String("phenotype", string(p)))
		return UnknownAssessment(gene, name, p)
	}

	return Assessment{
		Gene:             rule.Gene,
		Drug:             rule.Drug,
		Phenotype:        rule.Phenotype,
		RiskLabel:        rule.RiskLabel,
		Severity:         rule.Severity,
		Confidence:       rule.Confidence,
		Action:           rule.Action,
		DosingAdjustment: rule.DosingAdjustment,
		Monitoring:       rule.Monitoring,
		Matched:          true,
	}
}

// GeneForDrug returns the drug's primary gene.
func (e *Engine) GeneForDrug(drug string) knowledge.Maybe[string] {
	return e.kb.GeneForDrug(drug)
}

// CanonicalDrug returns the normalized drug name, resolving aliases when known.
func (e *Engine) CanonicalDrug(drug string) string {
	if d, ok := e.kb.Drug(drug).Get(); ok {
		return d.Name
	}
	return knowledge.NormalizeDrug(drug)
}

// SupportedDrugs returns the sorted supported drug names.
func (e *Engine) SupportedDrugs() []string {
	return e.kb.Drugs()
}

// GeneDrugMap returns drug to gene for every supported drug.
func (e *Engine) GeneDrugMap() map[string]string {
	return e.kb.GeneDrugMap()
}
