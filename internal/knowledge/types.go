// Package knowledge holds the curated pharmacogenomic knowledge base:
// variant to star-allele mappings, diplotype to phenotype tables,
// drug to gene mappings and gene-drug-phenotype risk rules.
//
// A Base is built once at process start and never mutated afterwards,
// so it is safe for concurrent use without locking.
package knowledge

import "strings"

// Maybe is the result of a knowledge-base lookup: either a found value or Unknown.
type Maybe[T any] struct {
	value T
	ok    bool
}

// Found wraps a value that was present in the knowledge base.
func Found[T any](v T) Maybe[T] {
	return Maybe[T]{value: v, ok: true}
}

// Unknown is the result of a lookup that missed.
func Unknown[T any]() Maybe[T] {
	return Maybe[T]{}
}

// Get returns the value and whether it was found.
func (m Maybe[T]) Get() (T, bool) {
	return m.value, m.ok
}

// IsKnown reports whether the lookup hit.
func (m Maybe[T]) IsKnown() bool {
	return m.ok
}

// OrElse returns the value, or def when the lookup missed.
func (m Maybe[T]) OrElse(def T) T {
	if !m.ok {
		return def
	}
	return m.value
}

// Phenotype is a metabolizer or transporter function class.
type Phenotype string

// Phenotype values.
const (
	PhenotypePoorMetabolizer         Phenotype = "PM"
	PhenotypeIntermediateMetabolizer Phenotype = "IM"
	PhenotypeNormalMetabolizer       Phenotype = "NM"
	PhenotypeRapidMetabolizer        Phenotype = "RM"
	PhenotypeUltraRapidMetabolizer   Phenotype = "URM"
	PhenotypePoorFunction            Phenotype = "PF"
	PhenotypeDecreasedFunction       Phenotype = "DF"
	PhenotypeNormalFunction          Phenotype = "NF"
	PhenotypeUnknown                 Phenotype = "Unknown"
)

var phenotypeNames = map[Phenotype]string{
	PhenotypePoorMetabolizer:         "Poor Metabolizer",
	PhenotypeIntermediateMetabolizer: "Intermediate Metabolizer",
	PhenotypeNormalMetabolizer:       "Normal Metabolizer",
	PhenotypeRapidMetabolizer:        "Rapid Metabolizer",
	PhenotypeUltraRapidMetabolizer:   "Ultra-Rapid Metabolizer",
	PhenotypePoorFunction:            "Poor Function",
	PhenotypeDecreasedFunction:       "Decreased Function",
	PhenotypeNormalFunction:          "Normal Function",
	PhenotypeUnknown:                 "Unknown",
}

// Description returns the long name, e.g. "Poor Metabolizer".
func (p Phenotype) Description() string {
	if name, ok := phenotypeNames[p]; ok {
		return name
	}
	return string(p)
}

// ParsePhenotype accepts either the short code ("PM") or the long name.
func ParsePhenotype(s string) (Phenotype, bool) {
	s = strings.TrimSpace(s)
	for p, name := range phenotypeNames {
		if p == PhenotypeUnknown {
			continue
		}
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, name) {
			return p, true
		}
	}
	return PhenotypeUnknown, false
}

// FunctionEffect is the functional consequence of a star allele.
type FunctionEffect string

// Function effect tags.
const (
	FunctionNone      FunctionEffect = "no function"
	FunctionDecreased FunctionEffect = "decreased function"
	FunctionIncreased FunctionEffect = "increased function"
	FunctionNormal    FunctionEffect = "normal function"
	FunctionUncertain FunctionEffect = "uncertain function"
)

// Severity ranks the effect for slot selection (higher = more severe).
func (f FunctionEffect) Severity() int {
	switch f {
	case FunctionNone:
		return 4
	case FunctionDecreased:
		return 3
	case FunctionIncreased:
		return 2
	case FunctionNormal:
		return 1
	default:
		return 0
	}
}

func parseFunctionEffect(s string) (FunctionEffect, bool) {
	switch f := FunctionEffect(strings.ToLower(strings.TrimSpace(s))); f {
	case FunctionNone, FunctionDecreased, FunctionIncreased, FunctionNormal, FunctionUncertain:
		return f, true
	}
	return "", false
}

// RiskLabel is the clinical risk classification for a drug.
type RiskLabel string

// Risk labels.
const (
	RiskSafe         RiskLabel = "Safe"
	RiskAdjustDosage RiskLabel = "Adjust Dosage"
	RiskToxic        RiskLabel = "Toxic"
	RiskIneffective  RiskLabel = "Ineffective"
	RiskUnknown      RiskLabel = "Unknown"
)

func parseRiskLabel(s string) (RiskLabel, bool) {
	for _, l := range []RiskLabel{RiskSafe, RiskAdjustDosage, RiskToxic, RiskIneffective} {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, true
		}
	}
	return RiskUnknown, false
}

// Severity grades how serious a risk rule is.
type Severity string

// Severity values.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityModerate Severity = "Moderate"
	SeverityLow      Severity = "Low"
	SeverityUnknown  Severity = "Unknown"
)

func parseSeverity(s string) (Severity, bool) {
	for _, v := range []Severity{SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return SeverityUnknown, false
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func NormalizeChrom(chrom string) string {
	chrom = strings.TrimSpace(chrom)
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// NormalizeDrug trims and upper-cases a drug name.
func NormalizeDrug(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
