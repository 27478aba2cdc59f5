package knowledge

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Spec is the serialized form of a knowledge base (YAML file or DuckDB snapshot).
type Spec struct {
	Version string     `yaml:"version"`
	Genes   []GeneSpec `yaml:"genes"`
	Drugs   []DrugSpec `yaml:"drugs"`
	Rules   []RuleSpec `yaml:"rules"`
}

// GeneSpec describes one pharmacogene.
type GeneSpec struct {
	Symbol          string            `yaml:"symbol"`
	ReferenceAllele string            `yaml:"reference_allele"`
	Regions         []RegionSpec      `yaml:"regions"`
	Alleles         []AlleleSpec      `yaml:"alleles"`
	Phenotypes      map[string]string `yaml:"phenotypes"`
}

// RegionSpec is a gene's genomic extent on one assembly.
type RegionSpec struct {
	Assembly string `yaml:"assembly"`
	Chrom    string `yaml:"chrom"`
	Start    int64  `yaml:"start"`
	End      int64  `yaml:"end"`
}

// AlleleSpec is one star allele and the variants that define it.
type AlleleSpec struct {
	Star     string        `yaml:"star"`
	Function string        `yaml:"function"`
	Variants []VariantSpec `yaml:"variants"`
}

// VariantSpec identifies a defining variant by rsID and/or locus.
type VariantSpec struct {
	RsID  string `yaml:"rsid"`
	Chrom string `yaml:"chrom,omitempty"`
	Pos   int64  `yaml:"pos,omitempty"`
	Ref   string `yaml:"ref,omitempty"`
	Alt   string `yaml:"alt,omitempty"`
}

// DrugSpec maps a drug (and its aliases) to its primary gene.
type DrugSpec struct {
	Name    string   `yaml:"name"`
	Gene    string   `yaml:"gene"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// RuleSpec is one gene-drug-phenotype risk rule.
type RuleSpec struct {
	Gene             string  `yaml:"gene"`
	Drug             string  `yaml:"drug"`
	Phenotype        string  `yaml:"phenotype"`
	RiskLabel        string  `yaml:"risk_label"`
	Severity         string  `yaml:"severity"`
	Confidence       float64 `yaml:"confidence"`
	Action           string  `yaml:"action"`
	DosingAdjustment string  `yaml:"dosing_adjustment"`
	Monitoring       string  `yaml:"monitoring"`
}

// ParseSpec decodes a YAML knowledge base.
func ParseSpec(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	return &s, nil
}

// Default builds the embedded curated knowledge base.
func Default() (*Base, error) {
	s, err := ParseSpec(defaultYAML)
	if err != nil {
		return nil, err
	}
	return Build(s)
}

// LoadFile builds a knowledge base from a YAML file.
func LoadFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	s, err := ParseSpec(data)
	if err != nil {
		return nil, err
	}
	return Build(s)
}
