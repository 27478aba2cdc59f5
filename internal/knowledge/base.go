package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inodb/pharmaguard/internal/star"
)

// Allele is a star allele of one gene.
type Allele struct {
	Gene     string
	Star     string
	Function FunctionEffect
	// Order is the allele's position in the gene's reference table.
	Order    int
	Variants []VariantSpec
}

// Entry maps one known variant identity to a star allele (GeneReferenceEntry).
type Entry struct {
	Gene   string
	RsID   string
	Chrom  string
	Pos    int64
	Ref    string
	Alt    string
	Allele *Allele
}

// HasLocus reports whether the entry can be matched by position.
func (e *Entry) HasLocus() bool {
	return e.Chrom != "" && e.Pos > 0 && e.Ref != "" && e.Alt != ""
}

// Gene is a pharmacogene with its allele catalog and phenotype table.
type Gene struct {
	Symbol          string
	ReferenceAllele string
	Alleles         []*Allele
	Regions         []*Region

	alleles    map[string]*Allele
	phenotypes map[string]Phenotype
}

// Allele looks up a star allele by label ("*4" or "4").
func (g *Gene) Allele(label string) Maybe[*Allele] {
	if a, ok := g.alleles[star.Canonical(label)]; ok {
		return Found(a)
	}
	return Unknown[*Allele]()
}

// Phenotype looks up a diplotype in the gene's table. The diplotype is
// normalized first, so "*4/*1" and "*1/*4" resolve identically.
func (g *Gene) Phenotype(diplotype string) Maybe[Phenotype] {
	key, ok := star.Normalize(diplotype)
	if !ok {
		return Unknown[Phenotype]()
	}
	if p, ok := g.phenotypes[key]; ok {
		return Found(p)
	}
	return Unknown[Phenotype]()
}

// Diplotypes returns the gene's known diplotypes in canonical order.
func (g *Gene) Diplotypes() []string {
	out := make([]string, 0, len(g.phenotypes))
	for d := range g.phenotypes {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Drug maps a drug to its primary gene.
type Drug struct {
	Name    string
	Gene    string
	Aliases []string
}

// RiskRule is one row of the gene-drug-phenotype rule table.
type RiskRule struct {
	Gene             string
	Drug             string
	Phenotype        Phenotype
	RiskLabel        RiskLabel
	Severity         Severity
	Confidence       float64
	Action           string
	DosingAdjustment string
	Monitoring       string
}

type locusKey struct {
	chrom string
	pos   int64
	ref   string
	alt   string
}

type ruleKey struct {
	gene      string
	drug      string
	phenotype Phenotype
}

// Base is the immutable, process-wide knowledge base.
type Base struct {
	spec *Spec

	genes     map[string]*Gene
	geneOrder []string
	byRsID    map[string][]*Entry
	byLocus   map[locusKey][]*Entry
	regions   map[string]*RegionIndex
	drugs     map[string]*Drug
	drugNames []string
	rules     map[ruleKey]*RiskRule
}

// Build validates a Spec and indexes it for lookup.
func Build(s *Spec) (*Base, error) {
	if s == nil {
		return nil, fmt.Errorf("knowledge base: nil spec")
	}
	b := &Base{
		spec:    s,
		genes:   make(map[string]*Gene),
		byRsID:  make(map[string][]*Entry),
		byLocus: make(map[locusKey][]*Entry),
		regions: make(map[string]*RegionIndex),
		drugs:   make(map[string]*Drug),
		rules:   make(map[ruleKey]*RiskRule),
	}

	regionsByChrom := make(map[string][]*Region)
	for i := range s.Genes {
		g, err := b.addGene(&s.Genes[i])
		if err != nil {
			return nil, err
		}
		for _, r := range g.Regions {
			regionsByChrom[r.Chrom] = append(regionsByChrom[r.Chrom], r)
		}
	}
	for chrom, rs := range regionsByChrom {
		b.regions[chrom] = BuildRegionIndex(rs)
	}

	for i := range s.Drugs {
		if err := b.addDrug(&s.Drugs[i]); err != nil {
			return nil, err
		}
	}
	sort.Strings(b.drugNames)

	for i := range s.Rules {
		if err := b.addRule(i, &s.Rules[i]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Base) addGene(gs *GeneSpec) (*Gene, error) {
	symbol := strings.ToUpper(strings.TrimSpace(gs.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("gene: empty symbol")
	}
	if _, dup := b.genes[symbol]; dup {
		return nil, fmt.Errorf("gene %s: defined twice", symbol)
	}
	ref := star.Canonical(gs.ReferenceAllele)
	if ref == "" {
		ref = "*1"
	}

	g := &Gene{
		Symbol:          symbol,
		ReferenceAllele: ref,
		alleles:         make(map[string]*Allele),
		phenotypes:      make(map[string]Phenotype),
	}

	for i, as := range gs.Alleles {
		label := star.Canonical(as.Star)
		if label == "" {
			return nil, fmt.Errorf("gene %s: allele %d: empty star label", symbol, i)
		}
		if _, dup := g.alleles[label]; dup {
			return nil, fmt.Errorf("gene %s: allele %s defined twice", symbol, label)
		}
		fn, ok := parseFunctionEffect(as.Function)
		if !ok {
			return nil, fmt.Errorf("gene %s: allele %s: unknown function %q", symbol, label, as.Function)
		}
		a := &Allele{Gene: symbol, Star: label, Function: fn, Order: i}
		for j, vs := range as.Variants {
			e, err := newEntry(symbol, a, vs)
			if err != nil {
				return nil, fmt.Errorf("gene %s: allele %s: variant %d: %w", symbol, label, j, err)
			}
			a.Variants = append(a.Variants, vs)
			if e.RsID != "" {
				b.byRsID[e.RsID] = append(b.byRsID[e.RsID], e)
			}
			if e.HasLocus() {
				k := locusKey{e.Chrom, e.Pos, e.Ref, e.Alt}
				b.byLocus[k] = append(b.byLocus[k], e)
			}
		}
		g.alleles[label] = a
		g.Alleles = append(g.Alleles, a)
	}
	if _, ok := g.alleles[ref]; !ok {
		return nil, fmt.Errorf("gene %s: reference allele %s not in allele table", symbol, ref)
	}

	for _, rs := range gs.Regions {
		chrom := NormalizeChrom(rs.Chrom)
		if chrom == "" || rs.Start <= 0 || rs.End < rs.Start {
			return nil, fmt.Errorf("gene %s: invalid region %s:%d-%d", symbol, rs.Chrom, rs.Start, rs.End)
		}
		g.Regions = append(g.Regions, &Region{
			Gene:     symbol,
			Assembly: rs.Assembly,
			Chrom:    chrom,
			Start:    rs.Start,
			End:      rs.End,
		})
	}

	for raw, pheno := range gs.Phenotypes {
		key, ok := star.Normalize(raw)
		if !ok {
			return nil, fmt.Errorf("gene %s: invalid diplotype %q", symbol, raw)
		}
		p, ok := ParsePhenotype(pheno)
		if !ok {
			return nil, fmt.Errorf("gene %s: diplotype %s: unknown phenotype %q", symbol, key, pheno)
		}
		if prev, dup := g.phenotypes[key]; dup && prev != p {
			return nil, fmt.Errorf("gene %s: diplotype %s maps to both %s and %s", symbol, key, prev, p)
		}
		g.phenotypes[key] = p
	}

	b.genes[symbol] = g
	b.geneOrder = append(b.geneOrder, symbol)
	return g, nil
}

func newEntry(gene string, a *Allele, vs VariantSpec) (*Entry, error) {
	e := &Entry{
		Gene:   gene,
		RsID:   strings.ToLower(strings.TrimSpace(vs.RsID)),
		Chrom:  NormalizeChrom(vs.Chrom),
		Pos:    vs.Pos,
		Ref:    strings.ToUpper(strings.TrimSpace(vs.Ref)),
		Alt:    strings.ToUpper(strings.TrimSpace(vs.Alt)),
		Allele: a,
	}
	if vs.Pos < 0 {
		return nil, fmt.Errorf("non-positive position %d", vs.Pos)
	}
	if e.RsID == "" && !e.HasLocus() {
		return nil, fmt.Errorf("needs an rsID or chrom/pos/ref/alt")
	}
	return e, nil
}

func (b *Base) addDrug(ds *DrugSpec) error {
	name := NormalizeDrug(ds.Name)
	if name == "" {
		return fmt.Errorf("drug: empty name")
	}
	gene := strings.ToUpper(strings.TrimSpace(ds.Gene))
	if _, ok := b.genes[gene]; !ok {
		return fmt.Errorf("drug %s: unknown gene %q", name, ds.Gene)
	}
	d := &Drug{Name: name, Gene: gene}
	for _, alias := range ds.Aliases {
		if a := NormalizeDrug(alias); a != "" {
			d.Aliases = append(d.Aliases, a)
		}
	}
	for _, key := range append([]string{name}, d.Aliases...) {
		if _, dup := b.drugs[key]; dup {
			return fmt.Errorf("drug %s: name %s already defined", name, key)
		}
		b.drugs[key] = d
	}
	b.drugNames = append(b.drugNames, name)
	return nil
}

func (b *Base) addRule(i int, rs *RuleSpec) error {
	gene := strings.ToUpper(strings.TrimSpace(rs.Gene))
	if _, ok := b.genes[gene]; !ok {
		return fmt.Errorf("rule %d: unknown gene %q", i, rs.Gene)
	}
	d, ok := b.drugs[NormalizeDrug(rs.Drug)]
	if !ok {
		return fmt.Errorf("rule %d: unknown drug %q", i, rs.Drug)
	}
	pheno, ok := ParsePhenotype(rs.Phenotype)
	if !ok {
		return fmt.Errorf("rule %d: unknown phenotype %q", i, rs.Phenotype)
	}
	label, ok := parseRiskLabel(rs.RiskLabel)
	if !ok {
		return fmt.Errorf("rule %d: unknown risk label %q", i, rs.RiskLabel)
	}
	sev, ok := parseSeverity(rs.Severity)
	if !ok {
		return fmt.Errorf("rule %d: unknown severity %q", i, rs.Severity)
	}
	if rs.Confidence < 0 || rs.Confidence > 1 {
		return fmt.Errorf("rule %d: confidence %v outside [0,1]", i, rs.Confidence)
	}

	k := ruleKey{gene: gene, drug: d.Name, phenotype: pheno}
	if _, dup := b.rules[k]; dup {
		return fmt.Errorf("rule %d: duplicate rule for %s/%s/%s", i, gene, d.Name, pheno)
	}
	b.rules[k] = &RiskRule{
		Gene:             gene,
		Drug:             d.Name,
		Phenotype:        pheno,
		RiskLabel:        label,
		Severity:         sev,
		Confidence:       rs.Confidence,
		Action:           rs.Action,
		DosingAdjustment: rs.DosingAdjustment,
		Monitoring:       rs.Monitoring,
	}
	return nil
}

// Spec returns the source the base was built from. Callers must not modify it.
func (b *Base) Spec() *Spec {
	return b.spec
}

// Version returns the knowledge base version string.
func (b *Base) Version() string {
	return b.spec.Version
}

// Gene looks up a gene by symbol.
func (b *Base) Gene(symbol string) Maybe[*Gene] {
	if g, ok := b.genes[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return Found(g)
	}
	return Unknown[*Gene]()
}

// Genes returns gene symbols in table order.
func (b *Base) Genes() []string {
	return append([]string(nil), b.geneOrder...)
}

// EntriesByRsID returns the reference entries for an rsID (case-insensitive).
func (b *Base) EntriesByRsID(rsid string) []*Entry {
	return b.byRsID[strings.ToLower(strings.TrimSpace(rsid))]
}

// EntriesByLocus returns the reference entries at an exact chrom/pos/ref/alt.
func (b *Base) EntriesByLocus(chrom string, pos int64, ref, alt string) []*Entry {
	return b.byLocus[locusKey{
		chrom: NormalizeChrom(chrom),
		pos:   pos,
		ref:   strings.ToUpper(ref),
		alt:   strings.ToUpper(alt),
	}]
}

// GenesAt returns the genes whose region contains the position, in symbol order.
func (b *Base) GenesAt(chrom string, pos int64) []string {
	idx, ok := b.regions[NormalizeChrom(chrom)]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range idx.FindOverlaps(pos) {
		if !seen[r.Gene] {
			seen[r.Gene] = true
			out = append(out, r.Gene)
		}
	}
	sort.Strings(out)
	return out
}

// Drug resolves a drug name or alias.
func (b *Base) Drug(name string) Maybe[*Drug] {
	if d, ok := b.drugs[NormalizeDrug(name)]; ok {
		return Found(d)
	}
	return Unknown[*Drug]()
}

// GeneForDrug returns the primary gene of a drug.
func (b *Base) GeneForDrug(name string) Maybe[string] {
	d, ok := b.Drug(name).Get()
	if !ok {
		return Unknown[string]()
	}
	return Found(d.Gene)
}

// Drugs returns the canonical supported drug names, sorted.
func (b *Base) Drugs() []string {
	return append([]string(nil), b.drugNames...)
}

// GeneDrugMap returns drug name to gene symbol for every supported drug.
func (b *Base) GeneDrugMap() map[string]string {
	m := make(map[string]string, len(b.drugNames))
	for _, name := range b.drugNames {
		m[name] = b.drugs[name].Gene
	}
	return m
}

// Rule looks up the rule for a gene, drug (name or alias) and phenotype.
func (b *Base) Rule(gene, drug string, phenotype Phenotype) Maybe[*RiskRule] {
	d, ok := b.Drug(drug).Get()
	if !ok {
		return Unknown[*RiskRule]()
	}
	r, ok := b.rules[ruleKey{
		gene:      strings.ToUpper(strings.TrimSpace(gene)),
		drug:      d.Name,
		phenotype: phenotype,
	}]
	if !ok {
		return Unknown[*RiskRule]()
	}
	return Found(r)
}
