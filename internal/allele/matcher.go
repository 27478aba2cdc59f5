// Package allele matches parsed variants against the star-allele catalog.
package allele

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/pharmaguard/internal/knowledge"
	"github.com/inodb/pharmaguard/internal/star"
	"github.com/inodb/pharmaguard/internal/vcf"
)

// Source records which key matched a variant to its gene.
type Source string

// Match sources, in lookup priority order.
const (
	SourceRsID    Source = "rsid"
	SourceInfoRS  Source = "info_rs"
	SourceLocus   Source = "locus"
	SourceInfoTag Source = "info_tag"
	SourceRegion  Source = "region"
)

// Match is one detected variant attributed to a gene.
type Match struct {
	RsID    string
	Gene    string
	Star    string // empty for variants inside the gene that define no known allele
	Copies  int
	Source  Source
	Variant *vcf.Variant
}

// Call is the allele call for one gene: always exactly two slots.
type Call struct {
	Gene    string
	Alleles [2]string
	Matches []Match
}

// Homozygous reports whether both slots hold the same allele.
func (c *Call) Homozygous() bool {
	return c.Alleles[0] == c.Alleles[1]
}

// Matcher maps variants to star alleles. It is safe for concurrent use.
type Matcher struct {
	kb     *knowledge.Base
	logger *zap.Logger
}

// NewMatcher creates a matcher backed by the knowledge base.
func NewMatcher(kb *knowledge.Base) *Matcher {
	return &Matcher{
		kb:     kb,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (m *Matcher) SetLogger(l *zap.Logger) {
	m.logger = l
}

type candidate struct {
	allele *knowledge.Allele
	copies int
}

// Match builds the allele call for one gene. A gene absent from the
// knowledge base yields Unknown.
func (m *Matcher) Match(variants []*vcf.Variant, gene string) knowledge.Maybe[*Call] {
	g, ok := m.kb.Gene(gene).Get()
	if !ok {
		m.logger.Debug("gene not in knowledge base", zap.String("gene", gene))
		return knowledge.Unknown[*Call]()
	}

	call := &Call{Gene: g.Symbol}
	candidates := make(map[string]*candidate)

	for _, raw := range variants {
		for _, v := range vcf.SplitMultiAllelic(raw) {
			copies := v.Copies()
			if copies == 0 {
				continue
			}
			matches, alleles := m.matchVariant(g, v)
			for i := range matches {
				matches[i].Copies = copies
			}
			call.Matches = append(call.Matches, matches...)

			for _, a := range alleles {
				// Several variants defining one allele do not add up.
				c, ok := candidates[a.Star]
				if !ok {
					candidates[a.Star] = &candidate{allele: a, copies: copies}
					continue
				}
				if copies > c.copies {
					c.copies = copies
				}
			}
		}
	}

	call.Alleles = fillSlots(g, candidates)
	m.logger.Debug("allele call",
		zap.String("gene", g.Symbol),
		zap.Strings("alleles", call.Alleles[:]),
		zap.Int("matches", len(call.Matches)))

	return knowledge.Found(call)
}

// MatchAll builds calls for every catalog gene with at least one detected
// variant, in knowledge-base gene order.
func (m *Matcher) MatchAll(variants []*vcf.Variant) []*Call {
	var calls []*Call
	for _, gene := range m.kb.Genes() {
		call, ok := m.Match(variants, gene).Get()
		if ok && len(call.Matches) > 0 {
			calls = append(calls, call)
		}
	}
	return calls
}

// matchVariant applies the lookup keys in priority order and stops at the first hit.
func (m *Matcher) matchVariant(g *knowledge.Gene, v *vcf.Variant) ([]Match, []*knowledge.Allele) {
	for _, id := range v.IDs() {
		if ms, as := entryMatches(g, m.kb.EntriesByRsID(id), SourceRsID, v); len(ms) > 0 {
			return ms, as
		}
	}

	if rs := v.InfoString("RS"); rs != "" {
		if ms, as := entryMatches(g, m.kb.EntriesByRsID(rs), SourceInfoRS, v); len(ms) > 0 {
			return ms, as
		}
	}

	if ms, as := entryMatches(g, m.kb.EntriesByLocus(v.Chrom, v.Pos, v.Ref, v.Alt), SourceLocus, v); len(ms) > 0 {
		return ms, as
	}

	if strings.EqualFold(v.InfoString("GENE"), g.Symbol) {
		label := star.Canonical(v.InfoString("STAR"))
		match := Match{RsID: displayID(v), Gene: g.Symbol, Source: SourceInfoTag, Variant: v}
		if label == "" {
			return []Match{match}, nil
		}
		match.Star = label
		a, ok := g.Allele(label).Get()
		if !ok {
			// Annotated allele outside the catalog: keep it so the
			// diplotype misses the phenotype table instead of guessing.
			a = &knowledge.Allele{
				Gene:     g.Symbol,
				Star:     label,
				Function: knowledge.FunctionUncertain,
				Order:    len(g.Alleles),
			}
		}
		return []Match{match}, []*knowledge.Allele{a}
	}

	for _, gene := range m.kb.GenesAt(v.Chrom, v.Pos) {
		if gene == g.Symbol {
			return []Match{{RsID: displayID(v), Gene: g.Symbol, Source: SourceRegion, Variant: v}}, nil
		}
	}

	return nil, nil
}

// entryMatches reports the catalog rsID for each hit; positional names are
// used only when the entry has none.
func entryMatches(g *knowledge.Gene, entries []*knowledge.Entry, src Source, v *vcf.Variant) ([]Match, []*knowledge.Allele) {
	var (
		matches []Match
		alleles []*knowledge.Allele
	)
	for _, e := range entries {
		if e.Gene != g.Symbol {
			continue
		}
		id := e.RsID
		if id == "" {
			id = displayID(v)
		}
		matches = append(matches, Match{
			RsID:    id,
			Gene:    g.Symbol,
			Star:    e.Allele.Star,
			Source:  src,
			Variant: v,
		})
		alleles = append(alleles, e.Allele)
	}
	return matches, alleles
}

// displayID is the first ID column value, or a positional name when absent.
func displayID(v *vcf.Variant) string {
	if ids := v.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return fmt.Sprintf("pos_%s_%d", v.NormalizeChrom(), v.Pos)
}

// fillSlots picks the alleles for the two diploid slots. Candidates are
// ranked by function severity, then by their order in the gene's table;
// empty slots get the reference allele.
func fillSlots(g *knowledge.Gene, candidates map[string]*candidate) [2]string {
	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].allele, ranked[j].allele
		if sa, sb := a.Function.Severity(), b.Function.Severity(); sa != sb {
			return sa > sb
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return star.Less(a.Star, b.Star)
	})

	slots := make([]string, 0, 2)
	for _, c := range ranked {
		for n := 0; n < c.copies && len(slots) < 2; n++ {
			slots = append(slots, c.allele.Star)
		}
	}
	for len(slots) < 2 {
		slots = append(slots, g.ReferenceAllele)
	}
	return [2]string{slots[0], slots[1]}
}
