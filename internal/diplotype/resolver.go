// Package diplotype turns allele calls into canonical diplotypes and phenotypes.
package diplotype

import (
	"go.uber.org/zap"

	"github.com/inodb/pharmaguard/internal/allele"
	"github.com/inodb/pharmaguard/internal/knowledge"
	"github.com/inodb/pharmaguard/internal/star"
)

// Unknown is the diplotype reported when no allele call could be made.
const Unknown = "Unknown"

// Result is a resolved diplotype for one gene.
type Result struct {
	Gene      string
	Diplotype string
	Phenotype knowledge.Maybe[knowledge.Phenotype]
}

// PhenotypeOrUnknown returns the phenotype, or PhenotypeUnknown on a table miss.
func (r Result) PhenotypeOrUnknown() knowledge.Phenotype {
	return r.Phenotype.OrElse(knowledge.PhenotypeUnknown)
}

// Resolver looks up phenotypes for allele calls.
type Resolver struct {
	kb     *knowledge.Base
	logger *zap.Logger
}

// NewResolver creates a resolver backed by the knowledge base.
func NewResolver(kb *knowledge.Base) *Resolver {
	return &Resolver{kb: kb, logger: zap.NewNop()}
}

// SetLogger sets the logger for debug messages.
func (r *Resolver) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Resolve normalizes the call's alleles and looks the diplotype up in the
// gene's phenotype table. Misses are Unknown; nothing is inferred.
func (r *Resolver) Resolve(gene string, call knowledge.Maybe[*allele.Call]) Result {
	c, ok := call.Get()
	if !ok {
		return Result{Gene: gene, Diplotype: Unknown, Phenotype: knowledge.Unknown[knowledge.Phenotype]()}
	}
	return r.ResolveDiplotype(c.Gene, star.Pair(c.Alleles[0], c.Alleles[1]))
}

// ResolveDiplotype looks up a diplotype string given directly (e.g. "*4/*1").
func (r *Resolver) ResolveDiplotype(gene, diplotype string) Result {
	res := Result{Gene: gene, Diplotype: diplotype, Phenotype: knowledge.Unknown[knowledge.Phenotype]()}
	if d, ok := star.Normalize(diplotype); ok {
		res.Diplotype = d
	}

	g, ok := r.kb.Gene(gene).Get()
	if !ok {
		return res
	}
	res.Gene = g.Symbol
	res.Phenotype = g.Phenotype(res.Diplotype)
	if !res.Phenotype.IsKnown() {
		r.logger.Debug("diplotype not in phenotype table",
			zap.String("gene", g.Symbol), zap.String("diplotype", res.Diplotype))
	}
	return res
}
