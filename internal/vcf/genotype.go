package vcf

import (
	"strconv"
	"strings"
)

// Zygosity classifies a genotype call.
type Zygosity int

// Zygosity values.
const (
	ZygosityUnknown Zygosity = iota
	ZygosityHomozygousReference
	ZygosityHeterozygous
	ZygosityHomozygousAlternate
	ZygosityHaploidReference
	ZygosityHaploidAlternate
)

func (z Zygosity) String() string {
	switch z {
	case ZygosityHomozygousReference:
		return "HOMOZYGOUS_REFERENCE"
	case ZygosityHeterozygous:
		return "HETEROZYGOUS"
	case ZygosityHomozygousAlternate:
		return "HOMOZYGOUS_ALTERNATE"
	case ZygosityHaploidReference:
		return "HAPLOID_REFERENCE"
	case ZygosityHaploidAlternate:
		return "HAPLOID_ALTERNATE"
	default:
		return "UNKNOWN"
	}
}

// NoCall marks an allele that was not called ('.').
const NoCall = -1

// Genotype is a parsed GT value.
type Genotype struct {
	Raw     string
	Alleles []int // allele indices; NoCall for '.'
	Phased  bool
}

// ParseGenotype parses a GT string such as "0/1", "1|1", "./." or "1".
// Unparseable allele tokens are treated as no-calls.
func ParseGenotype(gt string) Genotype {
	gt = strings.TrimSpace(gt)
	g := Genotype{Raw: gt}
	if gt == "" {
		return g
	}

	var parts []string
	switch {
	case strings.Contains(gt, "|"):
		g.Phased = true
		parts = strings.Split(gt, "|")
	case strings.Contains(gt, "/"):
		parts = strings.Split(gt, "/")
	default:
		parts = []string{gt}
	}

	g.Alleles = make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			n = NoCall
		}
		g.Alleles[i] = n
	}
	return g
}

// IsHaploid reports whether the genotype has a single allele.
func (g Genotype) IsHaploid() bool {
	return len(g.Alleles) == 1
}

// IsNoCall reports whether every allele is uncalled.
func (g Genotype) IsNoCall() bool {
	for _, a := range g.Alleles {
		if a != NoCall {
			return false
		}
	}
	return true
}

// Count returns the number of alleles equal to idx.
func (g Genotype) Count(idx int) int {
	n := 0
	for _, a := range g.Alleles {
		if a == idx {
			n++
		}
	}
	return n
}

// Zygosity classifies the genotype. Calls with a missing allele are Unknown.
func (g Genotype) Zygosity() Zygosity {
	if len(g.Alleles) == 0 {
		return ZygosityUnknown
	}
	for _, a := range g.Alleles {
		if a == NoCall {
			return ZygosityUnknown
		}
	}

	if g.IsHaploid() {
		if g.Alleles[0] == 0 {
			return ZygosityHaploidReference
		}
		return ZygosityHaploidAlternate
	}

	first := g.Alleles[0]
	same := true
	for _, a := range g.Alleles[1:] {
		if a != first {
			same = false
			break
		}
	}
	switch {
	case same && first == 0:
		return ZygosityHomozygousReference
	case same:
		return ZygosityHomozygousAlternate
	default:
		return ZygosityHeterozygous
	}
}
