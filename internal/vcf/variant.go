// Package vcf provides VCF file parsing functionality.
package vcf

import "strings"

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom  string                 // Chromosome name (e.g., "22", "chr22")
	Pos    int64                  // 1-based genomic position
	ID     string                 // Variant identifier(s), ';'-separated (e.g., rs ID)
	Ref    string                 // Reference allele
	Alt    string                 // Alternate allele(s), ',' separated until split
	Qual   float64                // Quality score
	Filter string                 // Filter status (PASS or filter name)
	Info   map[string]interface{} // INFO field key-value pairs

	RawInfo string // INFO column as read, "." when empty

	Format   string   // FORMAT column, empty when absent
	Samples  []string // raw sample columns
	Genotype Genotype // GT of the first sample
	AltIndex int      // 1-based index of Alt in the original ALT column
	Line     int      // source line number
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && strings.EqualFold(v.Chrom[:3], "chr") {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// IDs returns the identifiers in the ID column, skipping missing values.
func (v *Variant) IDs() []string {
	if v.ID == "" || v.ID == "." {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(v.ID, ";") {
		if id = strings.TrimSpace(id); id != "" && id != "." {
			ids = append(ids, id)
		}
	}
	return ids
}

// InfoString returns a string-valued INFO entry, or "" when absent or a flag.
func (v *Variant) InfoString(key string) string {
	if s, ok := v.Info[key].(string); ok {
		return s
	}
	return ""
}

// HasGenotype reports whether the record carried a GT value for its first sample.
func (v *Variant) HasGenotype() bool {
	return len(v.Genotype.Alleles) > 0
}

// Copies returns how many copies of Alt the sample carries: 0, 1 or 2.
// Polyploid calls are capped at 2.
// A record without a genotype asserts presence of the allele and counts as one copy.
func (v *Variant) Copies() int {
	if !v.HasGenotype() {
		return 1
	}
	idx := v.AltIndex
	if idx == 0 {
		idx = 1
	}
	return min(v.Genotype.Count(idx), 2)
}

// Zygosity returns the zygosity of the first sample.
func (v *Variant) Zygosity() Zygosity {
	return v.Genotype.Zygosity()
}
