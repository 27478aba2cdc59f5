package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/pharmaguard/internal/allele"
	"github.com/inodb/pharmaguard/internal/vcf"
)

// pgxFields are the PGX INFO sub-fields.
var pgxFields = []string{"Gene", "Star", "Source"}

// VCFWriter writes parsed variants back as VCF with a PGX INFO field
// listing the gene and star allele each record was matched to.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, headerLines []string) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
	}
}

// WriteHeader writes the original header lines with an inserted PGX INFO line.
// A minimal header is synthesized for headerless input.
func (vw *VCFWriter) WriteHeader() error {
	pgxLine := fmt.Sprintf(
		"##INFO=<ID=PGX,Number=.,Type=String,Description=\"Pharmacogene star-allele matches. Format: %s\">",
		strings.Join(pgxFields, "|"),
	)

	lines := vw.headerLines
	if len(lines) == 0 {
		lines = []string{"##fileformat=VCFv4.2", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"}
	}

	wrote := false
	for _, line := range lines {
		if strings.HasPrefix(line, "#CHROM") && !wrote {
			if _, err := vw.w.WriteString(pgxLine + "\n"); err != nil {
				return err
			}
			wrote = true
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes one variant line. matches may be empty.
func (vw *VCFWriter) Write(v *vcf.Variant, matches []allele.Match) error {
	var lb strings.Builder
	lb.Grow(256)

	lb.WriteString(v.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(v.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.ID))
	lb.WriteByte('\t')
	lb.WriteString(v.Ref)
	lb.WriteByte('\t')
	lb.WriteString(v.Alt)
	lb.WriteByte('\t')
	if v.Qual != 0 {
		lb.WriteString(strconv.FormatFloat(v.Qual, 'g', -1, 64))
	} else {
		lb.WriteByte('.')
	}
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Filter))
	lb.WriteByte('\t')

	info := stripPGX(v.RawInfo)
	switch {
	case len(matches) == 0:
		lb.WriteString(info)
	case info == ".":
		lb.WriteString("PGX=")
	default:
		lb.WriteString(info)
		lb.WriteString(";PGX=")
	}
	for i, m := range matches {
		if i > 0 {
			lb.WriteByte(',')
		}
		lb.WriteString(m.Gene)
		lb.WriteByte('|')
		lb.WriteString(m.Star)
		lb.WriteByte('|')
		lb.WriteString(string(m.Source))
	}

	if v.Format != "" {
		lb.WriteByte('\t')
		lb.WriteString(v.Format)
		for _, s := range v.Samples {
			lb.WriteByte('\t')
			lb.WriteString(s)
		}
	}

	lb.WriteByte('\n')
	_, err := vw.w.WriteString(lb.String())
	return err
}

// Flush flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

// MatchesByLine groups matches by the source line of their variant.
func MatchesByLine(calls []*allele.Call) map[int][]allele.Match {
	out := make(map[int][]allele.Match)
	for _, c := range calls {
		for _, m := range c.Matches {
			if m.Variant == nil {
				continue
			}
			out[m.Variant.Line] = append(out[m.Variant.Line], m)
		}
	}
	return out
}

// stripPGX removes any existing PGX field from a raw INFO string.
func stripPGX(rawInfo string) string {
	if rawInfo == "" || rawInfo == "." {
		return "."
	}
	if !strings.Contains(rawInfo, "PGX") {
		return rawInfo
	}

	var kept []string
	for _, f := range strings.Split(rawInfo, ";") {
		if f == "PGX" || strings.HasPrefix(f, "PGX=") || f == "" {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return "."
	}
	return strings.Join(kept, ";")
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
