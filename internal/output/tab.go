// Package output provides result formatters for analyses and profiles.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/pharmaguard/internal/analysis"
)

// TabWriter writes analysis results in tab-delimited format, one row per drug.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Patient",
			"Drug",
			"Gene",
			"Diplotype",
			"Phenotype",
			"Risk",
			"Severity",
			"Confidence",
			"Action",
			"Dosing",
			"Variants",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single result.
func (tw *TabWriter) Write(r *analysis.Result) error {
	p := r.PharmacogenomicProfile

	ids := make([]string, 0, len(p.DetectedVariants))
	for _, v := range p.DetectedVariants {
		if v.Star != "" {
			ids = append(ids, v.RsID+"("+v.Star+")")
		} else {
			ids = append(ids, v.RsID)
		}
	}

	values := []string{
		r.PatientID,
		r.Drug,
		dash(p.PrimaryGene),
		dash(p.Diplotype),
		dash(p.Phenotype),
		r.RiskAssessment.RiskLabel,
		r.RiskAssessment.Severity,
		strconv.FormatFloat(r.RiskAssessment.ConfidenceScore, 'f', 2, 64),
		dash(r.ClinicalRecommendation.Action),
		dash(r.ClinicalRecommendation.DosingAdjustment),
		dash(strings.Join(ids, ",")),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteProfile writes the per-gene rows of a parse-only report with its own header.
func (tw *TabWriter) WriteProfile(report *analysis.ProfileReport) error {
	if _, err := tw.w.WriteString("#Gene\tDiplotype\tPhenotype\tVariants\n"); err != nil {
		return err
	}
	for _, g := range report.Genes {
		ids := make([]string, 0, len(g.Variants))
		for _, v := range g.Variants {
			ids = append(ids, v.RsID)
		}
		row := []string{g.Gene, g.Diplotype, g.Phenotype, dash(strings.Join(ids, ","))}
		if _, err := tw.w.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
