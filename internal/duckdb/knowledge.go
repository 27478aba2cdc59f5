package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/pharmaguard/internal/knowledge"
)

// ErrEmptySnapshot is returned by LoadSpec when no complete knowledge base was written.
var ErrEmptySnapshot = errors.New("knowledge snapshot is empty")

// completeKey is set last by WriteKnowledgeBase.
const completeKey = "complete"

// WriteKnowledgeBase replaces the stored snapshot with spec using the Appender API.
// Table order of genes, alleles, drugs and rules is kept in ordinal columns.
func (s *Store) WriteKnowledgeBase(spec *knowledge.Spec) error {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	// Metadata goes first: an interrupted write leaves no version, no
	// source fingerprint and no completion marker.
	if _, err := conn.ExecContext(ctx, "DELETE FROM kb_metadata"); err != nil {
		return fmt.Errorf("clear kb_metadata: %w", err)
	}
	for _, table := range snapshotTables {
		if _, err := conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var genes, alleles, variants, regions, phenos, drugs, rules [][]driver.Value
	for gi, g := range spec.Genes {
		genes = append(genes, []driver.Value{int64(gi), g.Symbol, g.ReferenceAllele})
		for ai, a := range g.Alleles {
			alleles = append(alleles, []driver.Value{g.Symbol, int64(ai), a.Star, a.Function})
			for vi, v := range a.Variants {
				variants = append(variants, []driver.Value{g.Symbol, a.Star, int64(vi), v.RsID, v.Chrom, v.Pos, v.Ref, v.Alt})
			}
		}
		for ri, r := range g.Regions {
			regions = append(regions, []driver.Value{g.Symbol, int64(ri), r.Assembly, r.Chrom, r.Start, r.End})
		}
		diplotypes := make([]string, 0, len(g.Phenotypes))
		for d := range g.Phenotypes {
			diplotypes = append(diplotypes, d)
		}
		sort.Strings(diplotypes)
		for _, d := range diplotypes {
			phenos = append(phenos, []driver.Value{g.Symbol, d, g.Phenotypes[d]})
		}
	}
	for di, d := range spec.Drugs {
		drugs = append(drugs, []driver.Value{int64(di), d.Name, d.Gene, strings.Join(d.Aliases, ",")})
	}
	for ri, r := range spec.Rules {
		rules = append(rules, []driver.Value{
			int64(ri), r.Gene, r.Drug, r.Phenotype, r.RiskLabel, r.Severity,
			r.Confidence, r.Action, r.DosingAdjustment, r.Monitoring,
		})
	}

	batches := []struct {
		table string
		rows  [][]driver.Value
	}{
		{"genes", genes},
		{"gene_alleles", alleles},
		{"allele_variants", variants},
		{"gene_regions", regions},
		{"phenotypes", phenos},
		{"drugs", drugs},
		{"risk_rules", rules},
	}
	for _, b := range batches {
		if err := appendRows(conn, b.table, b.rows); err != nil {
			return err
		}
	}

	if err := s.SetMetadata("version", spec.Version); err != nil {
		return err
	}
	return s.SetMetadata(completeKey, "true")
}

// appendRows bulk-loads rows into table through a DuckDB appender.
func appendRows(conn *sql.Conn, table string, rows [][]driver.Value) error {
	if len(rows) == 0 {
		return nil
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender for %s: %w", table, err)
	}

	for _, row := range rows {
		if err := appender.AppendRow(row...); err != nil {
			appender.Close()
			return fmt.Errorf("append %s row: %w", table, err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", table, err)
	}
	return nil
}

// LoadSpec reads the stored snapshot back. The result is unvalidated;
// pass it to knowledge.Build.
func (s *Store) LoadSpec() (*knowledge.Spec, error) {
	spec := &knowledge.Spec{}

	complete, err := s.Metadata(completeKey)
	if err != nil {
		return nil, err
	}
	if complete != "true" {
		return nil, ErrEmptySnapshot
	}

	version, err := s.Metadata("version")
	if err != nil {
		return nil, err
	}
	spec.Version = version

	rows, err := s.db.Query(`SELECT symbol, reference_allele FROM genes ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("query genes: %w", err)
	}
	index := map[string]int{}
	for rows.Next() {
		var g knowledge.GeneSpec
		if err := rows.Scan(&g.Symbol, &g.ReferenceAllele); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan gene: %w", err)
		}
		g.Phenotypes = map[string]string{}
		index[g.Symbol] = len(spec.Genes)
		spec.Genes = append(spec.Genes, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genes: %w", err)
	}
	if len(spec.Genes) == 0 {
		return nil, ErrEmptySnapshot
	}

	if err := s.loadAlleles(spec, index); err != nil {
		return nil, err
	}
	if err := s.loadRegions(spec, index); err != nil {
		return nil, err
	}
	if err := s.loadPhenotypes(spec, index); err != nil {
		return nil, err
	}
	if err := s.loadDrugs(spec); err != nil {
		return nil, err
	}
	if err := s.loadRules(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// LoadKnowledgeBase reads and validates the stored snapshot.
func (s *Store) LoadKnowledgeBase() (*knowledge.Base, error) {
	spec, err := s.LoadSpec()
	if err != nil {
		return nil, err
	}
	return knowledge.Build(spec)
}

func (s *Store) loadAlleles(spec *knowledge.Spec, index map[string]int) error {
	rows, err := s.db.Query(`SELECT gene, star, function FROM gene_alleles ORDER BY gene, ordinal`)
	if err != nil {
		return fmt.Errorf("query alleles: %w", err)
	}
	defer rows.Close()

	type alleleKey struct{ gene, star string }
	pos := map[alleleKey]int{}
	for rows.Next() {
		var gene string
		var a knowledge.AlleleSpec
		if err := rows.Scan(&gene, &a.Star, &a.Function); err != nil {
			return fmt.Errorf("scan allele: %w", err)
		}
		gi, ok := index[gene]
		if !ok {
			return fmt.Errorf("allele %s references unknown gene %s", a.Star, gene)
		}
		pos[alleleKey{gene, a.Star}] = len(spec.Genes[gi].Alleles)
		spec.Genes[gi].Alleles = append(spec.Genes[gi].Alleles, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate alleles: %w", err)
	}

	vrows, err := s.db.Query(`SELECT gene, star, rsid, chrom, pos, ref, alt
		FROM allele_variants ORDER BY gene, star, ordinal`)
	if err != nil {
		return fmt.Errorf("query allele variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var gene, star string
		var v knowledge.VariantSpec
		if err := vrows.Scan(&gene, &star, &v.RsID, &v.Chrom, &v.Pos, &v.Ref, &v.Alt); err != nil {
			return fmt.Errorf("scan allele variant: %w", err)
		}
		ai, ok := pos[alleleKey{gene, star}]
		if !ok {
			return fmt.Errorf("variant %s references unknown allele %s %s", v.RsID, gene, star)
		}
		a := &spec.Genes[index[gene]].Alleles[ai]
		a.Variants = append(a.Variants, v)
	}
	if err := vrows.Err(); err != nil {
		return fmt.Errorf("iterate allele variants: %w", err)
	}
	return nil
}

func (s *Store) loadRegions(spec *knowledge.Spec, index map[string]int) error {
	rows, err := s.db.Query(`SELECT gene, assembly, chrom, start_pos, end_pos
		FROM gene_regions ORDER BY gene, ordinal`)
	if err != nil {
		return fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gene string
		var r knowledge.RegionSpec
		if err := rows.Scan(&gene, &r.Assembly, &r.Chrom, &r.Start, &r.End); err != nil {
			return fmt.Errorf("scan region: %w", err)
		}
		gi, ok := index[gene]
		if !ok {
			return fmt.Errorf("region references unknown gene %s", gene)
		}
		spec.Genes[gi].Regions = append(spec.Genes[gi].Regions, r)
	}
	return rows.Err()
}

func (s *Store) loadPhenotypes(spec *knowledge.Spec, index map[string]int) error {
	rows, err := s.db.Query(`SELECT gene, diplotype, phenotype FROM phenotypes`)
	if err != nil {
		return fmt.Errorf("query phenotypes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gene, diplotype, phenotype string
		if err := rows.Scan(&gene, &diplotype, &phenotype); err != nil {
			return fmt.Errorf("scan phenotype: %w", err)
		}
		gi, ok := index[gene]
		if !ok {
			return fmt.Errorf("phenotype %s references unknown gene %s", diplotype, gene)
		}
		spec.Genes[gi].Phenotypes[diplotype] = phenotype
	}
	return rows.Err()
}

func (s *Store) loadDrugs(spec *knowledge.Spec) error {
	rows, err := s.db.Query(`SELECT name, gene, aliases FROM drugs ORDER BY ordinal`)
	if err != nil {
		return fmt.Errorf("query drugs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d knowledge.DrugSpec
		var aliases string
		if err := rows.Scan(&d.Name, &d.Gene, &aliases); err != nil {
			return fmt.Errorf("scan drug: %w", err)
		}
		if aliases != "" {
			d.Aliases = strings.Split(aliases, ",")
		}
		spec.Drugs = append(spec.Drugs, d)
	}
	return rows.Err()
}

func (s *Store) loadRules(spec *knowledge.Spec) error {
	rows, err := s.db.Query(`SELECT gene, drug, phenotype, risk_label, severity,
		confidence, action, dosing_adjustment, monitoring
		FROM risk_rules ORDER BY ordinal`)
	if err != nil {
		return fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r knowledge.RuleSpec
		if err := rows.Scan(&r.Gene, &r.Drug, &r.Phenotype, &r.RiskLabel, &r.Severity,
			&r.Confidence, &r.Action, &r.DosingAdjustment, &r.Monitoring); err != nil {
			return fmt.Errorf("scan rule: %w", err)
		}
		spec.Rules = append(spec.Rules, r)
	}
	return rows.Err()
}

// RulesForDrug returns stored rules for drug (canonical name), ordered as written.
func (s *Store) RulesForDrug(drug string) ([]knowledge.RuleSpec, error) {
	rows, err := s.db.Query(`SELECT gene, drug, phenotype, risk_label, severity,
		confidence, action, dosing_adjustment, monitoring
		FROM risk_rules WHERE drug = ? ORDER BY ordinal`, knowledge.NormalizeDrug(drug))
	if err != nil {
		return nil, fmt.Errorf("query rules for drug: %w", err)
	}
	defer rows.Close()

	var out []knowledge.RuleSpec
	for rows.Next() {
		var r knowledge.RuleSpec
		if err := rows.Scan(&r.Gene, &r.Drug, &r.Phenotype, &r.RiskLabel, &r.Severity,
			&r.Confidence, &r.Action, &r.DosingAdjustment, &r.Monitoring); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}
