package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/pharmaguard/internal/knowledge"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func defaultSpec(t *testing.T) *knowledge.Spec {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return kb.Spec()
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "", s.Path())
}

func TestLoadSpec_Empty(t *testing.T) {
	s := openInMemory(t)
	_, err := s.LoadSpec()
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestWriteAndLoadKnowledgeBase(t *testing.T) {
	s := openInMemory(t)
	spec := defaultSpec(t)
	require.NoError(t, s.WriteKnowledgeBase(spec))

	loaded, err := s.LoadSpec()
	require.NoError(t, err)

	assert.Equal(t, spec.Version, loaded.Version)
	require.Len(t, loaded.Genes, len(spec.Genes))
	for i, g := range spec.Genes {
		got := loaded.Genes[i]
		assert.Equal(t, g.Symbol, got.Symbol)
		assert.Equal(t, g.ReferenceAllele, got.ReferenceAllele)
		assert.Equal(t, len(g.Phenotypes), len(got.Phenotypes), g.Symbol)
		assert.Equal(t, g.Regions, got.Regions, g.Symbol)
		require.Len(t, got.Alleles, len(g.Alleles), g.Symbol)
		for j, a := range g.Alleles {
			assert.Equal(t, a.Star, got.Alleles[j].Star)
			assert.Equal(t, a.Function, got.Alleles[j].Function)
			assert.Equal(t, len(a.Variants), len(got.Alleles[j].Variants), a.Star)
		}
	}
	assert.Equal(t, spec.Drugs, loaded.Drugs)
	assert.Equal(t, spec.Rules, loaded.Rules)

	kb, err := s.LoadKnowledgeBase()
	require.NoError(t, err)
	g, ok := kb.Gene("CYP2D6").Get()
	require.True(t, ok)
	assert.Equal(t, knowledge.PhenotypePoorMetabolizer, g.Phenotype("*4/*4").OrElse(knowledge.PhenotypeUnknown))
}

func TestWriteKnowledgeBase_Replaces(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteKnowledgeBase(defaultSpec(t)))

	small := &knowledge.Spec{
		Version: "test",
		Genes: []knowledge.GeneSpec{{
			Symbol:          "CYP2D6",
			ReferenceAllele: "*1",
			Alleles: []knowledge.AlleleSpec{
				{Star: "*1", Function: "normal function"},
				{Star: "*4", Function: "no function", Variants: []knowledge.VariantSpec{{RsID: "rs3892097"}}},
			},
			Phenotypes: map[string]string{"*1/*1": "NM", "*4/*4": "PM"},
		}},
		Drugs: []knowledge.DrugSpec{{Name: "CODEINE", Gene: "CYP2D6"}},
	}
	require.NoError(t, s.WriteKnowledgeBase(small))

	loaded, err := s.LoadSpec()
	require.NoError(t, err)
	assert.Equal(t, "test", loaded.Version)
	require.Len(t, loaded.Genes, 1)
	assert.Len(t, loaded.Genes[0].Alleles, 2)
	assert.Empty(t, loaded.Rules)
	assert.Nil(t, loaded.Drugs[0].Aliases)
}

func TestWriteKnowledgeBase_FailedWriteLeavesNoSnapshot(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteKnowledgeBase(defaultSpec(t)))

	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: x\n"), 0644))
	fp, err := StatFile(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSource(fp))

	// Duplicate drug name violates the drugs primary key after the gene
	// tables have already been rewritten.
	broken := *defaultSpec(t)
	broken.Drugs = append(append([]knowledge.DrugSpec{}, broken.Drugs...), broken.Drugs[0])
	require.Error(t, s.WriteKnowledgeBase(&broken))

	_, err = s.LoadSpec()
	assert.ErrorIs(t, err, ErrEmptySnapshot)
	_, err = s.LoadKnowledgeBase()
	assert.ErrorIs(t, err, ErrEmptySnapshot)
	assert.False(t, s.SourceMatches(fp), "fingerprint cleared by the failed write")

	version, err := s.Metadata("version")
	require.NoError(t, err)
	assert.Empty(t, version)

	require.NoError(t, s.WriteKnowledgeBase(defaultSpec(t)))
	_, err = s.LoadSpec()
	assert.NoError(t, err)
}

func TestRulesForDrug(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteKnowledgeBase(defaultSpec(t)))

	rules, err := s.RulesForDrug("codeine")
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	for _, r := range rules {
		assert.Equal(t, "CODEINE", r.Drug)
		assert.Equal(t, "CYP2D6", r.Gene)
	}
	assert.Equal(t, "PM", rules[0].Phenotype)

	none, err := s.RulesForDrug("ASPIRIN")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMetadata(t *testing.T) {
	s := openInMemory(t)

	v, err := s.Metadata("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetMetadata("k", "one"))
	require.NoError(t, s.SetMetadata("k", "two"))
	v, err = s.Metadata("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestSourceMatches(t *testing.T) {
	s := openInMemory(t)

	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: x\n"), 0644))
	fp, err := StatFile(path)
	require.NoError(t, err)

	assert.False(t, s.SourceMatches(fp))
	require.NoError(t, s.SetSource(fp))
	assert.True(t, s.SourceMatches(fp))

	changed := fp
	changed.ModTime = fp.ModTime.Add(time.Second)
	assert.False(t, s.SourceMatches(changed))

	changed = fp
	changed.Size++
	assert.False(t, s.SourceMatches(changed))
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kb.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteKnowledgeBase(defaultSpec(t)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	kb, err := s.LoadKnowledgeBase()
	require.NoError(t, err)
	assert.Equal(t, "CYP2D6", kb.GeneForDrug("CODEINE").OrElse(""))
}
