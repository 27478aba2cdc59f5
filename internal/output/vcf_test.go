package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/pharmaguard/internal/allele"
	"github.com/inodb/pharmaguard/internal/vcf"
)

func TestVCFWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, []string{
		"##fileformat=VCFv4.2",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1",
	})
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "##fileformat=VCFv4.2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "##INFO=<ID=PGX,"))
	assert.Contains(t, lines[1], "Gene|Star|Source")
	assert.True(t, strings.HasPrefix(lines[2], "#CHROM"))
}

func TestVCFWriter_WriteHeader_Headerless(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, nil)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	assert.True(t, strings.HasPrefix(buf.String(), "##fileformat=VCFv4.2\n##INFO=<ID=PGX,"))
	assert.Contains(t, buf.String(), "#CHROM\tPOS")
}

func TestVCFWriter_Write(t *testing.T) {
	v := &vcf.Variant{
		Chrom: "22", Pos: 42128945, ID: "rs3892097", Ref: "C", Alt: "T",
		Qual: 50, Filter: "PASS", RawInfo: "DP=30;PGX=old|x|y",
		Format: "GT", Samples: []string{"0/1"},
	}

	tests := []struct {
		name    string
		matches []allele.Match
		want    string
	}{
		{
			name: "matched",
			matches: []allele.Match{
				{Gene: "CYP2D6", Star: "*4", Source: allele.SourceRsID},
			},
			want: "22\t42128945\trs3892097\tC\tT\t50\tPASS\tDP=30;PGX=CYP2D6|*4|rsid\tGT\t0/1\n",
		},
		{
			name: "unmatched keeps INFO without stale PGX",
			want: "22\t42128945\trs3892097\tC\tT\t50\tPASS\tDP=30\tGT\t0/1\n",
		},
		{
			name: "region match has empty star",
			matches: []allele.Match{
				{Gene: "CYP2D6", Source: allele.SourceRegion},
			},
			want: "22\t42128945\trs3892097\tC\tT\t50\tPASS\tDP=30;PGX=CYP2D6||region\tGT\t0/1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewVCFWriter(&buf, nil)
			require.NoError(t, w.Write(v, tt.matches))
			require.NoError(t, w.Flush())
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestVCFWriter_Write_EmptyInfo(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, nil)
	v := &vcf.Variant{Chrom: "10", Pos: 5, ID: ".", Ref: "G", Alt: "A", RawInfo: "."}

	require.NoError(t, w.Write(v, []allele.Match{{Gene: "CYP2C19", Star: "*2", Source: allele.SourceLocus}}))
	require.NoError(t, w.Flush())
	assert.Equal(t, "10\t5\t.\tG\tA\t.\t.\tPGX=CYP2C19|*2|locus\n", buf.String())
}

func TestMatchesByLine(t *testing.T) {
	v1 := &vcf.Variant{Line: 8}
	v2 := &vcf.Variant{Line: 9}
	got := MatchesByLine([]*allele.Call{
		{Gene: "A", Matches: []allele.Match{{Gene: "A", Variant: v1}, {Gene: "A", Variant: v2}}},
		{Gene: "B", Matches: []allele.Match{{Gene: "B", Variant: v1}, {Gene: "B"}}},
	})
	assert.Len(t, got[8], 2)
	assert.Len(t, got[9], 1)
	assert.Len(t, got, 2)
}

func TestStripPGX(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "."},
		{".", "."},
		{"DP=3", "DP=3"},
		{"PGX=a|b|c", "."},
		{"PGX", "."},
		{"DP=3;PGX=a;AF=0.5", "DP=3;AF=0.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripPGX(tt.in), tt.in)
	}
}
