package vcf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_SingleVariant(t *testing.T) {
	testFile := findTestFile(t, "cyp2d6_het.vcf")

	parser, err := NewParser(testFile)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	v, err := parser.Next()
	if err != nil {
		t.Fatalf("Failed to read variant: %v", err)
	}
	if v == nil {
		t.Fatal("Expected a variant, got nil")
	}

	// CYP2D6*4 splice defect, rs3892097
	if v.Chrom != "22" {
		t.Errorf("Expected chrom 22, got %s", v.Chrom)
	}
	if v.Pos != 42128945 {
		t.Errorf("Expected pos 42128945, got %d", v.Pos)
	}
	if v.ID != "rs3892097" {
		t.Errorf("Expected ID rs3892097, got %s", v.ID)
	}
	if v.Ref != "C" || v.Alt != "T" {
		t.Errorf("Expected C>T, got %s>%s", v.Ref, v.Alt)
	}
	if v.Zygosity() != ZygosityHeterozygous {
		t.Errorf("Expected heterozygous, got %s", v.Zygosity())
	}
	if v.Copies() != 1 {
		t.Errorf("Expected 1 copy, got %d", v.Copies())
	}

	v2, err := parser.Next()
	if err != nil {
		t.Fatalf("Error checking for more variants: %v", err)
	}
	if v2 != nil {
		t.Error("Expected no more variants")
	}
}

func TestParser_Header(t *testing.T) {
	testFile := findTestFile(t, "cyp2d6_pm.vcf")

	parser, err := NewParser(testFile)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	header := parser.Header()
	if len(header) == 0 {
		t.Error("Expected header lines")
	}

	hasFileformat := false
	hasChromLine := false
	for _, line := range header {
		if line == "##fileformat=VCFv4.2" {
			hasFileformat = true
		}
		if strings.HasPrefix(line, "#CHROM") {
			hasChromLine = true
		}
	}

	if !hasFileformat {
		t.Error("Missing ##fileformat header")
	}
	if !hasChromLine {
		t.Error("Missing #CHROM header line")
	}
	if parser.Version() != "VCFv4.2" {
		t.Errorf("Expected version VCFv4.2, got %q", parser.Version())
	}
	if got := parser.SampleNames(); len(got) != 1 || got[0] != "PATIENT_001" {
		t.Errorf("Expected sample PATIENT_001, got %v", got)
	}
}

func TestParser_MalformedLineIsRecoverable(t *testing.T) {
	content := "22\t42128945\trs3892097\tC\tT\t.\tPASS\t.\n" +
		"22\tabc\trs1\tA\tG\t.\tPASS\t.\n" +
		"22\t42130692\trs1065852\tG\tA\t.\tPASS\t.\n"

	p, err := NewParserFromReader(strings.NewReader(content))
	require.NoError(t, err)

	v, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(42128945), v.Pos)

	_, err = p.Next()
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)

	v, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(42130692), v.Pos)
	assert.Equal(t, 3, v.Line)
}

func TestParseBytes_MalformedLines(t *testing.T) {
	data, err := os.ReadFile(findTestFile(t, "malformed_lines.vcf"))
	require.NoError(t, err)

	res, err := ParseBytes(data)
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Len(t, res.Variants, 3)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, 9, res.Warnings[0].Line)
	assert.Contains(t, res.Warnings[0].Message, "invalid position")
	assert.Equal(t, 10, res.Warnings[1].Line)
	assert.Contains(t, res.Warnings[1].Message, "insufficient columns")
	assert.Equal(t, 5, res.DataLines)
	assert.Equal(t, "VCFv4.2", res.Version)

	first := res.Variants[0]
	assert.Equal(t, "CYP2D6", first.InfoString("GENE"))
	assert.Equal(t, "*4", first.InfoString("STAR"))
	assert.Equal(t, "22", first.NormalizeChrom())
}

func TestParseBytes_Robustness(t *testing.T) {
	good := "22\t42128945\trs3892097\tC\tT\t.\tPASS\t.\n"
	bad := []string{
		"22\t42128945\n",
		"22\t-5\trs1\tA\tG\t.\tPASS\t.\n",
		"22\t0\trs1\tA\tG\t.\tPASS\t.\n",
		"22\tpos\trs1\tA\tG\t.\tPASS\t.\n",
	}

	for n := 1; n <= 3; n++ {
		for m := 0; m <= len(bad); m++ {
			var sb strings.Builder
			sb.WriteString("##fileformat=VCFv4.2\n")
			for i := 0; i < n; i++ {
				sb.WriteString(good)
			}
			for i := 0; i < m; i++ {
				sb.WriteString(bad[i])
			}

			res, err := ParseBytes([]byte(sb.String()))
			require.NoError(t, err)
			assert.Len(t, res.Variants, n, "n=%d m=%d", n, m)
			assert.Len(t, res.Warnings, m, "n=%d m=%d", n, m)
			assert.True(t, res.Success())
		}
	}
}

func TestParseBytes_NoRecords(t *testing.T) {
	res, err := ParseBytes([]byte("##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"))
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 0, res.DataLines)

	res, err = ParseBytes([]byte("this is not\na variant file\n"))
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 2, res.DataLines)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, "Unknown", res.Version)
}

func TestParseBytes_WhitespaceSeparated(t *testing.T) {
	data, err := os.ReadFile(findTestFile(t, "space_separated.vcf"))
	require.NoError(t, err)

	res, err := ParseBytes(data)
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, "VCFv4.1", res.Version)
	assert.Equal(t, "rs12248560", res.Variants[1].ID)
	assert.False(t, res.Variants[1].HasGenotype())
	assert.Equal(t, 1, res.Variants[1].Copies(), "no genotype counts as one copy")
}

func TestParseBytes_Gzip(t *testing.T) {
	plain, err := os.ReadFile(findTestFile(t, "panel.vcf"))
	require.NoError(t, err)
	gz, err := os.ReadFile(findTestFile(t, "panel.vcf.gz"))
	require.NoError(t, err)

	a, err := ParseBytes(plain)
	require.NoError(t, err)
	b, err := ParseBytes(gz)
	require.NoError(t, err)

	require.Len(t, b.Variants, len(a.Variants))
	for i := range a.Variants {
		assert.Equal(t, a.Variants[i].Pos, b.Variants[i].Pos)
		assert.Equal(t, a.Variants[i].Genotype, b.Variants[i].Genotype)
	}
}

func TestParseBytes_MaxBytes(t *testing.T) {
	gz, err := os.ReadFile(findTestFile(t, "panel.vcf.gz"))
	require.NoError(t, err)

	_, err = ParseBytes(gz, WithMaxBytes(100))
	assert.True(t, errors.Is(err, ErrTooLarge), "limit applies after decompression: %v", err)

	plain, err := os.ReadFile(findTestFile(t, "panel.vcf"))
	require.NoError(t, err)
	_, err = ParseBytes(plain, WithMaxBytes(int64(len(plain))))
	assert.NoError(t, err, "content of exactly the limit is accepted")
}

func TestParseBytes_ByteOrderMark(t *testing.T) {
	content := "\ufeff##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"22\t42128945\trs3892097\tC\tT\t.\tPASS\t.\tGT\t1/1\n"

	res, err := ParseBytes([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "VCFv4.2", res.Version)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, []string{"S1"}, res.SampleNames)

	// Headerless file starting with a BOM.
	res, err = ParseBytes([]byte("\ufeff22\t42128945\trs3892097\tC\tT\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, "22", res.Variants[0].Chrom)
}

func TestParseBytes_InvalidUTF8(t *testing.T) {
	content := []byte("22\t42128945\trs3892097\tC\tT\t.\tPASS\t\xff\xfe\n")
	_, err := ParseBytes(content)
	assert.True(t, errors.Is(err, ErrInvalidEncoding))
}

func TestSplitMultiAllelic(t *testing.T) {
	tests := []struct {
		name     string
		alt      string
		expected int
	}{
		{"single allele", "C", 1},
		{"two alleles", "C,T", 2},
		{"three alleles", "C,T,G", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{
				Chrom:    "12",
				Pos:      100,
				Ref:      "A",
				Alt:      tt.alt,
				AltIndex: 1,
			}

			variants := SplitMultiAllelic(v)
			if len(variants) != tt.expected {
				t.Errorf("Expected %d variants, got %d", tt.expected, len(variants))
			}

			for i, split := range variants {
				if strings.Contains(split.Alt, ",") {
					t.Errorf("Split variant should not contain comma in alt: %s", split.Alt)
				}
				if split.AltIndex != i+1 {
					t.Errorf("Expected AltIndex %d, got %d", i+1, split.AltIndex)
				}
			}
		})
	}
}

func TestSplitMultiAllelic_Copies(t *testing.T) {
	v := &Variant{Ref: "A", Alt: "C,T", Genotype: ParseGenotype("1/2"), AltIndex: 1}
	split := SplitMultiAllelic(v)
	require.Len(t, split, 2)
	assert.Equal(t, 1, split[0].Copies())
	assert.Equal(t, 1, split[1].Copies())

	v = &Variant{Ref: "A", Alt: "C,T", Genotype: ParseGenotype("2/2"), AltIndex: 1}
	split = SplitMultiAllelic(v)
	assert.Equal(t, 0, split[0].Copies())
	assert.Equal(t, 2, split[1].Copies())
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "invalid position: abc",
	}

	expected := "vcf parse error at line 42: invalid position: abc"
	if err.Error() != expected {
		t.Errorf("Error message mismatch: got %q, want %q", err.Error(), expected)
	}
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	t.Fatalf("Test file not found: %s", name)
	return ""
}

// sliceParser replays fixed records.
type sliceParser struct {
	items []any // *Variant or error
	line  int
}

func (s *sliceParser) Next() (*Variant, error) {
	if s.line >= len(s.items) {
		return nil, nil
	}
	item := s.items[s.line]
	s.line++
	if err, ok := item.(error); ok {
		return nil, err
	}
	return item.(*Variant), nil
}

func (s *sliceParser) LineNumber() int       { return s.line }
func (s *sliceParser) Header() []string      { return nil }
func (s *sliceParser) Version() string       { return "" }
func (s *sliceParser) SampleNames() []string { return nil }
func (s *sliceParser) Close() error          { return nil }

func TestCollect(t *testing.T) {
	p := &sliceParser{items: []any{
		&Variant{Chrom: "22", Pos: 1, Ref: "A", Alt: "G"},
		&ParseError{Line: 2, Message: "bad POS"},
		&Variant{Chrom: "22", Pos: 3, Ref: "C", Alt: "T"},
	}}

	res, err := Collect(p)
	require.NoError(t, err)
	assert.Len(t, res.Variants, 2)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.DataLines)
	assert.Equal(t, "Unknown", res.Version)
	assert.True(t, res.Success())

	p = &sliceParser{items: []any{errors.New("disk gone")}}
	_, err = Collect(p)
	assert.EqualError(t, err, "disk gone")
}
