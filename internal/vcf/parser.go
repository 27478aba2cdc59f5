package vcf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidEncoding is returned for content that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("vcf content is not valid UTF-8")
	// ErrTooLarge is returned when the (decompressed) content exceeds the configured limit.
	ErrTooLarge = errors.New("vcf content exceeds size limit")
)

// minFields is CHROM POS ID REF ALT.
const minFields = 5

// Option configures a Parser.
type Option func(*Parser)

// WithMaxBytes limits the number of decompressed bytes the parser will read.
func WithMaxBytes(n int64) Option {
	return func(p *Parser) { p.maxBytes = n }
}

// Parser reads variants from a VCF stream.
// Header lines are optional: the first line not starting with '#' ends the header.
type Parser struct {
	reader      *bufio.Reader
	file        *os.File
	gzipReader  *gzip.Reader
	lineNumber  int
	header      []string
	sampleNames []string // sample names from #CHROM header line
	version     string
	pending     string
	hasPending  bool
	maxBytes    int64
}

// NewParser creates a new VCF parser for the given file.
// Supports both plain VCF and gzipped VCF (.vcf.gz) files.
func NewParser(path string, opts ...Option) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin, opts...)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p, err := NewParserFromReader(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.file = file
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin or an upload).
// Gzip input is detected from its magic bytes and decompressed transparently.
func NewParserFromReader(r io.Reader, opts ...Option) (*Parser, error) {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}

	br := bufio.NewReader(r)
	// Check for gzip magic number (0x1f, 0x8b)
	magic, _ := br.Peek(2)
	var src io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.gzipReader = gz
		src = gz
	}
	if p.maxBytes > 0 {
		src = &limitReader{r: src, remaining: p.maxBytes}
	}
	p.reader = bufio.NewReader(src)

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// readLine returns the next line without its terminator.
// ok is false at end of input.
func (p *Parser) readLine() (line string, ok bool, err error) {
	if p.hasPending {
		p.hasPending = false
		return p.pending, true, nil
	}
	line, err = p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	if err == io.EOF && line == "" {
		return "", false, nil
	}
	p.lineNumber++
	if !utf8.ValidString(line) {
		return "", false, fmt.Errorf("line %d: %w", p.lineNumber, ErrInvalidEncoding)
	}
	if p.lineNumber == 1 {
		line = strings.TrimPrefix(line, "\ufeff")
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

// parseHeader reads and stores VCF header lines.
func (p *Parser) parseHeader() error {
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if !ok {
			return nil
		}

		if strings.HasPrefix(line, "##fileformat=") {
			p.version = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
		}

		if strings.HasPrefix(line, "#CHROM") {
			p.header = append(p.header, line)
			// Extract sample names from columns after FORMAT (index 9+)
			fields := strings.Split(line, "\t")
			if len(fields) < 8 {
				fields = strings.Fields(line)
			}
			if len(fields) > 9 {
				p.sampleNames = fields[9:]
			}
			return nil
		}

		if strings.HasPrefix(line, "#") {
			p.header = append(p.header, line)
			continue
		}

		// First data line: headerless input.
		p.pending, p.hasPending = line, true
		return nil
	}
}

// Next reads the next variant from the VCF stream.
// Returns nil, nil when there are no more variants.
// A malformed record is reported as a *ParseError; the parser stays usable
// and the following call continues with the next line.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if !ok {
			return nil, nil
		}

		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return p.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Variant.
func (p *Parser) parseLine(line string) (*Variant, error) {
	line = strings.TrimSpace(line)
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		// Hand-edited files are often space separated.
		fields = strings.Fields(line)
	}
	if len(fields) < minFields {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("insufficient columns (%d found, minimum %d expected)", len(fields), minFields),
		}
	}

	if fields[0] == "" {
		return nil, &ParseError{Line: p.lineNumber, Message: "empty chromosome"}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos <= 0 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	v := &Variant{
		Chrom:    fields[0],
		Pos:      pos,
		ID:       fields[2],
		Ref:      strings.ToUpper(fields[3]),
		Alt:      strings.ToUpper(fields[4]),
		Filter:   field(fields, 6),
		Info:     parseInfo(field(fields, 7)),
		RawInfo:  rawInfo(field(fields, 7)),
		AltIndex: 1,
		Line:     p.lineNumber,
	}

	if q := field(fields, 5); q != "" && q != "." {
		v.Qual, _ = strconv.ParseFloat(q, 64)
	}

	// Capture FORMAT + sample columns if present
	if len(fields) > 9 {
		v.Format = fields[8]
		v.Samples = fields[9:]
		v.Genotype = firstSampleGenotype(v.Format, v.Samples[0])
	}

	return v, nil
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// firstSampleGenotype extracts GT from a sample column using the FORMAT keys.
func firstSampleGenotype(format, sample string) Genotype {
	keys := strings.Split(format, ":")
	values := strings.Split(sample, ":")
	for i, k := range keys {
		if k == "GT" {
			if i < len(values) {
				return ParseGenotype(values[i])
			}
			break
		}
	}
	return Genotype{}
}

func rawInfo(info string) string {
	if info == "" {
		return "."
	}
	return info
}

// parseInfo parses the INFO field into a map.
func parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." || info == "" {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		} else {
			// Flag-type INFO field
			result[parts[0]] = true
		}
	}

	return result
}

// SplitMultiAllelic splits a multi-allelic variant into separate variants.
// Each split variant keeps the genotype and records its AltIndex, so
// Copies() counts the right allele.
func SplitMultiAllelic(v *Variant) []*Variant {
	alts := strings.Split(v.Alt, ",")
	if len(alts) == 1 {
		return []*Variant{v}
	}

	variants := make([]*Variant, len(alts))
	for i, alt := range alts {
		split := *v
		split.Alt = alt
		split.AltIndex = i + 1
		variants[i] = &split
	}

	return variants
}

// Header returns the VCF header lines.
func (p *Parser) Header() []string {
	return p.header
}

// Version returns the ##fileformat value, or "" when absent.
func (p *Parser) Version() string {
	return p.version
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(b []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe for more data so content of exactly the limit is accepted.
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if int64(len(b)) > l.remaining {
		b = b[:l.remaining]
	}
	n, err := l.r.Read(b)
	l.remaining -= int64(n)
	return n, err
}
