package vcf

import (
	"bytes"
	"errors"
	"io"
)

// ParseResult is the outcome of parsing a whole upload.
type ParseResult struct {
	Variants    []*Variant
	Warnings    []*ParseError
	Version     string
	Header      []string // '#' lines as read
	SampleNames []string
	DataLines   int // non-header, non-blank lines seen
}

// Success reports whether at least one well-formed record was produced.
// Skipped lines do not affect it.
func (r *ParseResult) Success() bool {
	return len(r.Variants) > 0
}

// WarningMessages returns the warnings as strings.
func (r *ParseResult) WarningMessages() []string {
	msgs := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		msgs[i] = w.Error()
	}
	return msgs
}

// ParseBytes parses an in-memory VCF (plain or gzipped).
// Malformed records become warnings; only I/O, encoding and size errors are returned.
func ParseBytes(content []byte, opts ...Option) (*ParseResult, error) {
	return ParseReader(bytes.NewReader(content), opts...)
}

// ParseReader is ParseBytes for a stream.
func ParseReader(r io.Reader, opts ...Option) (*ParseResult, error) {
	p, err := NewParserFromReader(r, opts...)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return Collect(p)
}

// Collect drains p into a ParseResult.
func Collect(p VariantParser) (*ParseResult, error) {
	res := &ParseResult{
		Version:     p.Version(),
		Header:      p.Header(),
		SampleNames: p.SampleNames(),
	}
	if res.Version == "" {
		res.Version = "Unknown"
	}

	for {
		v, err := p.Next()
		var pe *ParseError
		switch {
		case errors.As(err, &pe):
			res.DataLines++
			res.Warnings = append(res.Warnings, pe)
			continue
		case err != nil:
			return nil, err
		case v == nil:
			return res, nil
		}
		res.DataLines++
		res.Variants = append(res.Variants, v)
	}
}
