package vcf

// VariantParser reads records one at a time. Next returns nil, nil at end of
// input and a *ParseError for a record that was skipped.
type VariantParser interface {
	Next() (*Variant, error)
	LineNumber() int
	Header() []string
	Version() string
	SampleNames() []string
	Close() error
}

var _ VariantParser = (*Parser)(nil)
