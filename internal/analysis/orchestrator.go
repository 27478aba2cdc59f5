// Package analysis composes parsing, allele matching, diplotype resolution
// and risk evaluation into one request/response cycle.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/pharmaguard/internal/allele"
	"github.com/inodb/pharmaguard/internal/diplotype"
	"github.com/inodb/pharmaguard/internal/explain"
	"github.com/inodb/pharmaguard/internal/knowledge"
	"github.com/inodb/pharmaguard/internal/risk"
	"github.com/inodb/pharmaguard/internal/vcf"
)

// DefaultMaxFileSize is the upload limit (10 MB).
const DefaultMaxFileSize = 10 << 20

// Unknown fills profile fields that could not be determined.
const Unknown = "Unknown"

// Options configures an Orchestrator.
type Options struct {
	MaxFileSize    int64         // applied to the upload and to its decompressed content
	ExplainTimeout time.Duration // bound on one explanation request
	Workers        int           // worker pool size for multi-drug analysis
}

// Upload is a validated, parsed variant file.
type Upload struct {
	PatientID string
	Parse     *vcf.ParseResult
}

// Orchestrator runs analyses. It holds only read-only state and is safe
// for concurrent use.
type Orchestrator struct {
	kb       *knowledge.Base
	matcher  *allele.Matcher
	resolver *diplotype.Resolver
	engine   *risk.Engine
	provider explain.Provider
	opts     Options
	logger   *zap.Logger
}

// New creates an orchestrator. provider may be nil to skip explanations.
func New(kb *knowledge.Base, provider explain.Provider, opts Options) *Orchestrator {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.ExplainTimeout <= 0 {
		opts.ExplainTimeout = 30 * time.Second
	}
	return &Orchestrator{
		kb:       kb,
		matcher:  allele.NewMatcher(kb),
		resolver: diplotype.NewResolver(kb),
		engine:   risk.NewEngine(kb),
		provider: provider,
		opts:     opts,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for the orchestrator and its components.
func (o *Orchestrator) SetLogger(l *zap.Logger) {
	o.logger = l
	o.matcher.SetLogger(l)
	o.resolver.SetLogger(l)
	o.engine.SetLogger(l)
}

// Engine returns the rule engine (supported drugs, drug to gene mapping).
func (o *Orchestrator) Engine() *risk.Engine {
	return o.engine
}

// KnowledgeVersion returns the version of the loaded knowledge base.
func (o *Orchestrator) KnowledgeVersion() string {
	return o.kb.Version()
}

// MaxFileSize returns the configured upload limit.
func (o *Orchestrator) MaxFileSize() int64 {
	return o.opts.MaxFileSize
}

// PatientID derives a stable identifier from the uploaded bytes.
func PatientID(content []byte) string {
	sum := sha256.Sum256(content)
	return "PATIENT_" + strings.ToUpper(hex.EncodeToString(sum[:]))[:12]
}

// Prepare validates and parses an upload. All failures are *InputError.
func (o *Orchestrator) Prepare(content []byte) (*Upload, error) {
	if len(content) == 0 {
		return nil, newInputError(ErrEmptyFile, "no content uploaded")
	}
	if int64(len(content)) > o.opts.MaxFileSize {
		return nil, newInputError(ErrFileTooLarge, "%d bytes, limit %d", len(content), o.opts.MaxFileSize)
	}

	res, err := vcf.ParseBytes(content, vcf.WithMaxBytes(o.opts.MaxFileSize))
	if err != nil {
		if errors.Is(err, vcf.ErrTooLarge) {
			return nil, newInputError(ErrFileTooLarge, "decompressed content exceeds %d bytes", o.opts.MaxFileSize)
		}
		return nil, newInputError(ErrUnreadableFormat, "%v", err)
	}
	if !res.Success() {
		if res.DataLines == 0 {
			return nil, newInputError(ErrNoVariants, "file contains no data lines")
		}
		return nil, newInputError(ErrUnreadableFormat, "none of %d data lines could be parsed", res.DataLines)
	}

	up := &Upload{PatientID: PatientID(content), Parse: res}
	o.logger.Debug("parsed upload",
		zap.String("patient_id", up.PatientID),
		zap.Int("variants", len(res.Variants)),
		zap.Int("warnings", len(res.Warnings)))
	return up, nil
}

// Analyze runs the full pipeline for one drug.
func (o *Orchestrator) Analyze(ctx context.Context, content []byte, drug string) (*Result, error) {
	if strings.TrimSpace(drug) == "" {
		return nil, newInputError(ErrMissingDrug, "")
	}
	up, err := o.Prepare(content)
	if err != nil {
		return nil, err
	}
	return o.analyzeParsed(ctx, up, drug), nil
}

// AnalyzeDrugs parses once and evaluates every drug on a worker pool.
// Results are returned in the order of drugs.
func (o *Orchestrator) AnalyzeDrugs(ctx context.Context, content []byte, drugs []string) ([]*Result, error) {
	var cleaned []string
	for _, d := range drugs {
		if strings.TrimSpace(d) != "" {
			cleaned = append(cleaned, d)
		}
	}
	if len(cleaned) == 0 {
		return nil, newInputError(ErrMissingDrug, "")
	}
	up, err := o.Prepare(content)
	if err != nil {
		return nil, err
	}

	items := make(chan WorkItem)
	go func() {
		defer close(items)
		for i, d := range cleaned {
			items <- WorkItem{Seq: i, Drug: d}
		}
	}()

	workers := o.opts.Workers
	if workers <= 0 || workers > len(cleaned) {
		workers = len(cleaned)
	}

	results := make([]*Result, 0, len(cleaned))
	err = OrderedCollect(o.ParallelAnalyze(ctx, up, items, workers), func(r WorkResult) error {
		results = append(results, r.Result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// analyzeParsed evaluates one drug. Knowledge-base misses produce Unknown
// fields, never errors.
func (o *Orchestrator) analyzeParsed(ctx context.Context, up *Upload, drug string) *Result {
	name := o.engine.CanonicalDrug(drug)
	res := &Result{
		PatientID: up.PatientID,
		Drug:      name,
		QualityMetrics: QualityMetrics{
			VCFParsingSuccess: up.Parse.Success(),
			VariantsDetected:  len(up.Parse.Variants),
			ParseWarnings:     up.Parse.WarningMessages(),
			VCFVersion:        up.Parse.Version,
		},
	}

	gene, ok := o.engine.GeneForDrug(name).Get()
	if !ok {
		o.logger.Info("drug not mapped to a gene", zap.String("drug", name))
		a := risk.UnknownAssessment(Unknown, name, knowledge.PhenotypeUnknown)
		res.PharmacogenomicProfile = Profile{
			PrimaryGene:      Unknown,
			Diplotype:        Unknown,
			Phenotype:        Unknown,
			DetectedVariants: []DetectedVariant{},
		}
		res.RiskAssessment, res.ClinicalRecommendation = riskFields(a)
		return res
	}

	call := o.matcher.Match(up.Parse.Variants, gene)
	dip := o.resolver.Resolve(gene, call)
	a := o.engine.Assess(name, gene, dip.Phenotype)

	res.PharmacogenomicProfile = Profile{
		PrimaryGene:      gene,
		Diplotype:        dip.Diplotype,
		Phenotype:        string(dip.PhenotypeOrUnknown()),
		DetectedVariants: detectedVariants(call),
	}
	res.RiskAssessment, res.ClinicalRecommendation = riskFields(a)
	res.QualityMetrics.GenesAnalyzed = 1

	if o.provider != nil {
		res.LLMGeneratedExplanation = o.explain(ctx, res)
	}
	return res
}

// explain requests an explanation; failures are logged and yield {}.
func (o *Orchestrator) explain(ctx context.Context, res *Result) ExplanationPayload {
	req := explain.Request{
		Gene:       res.PharmacogenomicProfile.PrimaryGene,
		Diplotype:  res.PharmacogenomicProfile.Diplotype,
		Phenotype:  res.PharmacogenomicProfile.Phenotype,
		Drug:       res.Drug,
		RiskLabel:  res.RiskAssessment.RiskLabel,
		Severity:   res.RiskAssessment.Severity,
		Confidence: res.RiskAssessment.ConfidenceScore,
		Action:     res.ClinicalRecommendation.Action,
	}
	for _, v := range res.PharmacogenomicProfile.DetectedVariants {
		req.Variants = append(req.Variants, explain.DetectedVariant(v))
	}

	exp, err := explain.Start(ctx, o.provider, req, o.opts.ExplainTimeout).Wait()
	if err != nil {
		if errors.Is(err, explain.ErrDisabled) {
			o.logger.Debug("explanation disabled")
		} else {
			o.logger.Warn("explanation unavailable",
				zap.String("patient_id", res.PatientID),
				zap.String("drug", res.Drug),
				zap.Error(err))
		}
		return ExplanationPayload{}
	}
	return ExplanationPayload{Explanation: exp}
}

func riskFields(a risk.Assessment) (RiskAssessment, ClinicalRecommendation) {
	return RiskAssessment{
			RiskLabel:       string(a.RiskLabel),
			Severity:        string(a.Severity),
			ConfidenceScore: a.Confidence,
		}, ClinicalRecommendation{
			Action:           a.Action,
			DosingAdjustment: a.DosingAdjustment,
			Monitoring:       a.Monitoring,
		}
}

func detectedVariants(call knowledge.Maybe[*allele.Call]) []DetectedVariant {
	out := []DetectedVariant{}
	c, ok := call.Get()
	if !ok {
		return out
	}
	for _, m := range c.Matches {
		out = append(out, DetectedVariant{RsID: m.RsID, Gene: m.Gene, Star: m.Star})
	}
	return out
}

// ParseProfile parses an upload and infers a diplotype for every catalog
// gene with detected variants, without evaluating any drug.
func (o *Orchestrator) ParseProfile(content []byte) (*ProfileReport, error) {
	up, err := o.Prepare(content)
	if err != nil {
		return nil, err
	}

	report := &ProfileReport{
		PatientID:           up.PatientID,
		VCFVersion:          up.Parse.Version,
		TotalLinesProcessed: up.Parse.DataLines,
		VariantsParsed:      len(up.Parse.Variants),
		GenesFound:          []string{},
		Variants:            []DetectedVariant{},
		Genes:               []GeneProfile{},
		ParseWarnings:       up.Parse.WarningMessages(),
	}

	for _, call := range o.Calls(up) {
		dip := o.resolver.Resolve(call.Gene, knowledge.Found(call))
		variants := detectedVariants(knowledge.Found(call))
		report.GenesFound = append(report.GenesFound, call.Gene)
		report.Variants = append(report.Variants, variants...)
		report.Genes = append(report.Genes, GeneProfile{
			Gene:      call.Gene,
			Diplotype: dip.Diplotype,
			Phenotype: string(dip.PhenotypeOrUnknown()),
			Variants:  variants,
		})
	}
	report.TotalVariants = len(report.Variants)
	return report, nil
}

// Calls returns the allele call of every catalog gene with detected variants.
func (o *Orchestrator) Calls(up *Upload) []*allele.Call {
	return o.matcher.MatchAll(up.Parse.Variants)
}

// AssessRisk evaluates a rule from a gene and diplotype given directly.
func (o *Orchestrator) AssessRisk(gene, diplotypeStr, drug string) (*RiskReport, error) {
	if strings.TrimSpace(drug) == "" {
		return nil, newInputError(ErrMissingDrug, "")
	}
	gene = strings.ToUpper(strings.TrimSpace(gene))
	dip := o.resolver.ResolveDiplotype(gene, diplotypeStr)
	a := o.engine.Assess(drug, dip.Gene, dip.Phenotype)

	return &RiskReport{
		Gene:             dip.Gene,
		Diplotype:        dip.Diplotype,
		Phenotype:        string(dip.PhenotypeOrUnknown()),
		Drug:             a.Drug,
		RiskLabel:        string(a.RiskLabel),
		Severity:         string(a.Severity),
		ConfidenceScore:  a.Confidence,
		Action:           a.Action,
		DosingAdjustment: a.DosingAdjustment,
		Monitoring:       a.Monitoring,
	}, nil
}
