// Package explain requests clinical explanations from a text-generation service.
// Explanations are an enhancement layered on a finished analysis; callers
// treat every failure here as "no explanation".
package explain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMalformedResponse is returned when the provider's reply has no usable explanation.
	ErrMalformedResponse = errors.New("malformed explanation response")
	// ErrDisabled is returned by providers that are not configured.
	ErrDisabled = errors.New("explanation provider disabled")
)

// DetectedVariant is a variant listed in the explanation prompt.
type DetectedVariant struct {
	RsID string `json:"rsid"`
	Gene string `json:"gene"`
	Star string `json:"star"`
}

// Request is the structured profile and risk the explanation is about.
type Request struct {
	Gene       string            `json:"gene"`
	Diplotype  string            `json:"diplotype"`
	Phenotype  string            `json:"phenotype"`
	Drug       string            `json:"drug"`
	RiskLabel  string            `json:"risk_label"`
	Severity   string            `json:"severity"`
	Confidence float64           `json:"confidence_score"`
	Action     string            `json:"action"`
	Variants   []DetectedVariant `json:"detected_variants"`
}

// Explanation is the provider's structured answer.
type Explanation struct {
	Summary                    string   `json:"summary"`
	BiologicalMechanism        string   `json:"biological_mechanism"`
	ClinicalSignificance       string   `json:"clinical_significance"`
	CPICGuidelineReference     string   `json:"cpic_guideline_reference"`
	AlternativeRecommendations []string `json:"alternative_recommendations"`
}

// Provider produces an explanation for a request.
type Provider interface {
	Explain(ctx context.Context, req Request) (*Explanation, error)
}

// Disabled is a Provider that always fails with ErrDisabled.
type Disabled struct{}

// Explain implements Provider.
func (Disabled) Explain(context.Context, Request) (*Explanation, error) {
	return nil, ErrDisabled
}

// Future is a pending explanation.
type Future struct {
	ctx  context.Context
	done chan struct{}
	exp  *Explanation
	err  error
}

// Start runs p.Explain in the background, bounded by timeout (0 = bounded by ctx only).
// Cancelling ctx cancels the call.
func Start(ctx context.Context, p Provider, req Request, timeout time.Duration) *Future {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	f := &Future{ctx: callCtx, done: make(chan struct{})}

	go func() {
		defer cancel()
		defer close(f.done)
		f.exp, f.err = p.Explain(callCtx, req)
	}()
	return f
}

// Wait blocks until the explanation is ready or the deadline passes,
// even if the provider ignores cancellation.
func (f *Future) Wait() (*Explanation, error) {
	select {
	case <-f.done:
		return f.exp, f.err
	case <-f.ctx.Done():
		select {
		case <-f.done:
			return f.exp, f.err
		default:
			return nil, f.ctx.Err()
		}
	}
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
