package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults for an OpenAI-compatible chat-completions endpoint.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

const systemPrompt = "You are a helpful clinical pharmacogenomics expert."

// Config configures the chat-completions client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration // per attempt
	MaxRetries  int           // extra attempts after the first
	RateLimit   float64       // requests per second
}

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:     zap.NewNop(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "explain",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// SetLogger sets the logger for warning messages.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Explain implements Provider. Transient failures are retried up to MaxRetries times.
func (c *Client) Explain(ctx context.Context, req Request) (*Explanation, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.complete(ctx, req)
		})
		if err == nil {
			return out.(*Explanation), nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
		c.logger.Warn("explanation attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("explain %s/%s: %w", req.Gene, req.Drug, lastErr)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// StatusError is a non-2xx reply from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("explanation API returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) complete(ctx context.Context, req Request) (*Explanation, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return ParseExplanation(cr.Choices[0].Message.Content)
}

// retryable reports whether another attempt could succeed.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// BuildPrompt renders the user prompt for a request.
func BuildPrompt(req Request) string {
	variants := make([]string, 0, len(req.Variants))
	for _, v := range req.Variants {
		star := v.Star
		if star == "" {
			star = "unassigned"
		}
		variants = append(variants, fmt.Sprintf("%s (%s, %s)", v.RsID, v.Gene, star))
	}
	detected := strings.Join(variants, ", ")
	if detected == "" {
		detected = "none"
	}

	var b strings.Builder
	b.WriteString("You are a clinical pharmacogenomics expert. Given the following patient data, generate a structured clinical explanation.\n\n")
	b.WriteString("Patient Genetic Data:\n")
	fmt.Fprintf(&b, "- Gene: %s\n", req.Gene)
	fmt.Fprintf(&b, "- Diplotype: %s\n", req.Diplotype)
	fmt.Fprintf(&b, "- Phenotype: %s\n", req.Phenotype)
	fmt.Fprintf(&b, "- Drug: %s\n", req.Drug)
	fmt.Fprintf(&b, "- Risk Level: %s (severity %s, confidence %.2f)\n", req.RiskLabel, req.Severity, req.Confidence)
	fmt.Fprintf(&b, "- Recommended Action: %s\n", req.Action)
	fmt.Fprintf(&b, "- Detected Variants: %s\n\n", detected)
	b.WriteString(`Generate a response in this EXACT JSON format:
{
  "summary": "2-3 sentence plain English summary of why this patient has this risk",
  "biological_mechanism": "explain how the variant affects drug metabolism at molecular level",
  "clinical_significance": "what happens clinically if this drug is given as-is",
  "cpic_guideline_reference": "cite the relevant CPIC guideline",
  "alternative_recommendations": ["list", "of", "safer", "alternatives"]
}

Be specific. Cite the rsID variants. Use clinical terminology but stay accessible.`)
	return b.String()
}
