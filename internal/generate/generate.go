// Package generate loads a prompt template once and renders it against a
// merged transcript to produce structured meeting minutes via a single
// non-streaming LLM call.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/model"
	"github.com/junzi314/minutes/pkg/provider/llm"
)

// placeholderToken is the single substitution point inside the prompt
// template. It is replaced with the merged transcript via literal
// strings.Replace, never text/template or fmt.Sprintf, so that nothing in
// the transcript can be interpreted as template syntax.
const placeholderToken = "{{TRANSCRIPT}}"

// Config configures a Generator.
type Config struct {
	Model              string
	MaxTokens          int
	Temperature        float64
	PromptTemplatePath string
	MaxRetries         int
}

// Generator renders the configured prompt template against a transcript and
// asks the LLM provider for structured minutes.
type Generator struct {
	provider llm.Provider
	cfg      Config
	template string
}

// New loads the prompt template from cfg.PromptTemplatePath and returns a
// Generator bound to provider. The template must contain exactly one
// occurrence of the placeholder token.
func New(provider llm.Provider, cfg Config) (*Generator, error) {
	raw, err := os.ReadFile(cfg.PromptTemplatePath)
	if err != nil {
		return nil, errs.Config(fmt.Errorf("generate: read prompt template %q: %w", cfg.PromptTemplatePath, err))
	}
	template := string(raw)
	if strings.Count(template, placeholderToken) != 1 {
		return nil, errs.Config(fmt.Errorf("generate: prompt template %q must contain exactly one %s placeholder, found %d",
			cfg.PromptTemplatePath, placeholderToken, strings.Count(template, placeholderToken)))
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Generator{provider: provider, cfg: cfg, template: template}, nil
}

// Generate renders the template against transcript and asks the LLM to
// produce minutes, retrying transient failures.
func (g *Generator) Generate(ctx context.Context, transcript string) (model.Minutes, error) {
	prompt := strings.Replace(g.template, placeholderToken, transcript, 1)

	req := llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			if retryAfter, ok := retryAfterHint(lastErr); ok {
				wait = retryAfter
			}
			select {
			case <-ctx.Done():
				return "", errs.Generation(ctx.Err())
			case <-time.After(wait):
			}
			backoff *= 2
		}

		resp, err := g.provider.Complete(ctx, req)
		if err == nil {
			if resp == nil || strings.TrimSpace(resp.Content) == "" {
				return "", errs.Generation(errors.New("empty content in LLM response"))
			}
			return model.Minutes(resp.Content), nil
		}

		lastErr = err
		if !isRetryable(err) {
			return "", errs.Generation(err)
		}
	}

	return "", errs.Generation(fmt.Errorf("exhausted %d retries: %w", g.cfg.MaxRetries, lastErr))
}

// statusCoder is implemented by provider error types (e.g. openai-go's
// *openai.Error) that carry the HTTP status code of a failed request.
type statusCoder interface {
	StatusCode() int
}

// retryAfterer is implemented by provider error types that can surface a
// Retry-After hint from the response.
type retryAfterer interface {
	RetryAfter() (time.Duration, bool)
}

// isRetryable reports whether err should be retried: 429, 5xx, or a
// transport-level error with no status code at all. 400/401/413 and other
// non-retryable 4xx are fatal for the invocation.
func isRetryable(err error) bool {
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code == http.StatusTooManyRequests || code >= 500 {
			return true
		}
		return false
	}
	// No status code available — treat as a transport error and retry.
	return true
}

func retryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var ra retryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0, false
}

// ParseRetryAfterHeader parses an HTTP Retry-After header value (seconds
// form only; this service's providers do not use the HTTP-date form).
func ParseRetryAfterHeader(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
