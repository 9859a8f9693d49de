// Package advisor turns a financial table into a narrative recommendation
// using a hosted completion service, with a static fallback report.
package advisor

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/KaramelBytes/aicfo/internal/ai"
	"github.com/KaramelBytes/aicfo/internal/analysis"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Temperature is the sampling temperature sent with every request.
const Temperature = 0.2

var errEmptyNarrative = errors.New("completion response contained no text")

// Outcome is the state of the results panel after a trigger.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNoKey    Outcome = "no_key"
	OutcomeFallback Outcome = "fallback"
)

// CredentialSource resolves the API key. *secrets.Resolver implements it.
type CredentialSource interface {
	Resolve() (value, source string, err error)
}

// RuntimeFactory builds a completion runtime for a resolved key.
type RuntimeFactory func(apiKey string) ai.Runtime

// Recommendation is the result of one trigger.
type Recommendation struct {
	ID        string
	Outcome   Outcome
	Model     string
	Prompt    string
	Narrative string
	// Err is the raw failure, shown verbatim for NoKey and Fallback.
	Err      error
	Fallback string
	Duration time.Duration

	// Set on success from the provider's response.
	ResponseID string
	RequestID  string
	Usage      ai.Usage
}

// ErrorText returns the raw error message or "".
func (r *Recommendation) ErrorText() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Advisor struct {
	creds      CredentialSource
	newRuntime RuntimeFactory
	model      string
	log        logrus.FieldLogger
}

// New returns an Advisor. A nil logger discards output.
func New(creds CredentialSource, newRuntime RuntimeFactory, model string, log logrus.FieldLogger) *Advisor {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Advisor{creds: creds, newRuntime: newRuntime, model: model, log: log}
}

// Recommend performs one independent request for the given snapshot. It
// never returns nil; failures are reported through Outcome and Err.
func (a *Advisor) Recommend(ctx context.Context, t *analysis.Table, k analysis.KPIs) *Recommendation {
	start := time.Now()
	rec := &Recommendation{ID: uuid.NewString(), Model: a.model}
	log := a.log.WithFields(logrus.Fields{"trigger_id": rec.ID, "model": a.model})
	defer func() {
		rec.Duration = time.Since(start)
		entry := log.WithFields(logrus.Fields{"outcome": rec.Outcome, "duration": rec.Duration})
		if rec.Err != nil {
			entry.WithError(rec.Err).Warn("recommendation failed")
			return
		}
		if rec.Outcome == OutcomeSuccess {
			entry = entry.WithFields(logrus.Fields{
				"response_id":         rec.ResponseID,
				"response_model":      rec.Model,
				"provider_request_id": rec.RequestID,
				"prompt_tokens":       rec.Usage.PromptTokens,
				"completion_tokens":   rec.Usage.CompletionTokens,
				"total_tokens":        rec.Usage.TotalTokens,
			})
		}
		entry.Info("recommendation completed")
	}()

	key, source, err := a.creds.Resolve()
	if err == nil && key == "" {
		err = errors.New("resolved API key is empty")
	}
	if err != nil {
		rec.Outcome = OutcomeNoKey
		rec.Err = err
		return rec
	}
	log = log.WithField("credential_source", source)

	rec.Prompt = BuildPrompt(t)
	log.WithField("prompt_chars", len(rec.Prompt)).Debug("requesting recommendation")
	resp, err := a.newRuntime(key).Generate(ctx, ai.GenerateRequest{
		Model:       a.model,
		Messages:    []ai.Message{{Role: "user", Content: rec.Prompt}},
		Temperature: Temperature,
	})
	if err == nil && resp.Text() == "" {
		err = errEmptyNarrative
	}
	if err != nil {
		rec.Outcome = OutcomeFallback
		rec.Err = err
		rec.Fallback = FallbackReport(k)
		return rec
	}
	rec.Outcome = OutcomeSuccess
	rec.Narrative = resp.Text()
	rec.ResponseID = resp.ID
	rec.RequestID = resp.RequestID
	rec.Usage = resp.Usage
	if resp.Model != "" {
		rec.Model = resp.Model
	}
	return rec
}
