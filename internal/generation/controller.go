// Package generation drives content generation through an ordered list of
// attempts, each asking for less verbose output than the last, and keeps the
// most complete result seen.
package generation

import (
	"context"

	"grain-workers/internal/common/logger"
	"grain-workers/internal/common/metrics"
	"grain-workers/internal/models"
)

// DefaultMaxTokens is the output budget of every default attempt.
const DefaultMaxTokens = 2600

// Attempt configures one generation call.
type Attempt struct {
	// Compact appends the "shorten everything, emit minified JSON" instruction.
	Compact   bool `mapstructure:"compact" json:"compact"`
	MaxTokens int  `mapstructure:"max_tokens" json:"maxTokens"`
}

// DefaultAttempts is a normal attempt followed by a compact one.
var DefaultAttempts = []Attempt{
	{Compact: false, MaxTokens: DefaultMaxTokens},
	{Compact: true, MaxTokens: DefaultMaxTokens},
}

// Generator performs a single generation call, including any response
// format negotiation, and returns the coerced result.
type Generator interface {
	GenerateOnce(ctx context.Context, req models.GenerateRequest, attempt Attempt) (models.GenerateResult, error)
}

// Expectation is the size of a complete answer.
type Expectation struct {
	Chapters int
	Pairs    int
}

// Expect derives the expected counts for req: one chapter per stage and one
// dialogue and card per stage and country.
func Expect(req models.GenerateRequest) Expectation {
	stages := len(req.Stages())
	return Expectation{Chapters: stages, Pairs: stages * 2}
}

// Score orders results by chapter count, then dialogues, then cards.
func Score(r models.GenerateResult) int {
	return len(r.Chapters)*1000 + len(r.Dialogues)*10 + len(r.Cards)
}

// IsCompleteEnough reports whether r has at least the expected counts. Only
// counts are checked, not which (stage, country) slots are covered.
func IsCompleteEnough(r models.GenerateResult, exp Expectation) bool {
	return len(r.Chapters) >= exp.Chapters && len(r.Dialogues) >= exp.Pairs && len(r.Cards) >= exp.Pairs
}

// SlotCoverage is the fraction of wanted (stage, country) card slots that r
// actually fills. It is logged next to Score to expose count-only scoring
// accepting the wrong slots.
func SlotCoverage(r models.GenerateResult, req models.GenerateRequest) float64 {
	stages := req.Stages()
	if len(stages) == 0 {
		return 0
	}
	have := make(map[string]bool, len(r.Cards))
	for _, c := range r.Cards {
		have[models.SlotKey(models.NormalizeNodeTypeID(string(c.NodeTypeID)), c.CountryID)] = true
	}
	filled := 0
	for _, s := range stages {
		for _, country := range []string{req.CountryA, req.CountryB} {
			if have[models.SlotKey(s, country)] {
				filled++
			}
		}
	}
	return float64(filled) / float64(len(stages)*2)
}

// Report describes how a Generate call went.
type Report struct {
	Attempts  int
	BestScore int
	Complete  bool
	// Errors holds one entry per failed attempt, in order.
	Errors []error
}

type Controller struct {
	gen      Generator
	attempts []Attempt
	logger   logger.Logger
}

// NewController returns a controller that runs attempts in order. An empty
// list uses DefaultAttempts.
func NewController(gen Generator, attempts []Attempt, log logger.Logger) *Controller {
	if len(attempts) == 0 {
		attempts = DefaultAttempts
	}
	attempts = append([]Attempt(nil), attempts...)
	for i := range attempts {
		if attempts[i].MaxTokens <= 0 {
			attempts[i].MaxTokens = DefaultMaxTokens
		}
	}
	return &Controller{gen: gen, attempts: attempts, logger: log}
}

// Generate returns the first complete-enough result, otherwise the
// highest-scoring one. It fails only when every attempt failed.
func (c *Controller) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResult, error) {
	res, _, err := c.GenerateWithReport(ctx, req)
	return res, err
}

func (c *Controller) GenerateWithReport(ctx context.Context, req models.GenerateRequest) (models.GenerateResult, Report, error) {
	exp := Expect(req)
	var (
		best    models.GenerateResult
		hasBest bool
		lastErr error
		report  Report
	)

	for i, attempt := range c.attempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		report.Attempts = i + 1
		fields := map[string]interface{}{
			"attempt":   i + 1,
			"compact":   attempt.Compact,
			"maxTokens": attempt.MaxTokens,
		}

		res, err := c.gen.GenerateOnce(ctx, req, attempt)
		if err != nil {
			lastErr = err
			report.Errors = append(report.Errors, err)
			metrics.ObserveGenerationAttempt(i+1, "error")
			fields["error"] = err.Error()
			c.logger.Warn("Generation attempt failed", fields)
			continue
		}

		score := Score(res)
		if !hasBest || score > Score(best) {
			best, hasBest = res, true
		}
		fields["score"] = score
		fields["slotCoverage"] = SlotCoverage(res, req)

		if IsCompleteEnough(res, exp) {
			metrics.ObserveGenerationAttempt(i+1, "complete")
			c.logger.Info("Generation attempt complete", fields)
			report.BestScore = score
			report.Complete = true
			return res, report, nil
		}
		metrics.ObserveGenerationAttempt(i+1, "partial")
		c.logger.Info("Generation attempt incomplete", fields)
	}

	if hasBest {
		report.BestScore = Score(best)
		return best, report, nil
	}
	return models.GenerateResult{}, report, lastErr
}
