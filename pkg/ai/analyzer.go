package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/logger"
)

const (
	// MaxBodyChars bounds how much of the body is sent to the model.
	MaxBodyChars = 4000

	NoContentSummary = "This email has no text content to analyze."
)

// DefaultGenerationConfig is used for every analysis call.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.3,
	MaxOutputTokens: 500,
	JSON:            true,
}

// Analyzer turns an email into an Analysis using a Generator.
type Analyzer struct {
	gen     Generator
	timeout time.Duration
	cfg     GenerationConfig
}

func NewAnalyzer(gen Generator, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{gen: gen, timeout: timeout, cfg: DefaultGenerationConfig}
}

// NoContentAnalysis is the fixed result for an email without text.
func NoContentAnalysis() emaildomain.Analysis {
	summary := NoContentSummary
	return emaildomain.Analysis{
		Summary:      &summary,
		Category:     emaildomain.CategoryOther,
		Sentiment:    emaildomain.SentimentNeutral,
		ActionPoints: []string{},
	}
}

// FailedAnalysis is the safe result when the model could not be used. Its Summary is nil.
func FailedAnalysis() emaildomain.Analysis {
	return emaildomain.Analysis{
		Category:     emaildomain.CategoryOther,
		Sentiment:    emaildomain.SentimentNeutral,
		ActionPoints: []string{},
	}
}

// Analyze never fails for model, safety, parse or timeout problems; those yield FailedAnalysis.
// The only error is a *RateLimitError, returned together with FailedAnalysis so the caller can back off.
func (a *Analyzer) Analyze(ctx context.Context, subject, body string) (emaildomain.Analysis, error) {
	if strings.TrimSpace(body) == "" {
		return NoContentAnalysis(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.gen.Generate(ctx, BuildPrompt(subject, body), a.cfg)
	if err != nil {
		if rl, ok := AsRateLimit(err); ok {
			return FailedAnalysis(), rl
		}
		logger.For("ai").WithError(err).Warn("analysis failed, using fallback")
		return FailedAnalysis(), nil
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		logger.For("ai").WithError(err).Warn("unparseable model output, using fallback")
		return FailedAnalysis(), nil
	}
	return analysis, nil
}

// BuildPrompt asks for exactly the four analysis fields as bare JSON.
func BuildPrompt(subject, body string) string {
	categories := make([]string, 0, len(emaildomain.Categories))
	for _, c := range emaildomain.Categories {
		categories = append(categories, fmt.Sprintf("%q", string(c)))
	}
	sentiments := make([]string, 0, len(emaildomain.Sentiments))
	for _, s := range emaildomain.Sentiments {
		sentiments = append(sentiments, fmt.Sprintf("%q", string(s)))
	}

	return fmt.Sprintf(`You are an email assistant. Analyze the email below.
Respond with ONLY a JSON object, no markdown and no other text, with exactly these four fields:
"summary": a concise summary of the email in one or two sentences,
"category": one of %s,
"sentiment": one of %s,
"actionPoints": an array of short strings, each a concrete action the recipient should take (an empty array if there are none).

Subject: %s

Body:
%s`, strings.Join(categories, ", "), strings.Join(sentiments, ", "), subject, Truncate(body, MaxBodyChars))
}

// Truncate keeps at most n characters of s.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
