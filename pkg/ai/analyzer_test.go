package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/ai"
)

// GeneratorMock is a hand-written stand-in for ai.Generator.
type GeneratorMock struct {
	GenerateFunc func(ctx context.Context, prompt string, cfg ai.GenerationConfig) (string, error)
	calls        int
	prompts      []string
}

func (m *GeneratorMock) Generate(ctx context.Context, prompt string, cfg ai.GenerationConfig) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.GenerateFunc(ctx, prompt, cfg)
}

func TestAnalyzeEmptyBodySkipsModel(t *testing.T) {
	gen := &GeneratorMock{GenerateFunc: func(context.Context, string, ai.GenerationConfig) (string, error) {
		t.Fatal("model must not be called")
		return "", nil
	}}
	analyzer := ai.NewAnalyzer(gen, time.Second)

	for _, body := range []string{"", "   \n\t "} {
		got, err := analyzer.Analyze(context.Background(), "Subject", body)
		require.NoError(t, err)
		require.NotNil(t, got.Summary)
		assert.Equal(t, ai.NoContentSummary, *got.Summary)
		assert.Equal(t, emaildomain.CategoryOther, got.Category)
		assert.Equal(t, emaildomain.SentimentNeutral, got.Sentiment)
		assert.Empty(t, got.ActionPoints)
	}
	assert.Equal(t, 0, gen.calls)
}

func TestAnalyzeParsesProseWrappedJSON(t *testing.T) {
	gen := &GeneratorMock{GenerateFunc: func(_ context.Context, _ string, cfg ai.GenerationConfig) (string, error) {
		assert.True(t, cfg.JSON)
		assert.InDelta(t, 0.3, cfg.Temperature, 0.0001)
		return "Sure! Here you go:\n```json\n" +
			`{"summary":"Interview scheduled","category":"Job Alert","sentiment":"Positive","actionPoints":["Confirm slot"]}` +
			"\n```\nHope this helps.", nil
	}}
	analyzer := ai.NewAnalyzer(gen, time.Second)

	got, err := analyzer.Analyze(context.Background(), "Interview", "We'd like to meet you.")
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Interview scheduled", *got.Summary)
	assert.Equal(t, emaildomain.CategoryJobAlert, got.Category)
	assert.Equal(t, emaildomain.SentimentPositive, got.Sentiment)
	assert.Equal(t, []string{"Confirm slot"}, got.ActionPoints)
	assert.Equal(t, 1, gen.calls)
}

func TestAnalyzeFallsBackOnFailures(t *testing.T) {
	cases := []struct {
		name   string
		output string
		err    error
	}{
		{name: "malformed_output", output: "I cannot do that"},
		{name: "wrong_types", output: `{"summary": 42, "category": "Other"}`},
		{name: "provider_error", err: errors.New("boom")},
		{name: "safety_block", err: ai.ErrBlocked},
		{name: "timeout", err: context.DeadlineExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &GeneratorMock{GenerateFunc: func(context.Context, string, ai.GenerationConfig) (string, error) {
				return tc.output, tc.err
			}}
			got, err := ai.NewAnalyzer(gen, time.Second).Analyze(context.Background(), "s", "body")
			require.NoError(t, err)
			assert.Nil(t, got.Summary)
			assert.Equal(t, emaildomain.CategoryOther, got.Category)
			assert.Equal(t, emaildomain.SentimentNeutral, got.Sentiment)
			assert.Empty(t, got.ActionPoints)
		})
	}
}

func TestAnalyzeSurfacesRateLimit(t *testing.T) {
	gen := &GeneratorMock{GenerateFunc: func(context.Context, string, ai.GenerationConfig) (string, error) {
		return "", &ai.RateLimitError{RetryAfter: 7 * time.Second, Err: errors.New("429")}
	}}

	got, err := ai.NewAnalyzer(gen, time.Second).Analyze(context.Background(), "s", "body")
	rl, ok := ai.AsRateLimit(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Nil(t, got.Summary)
}

func TestBuildPromptTruncatesBody(t *testing.T) {
	body := strings.Repeat("a", ai.MaxBodyChars) + "TAIL"
	prompt := ai.BuildPrompt("Subj", body)

	assert.Contains(t, prompt, "Subject: Subj")
	assert.Contains(t, prompt, strings.Repeat("a", ai.MaxBodyChars))
	assert.NotContains(t, prompt, "TAIL")
	for _, field := range []string{`"summary"`, `"category"`, `"sentiment"`, `"actionPoints"`} {
		assert.Contains(t, prompt, field)
	}
	assert.Contains(t, prompt, `"Job Alert"`)
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "héll", ai.Truncate("héllo", 4))
	assert.Equal(t, "hi", ai.Truncate("hi", 4))
}
