package ai_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/ai"
)

func TestParseAnalysis(t *testing.T) {
	cases := []struct {
		name          string
		raw           string
		wantErr       bool
		wantCategory  emaildomain.Category
		wantSentiment emaildomain.Sentiment
		wantPoints    []string
	}{
		{
			name:          "bare_object",
			raw:           `{"summary":"Pay invoice","category":"Invoice","sentiment":"Negative","actionPoints":["Pay by Friday"]}`,
			wantCategory:  emaildomain.CategoryInvoice,
			wantSentiment: emaildomain.SentimentNegative,
			wantPoints:    []string{"Pay by Friday"},
		},
		{
			name:          "case_insensitive_closed_sets",
			raw:           `{"summary":"x","category":"job alert","sentiment":"POSITIVE","actionPoints":[]}`,
			wantCategory:  emaildomain.CategoryJobAlert,
			wantSentiment: emaildomain.SentimentPositive,
			wantPoints:    []string{},
		},
		{
			name:          "unknown_values_default",
			raw:           `{"summary":"x","category":"Newsletter","sentiment":"Ecstatic","actionPoints":["a", 3, "", "b"]}`,
			wantCategory:  emaildomain.CategoryOther,
			wantSentiment: emaildomain.SentimentNeutral,
			wantPoints:    []string{"a", "b"},
		},
		{
			name:          "wrapped_in_prose",
			raw:           "Sure!\n```json\n{\"summary\":\"x\",\"category\":\"Social\",\"sentiment\":\"Neutral\",\"actionPoints\":[]}\n```",
			wantCategory:  emaildomain.CategorySocial,
			wantSentiment: emaildomain.SentimentNeutral,
			wantPoints:    []string{},
		},
		{name: "no_braces", raw: "just prose", wantErr: true},
		{name: "reversed_braces", raw: "} nope {", wantErr: true},
		{name: "invalid_json", raw: `{"summary": x}`, wantErr: true},
		{name: "missing_summary", raw: `{"category":"Other"}`, wantErr: true},
		{name: "summary_wrong_type", raw: `{"summary":["x"]}`, wantErr: true},
		{name: "only_summary", raw: `noise {"summary":"x"} noise`, wantErr: true},
		{name: "missing_category", raw: `{"summary":"x","sentiment":"Neutral","actionPoints":[]}`, wantErr: true},
		{name: "missing_sentiment", raw: `{"summary":"x","category":"Other","actionPoints":[]}`, wantErr: true},
		{name: "missing_action_points", raw: `{"summary":"x","category":"Other","sentiment":"Neutral"}`, wantErr: true},
		{name: "null_action_points", raw: `{"summary":"x","category":"Other","sentiment":"Neutral","actionPoints":null}`, wantErr: true},
		{name: "category_wrong_type", raw: `{"summary":"x","category":5,"sentiment":"Neutral","actionPoints":[]}`, wantErr: true},
		{name: "sentiment_wrong_type", raw: `{"summary":"x","category":"Other","sentiment":true,"actionPoints":[]}`, wantErr: true},
		{name: "action_points_wrong_type", raw: `{"summary":"x","category":"Other","sentiment":"Neutral","actionPoints":"do it"}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ai.ParseAnalysis(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ai.ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got.Summary)
			assert.Equal(t, tc.wantCategory, got.Category)
			assert.Equal(t, tc.wantSentiment, got.Sentiment)
			assert.Equal(t, tc.wantPoints, got.ActionPoints)
		})
	}
}

func TestParseRetryDelay(t *testing.T) {
	msg := `googleapi: Error 429: {"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"22s"}`
	assert.Equal(t, 23*time.Second, ai.ParseRetryDelay(msg))
	assert.Equal(t, time.Duration(0), ai.ParseRetryDelay("no hint here"))
}
