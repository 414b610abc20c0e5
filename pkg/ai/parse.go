package ai

import (
	"errors"
	"fmt"
	"strings"

	emaildomain "email-analyzer-backend/internal/email/domain"

	"github.com/goccy/go-json"
)

// ErrMalformedOutput is returned when the model's text does not contain the expected JSON object.
var ErrMalformedOutput = errors.New("malformed model output")

// ParseAnalysis reads the JSON object between the first '{' and the last '}' of raw.
// Prose or code fences around the object are ignored. All four fields must be present
// with the right type. Unknown categories and sentiments are mapped to Other and Neutral.
func ParseAnalysis(raw string) (emaildomain.Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return emaildomain.Analysis{}, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return emaildomain.Analysis{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	summary, ok := fields["summary"].(string)
	if !ok || strings.TrimSpace(summary) == "" {
		return emaildomain.Analysis{}, fmt.Errorf("%w: summary missing or not a string", ErrMalformedOutput)
	}
	summary = strings.TrimSpace(summary)

	categoryRaw, ok := fields["category"].(string)
	if !ok {
		return emaildomain.Analysis{}, fmt.Errorf("%w: category missing or not a string", ErrMalformedOutput)
	}
	sentimentRaw, ok := fields["sentiment"].(string)
	if !ok {
		return emaildomain.Analysis{}, fmt.Errorf("%w: sentiment missing or not a string", ErrMalformedOutput)
	}
	items, ok := fields["actionPoints"].([]interface{})
	if !ok {
		return emaildomain.Analysis{}, fmt.Errorf("%w: actionPoints missing or not an array", ErrMalformedOutput)
	}

	category := normalizeCategory(categoryRaw)
	sentiment := normalizeSentiment(sentimentRaw)

	actionPoints := []string{}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			actionPoints = append(actionPoints, s)
		}
	}

	return emaildomain.Analysis{
		Summary:      &summary,
		Category:     category,
		Sentiment:    sentiment,
		ActionPoints: actionPoints,
	}, nil
}

func normalizeCategory(s string) emaildomain.Category {
	for _, c := range emaildomain.Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c
		}
	}
	return emaildomain.CategoryOther
}

func normalizeSentiment(s string) emaildomain.Sentiment {
	for _, v := range emaildomain.Sentiments {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v
		}
	}
	return emaildomain.SentimentNeutral
}
