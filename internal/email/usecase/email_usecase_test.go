package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/pkg/ai"
	"email-analyzer-backend/pkg/gmail"
)

type fakeWatcher struct {
	topic string
}

func (w *fakeWatcher) Watch(_ context.Context, _ emaildomain.Credential, topicName string) (uint64, error) {
	w.topic = topicName
	return 4242, nil
}

func seededUsecase(t *testing.T, analyzer usecase.EmailAnalyzer) (*harness, usecase.EmailUsecase, string) {
	t.Helper()
	h := newHarness(t)
	h.mailbox.add("u1", "m1", "Hello", "body", testNow)

	svc := h.service(&scriptedAnalyzer{}, 3)
	result, err := svc.SyncUser(context.Background(), "u1", gmail.QueryUnread)
	require.NoError(t, err)
	require.Len(t, result.Emails, 1)

	uc := usecase.NewEmailUsecase(svc, h.emailRepo, h.reviewRepo, h.summaryRepo, analyzer, h.creds, &fakeWatcher{}, "projects/p/topics/gmail", 100)
	return h, uc, result.Emails[0].ID
}

func TestEmailUsecaseStarAndStatus(t *testing.T) {
	_, uc, id := seededUsecase(t, &scriptedAnalyzer{})

	starred, err := uc.SetStarred("u1", id, true)
	require.NoError(t, err)
	assert.True(t, starred.IsStarred)

	for _, status := range []emaildomain.ReviewStatus{emaildomain.ReviewDone, emaildomain.ReviewPending, emaildomain.ReviewDismissed} {
		updated, err := uc.SetStatus("u1", id, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	got, err := uc.GetEmailByID("u1", id)
	require.NoError(t, err)
	assert.Equal(t, emaildomain.ReviewDismissed, got.Status)
	assert.True(t, got.IsStarred)

	_, err = uc.SetStatus("u1", id, "archived")
	assert.ErrorIs(t, err, emaildomain.ErrInvalidReviewStatus)

	_, err = uc.SetStarred("u2", id, true)
	assert.ErrorIs(t, err, emaildomain.ErrEmailNotFound, "emails belong to their user")

	_, err = uc.GetEmailByID("u2", id)
	assert.ErrorIs(t, err, emaildomain.ErrEmailNotFound)
}

func TestEmailUsecaseReanalyzeOverwrites(t *testing.T) {
	_, uc, id := seededUsecase(t, ai.NewAnalyzer(&countingGenerator{}, time.Second))

	before, err := uc.GetEmailByID("u1", id)
	require.NoError(t, err)
	assert.Equal(t, emaildomain.CategoryPersonal, before.Category)

	after, err := uc.Reanalyze(context.Background(), "u1", id)
	require.NoError(t, err)
	require.NotNil(t, after.Summary)
	assert.Equal(t, "Generated", *after.Summary)
	assert.Equal(t, emaildomain.CategoryInvoice, after.Category)
	assert.Equal(t, []string{"Pay"}, []string(after.ActionPoints))

	again, err := uc.Reanalyze(context.Background(), "u1", id)
	require.NoError(t, err)
	assert.Equal(t, after.Category, again.Category)
	assert.Equal(t, []string(after.ActionPoints), []string(again.ActionPoints))
}

func TestEmailUsecaseReanalyzeRateLimitedKeepsAnalysis(t *testing.T) {
	analyzer := &scriptedAnalyzer{script: []error{&ai.RateLimitError{RetryAfter: time.Second}}}
	_, uc, id := seededUsecase(t, analyzer)

	_, err := uc.Reanalyze(context.Background(), "u1", id)
	_, limited := ai.AsRateLimit(err)
	assert.True(t, limited)

	got, err := uc.GetEmailByID("u1", id)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Summary of Hello", *got.Summary)
}

func TestEmailUsecaseDailySummariesAndWatch(t *testing.T) {
	_, uc, _ := seededUsecase(t, &scriptedAnalyzer{})

	summaries, err := uc.GetDailySummaries("u1", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "2026-10-16", summaries[0].Day)
	assert.Equal(t, []string{"m1"}, []string(summaries[0].ProcessedEmailIDs))

	historyID, err := uc.WatchMailbox(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), historyID)
}
