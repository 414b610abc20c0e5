package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emaildomain "email-analyzer-backend/internal/email/domain"
	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/pkg/gmail"
)

func TestRunAllIsolatesFailingUser(t *testing.T) {
	h := newHarness(t)
	h.creds.users = []string{"u1", "u2", "u3"}
	h.mailbox.add("u1", "a1", "a", "body", testNow)
	h.mailbox.add("u1", "a2", "b", "body", testNow)
	h.mailbox.add("u3", "c1", "c", "body", testNow)
	h.mailbox.listErr["u2"] = errors.New("provider unavailable")

	analyzer := &scriptedAnalyzer{points: []string{"Reply"}}
	runner := usecase.NewRunner(h.creds, h.service(analyzer, 3), h.userRepo, gmail.QueryUnread)

	stats := runner.RunAll(context.Background())

	assert.Equal(t, 2, stats.UsersProcessed)
	assert.Equal(t, 1, stats.UsersFailed)
	assert.Equal(t, 0, stats.UsersSkipped)
	assert.Equal(t, 3, stats.MessagesProcessed)
	assert.Equal(t, 3, stats.AnalysesPerformed)
	assert.Equal(t, 3, stats.ActionPointsFound)
	assert.Equal(t, 3, stats.RecordsSaved)

	stored, err := h.emailRepo.ListByUser("u3", 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "users after the failing one are still processed")
}

func TestRunAllFlagsUsersNeedingReauth(t *testing.T) {
	h := newHarness(t)
	h.creds.users = []string{"u1", "u2"}
	h.creds.errs["u1"] = emaildomain.ErrAuthRequired
	h.mailbox.add("u2", "m1", "a", "body", testNow)

	runner := usecase.NewRunner(h.creds, h.service(&scriptedAnalyzer{}, 3), h.userRepo, gmail.QueryUnread)
	stats := runner.RunAll(context.Background())

	assert.Equal(t, 1, stats.UsersProcessed)
	assert.Equal(t, 1, stats.UsersFailed)
	assert.Equal(t, 0, stats.UsersSkipped)
	assert.Equal(t, []string{"u1"}, h.creds.flagged)
}

func TestRunAllCountsCredentialRevokedAtListingAsFailed(t *testing.T) {
	h := newHarness(t)
	h.creds.users = []string{"u1", "u2", "u3"}
	h.mailbox.add("u1", "a1", "a", "body", testNow)
	h.mailbox.add("u3", "c1", "c", "body", testNow)
	h.mailbox.listErr["u2"] = emaildomain.ErrAuthRequired

	runner := usecase.NewRunner(h.creds, h.service(&scriptedAnalyzer{}, 3), h.userRepo, gmail.QueryUnread)
	stats := runner.RunAll(context.Background())

	assert.Equal(t, 2, stats.UsersProcessed)
	assert.Equal(t, 1, stats.UsersFailed)
	assert.Equal(t, 0, stats.UsersSkipped)
	assert.Equal(t, 2, stats.MessagesProcessed)
	assert.Equal(t, []string{"u2"}, h.creds.flagged)

	stored, err := h.emailRepo.ListByUser("u3", 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

type panickingSyncer struct {
	calls []string
}

func (p *panickingSyncer) SyncUser(_ context.Context, userID string, _ gmail.QueryMode) (*emaildto.SyncResult, error) {
	p.calls = append(p.calls, userID)
	if userID == "boom" {
		panic("nil map")
	}
	return &emaildto.SyncResult{Processed: 1, Saved: 1}, nil
}

func TestRunAllRecoversFromPanics(t *testing.T) {
	h := newHarness(t)
	h.creds.users = []string{"boom", "fine"}
	syncer := &panickingSyncer{}

	stats := usecase.NewRunner(h.creds, syncer, h.userRepo, gmail.QueryUnread).RunAll(context.Background())

	assert.Equal(t, []string{"boom", "fine"}, syncer.calls)
	assert.Equal(t, 1, stats.UsersFailed)
	assert.Equal(t, 1, stats.UsersProcessed)
	assert.Equal(t, 1, stats.RecordsSaved)
}
