package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	authdomain "email-analyzer-backend/internal/auth/domain"
	authrepo "email-analyzer-backend/internal/auth/repository"
	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/internal/notification"
	"email-analyzer-backend/pkg/database"
	"email-analyzer-backend/pkg/fcm"
	"email-analyzer-backend/pkg/gmail"
)

type recordingQueue struct {
	jobs []usecase.SyncJob
}

func (q *recordingQueue) Enqueue(job usecase.SyncJob) bool {
	q.jobs = append(q.jobs, job)
	return true
}

type fakeSender struct {
	tokens []string
	sent   []fcm.NotificationData
	failed []string
}

func (s *fakeSender) SendToDevices(_ context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	s.tokens = tokens
	s.sent = append(s.sent, n)
	return s.failed, nil
}

func newRepos(t *testing.T) (authrepo.UserRepository, authrepo.FCMTokenRepository) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}))
	return authrepo.NewUserRepository(db), authrepo.NewFCMTokenRepository(db)
}

func TestPushHandlerDeduplicatesByHistoryID(t *testing.T) {
	userRepo, _ := newRepos(t)
	user, err := userRepo.UpsertGoogleUser(&authdomain.User{GoogleID: "g1", Email: "ada@example.com", RefreshToken: "r"})
	require.NoError(t, err)
	_, err = userRepo.UpsertGoogleUser(&authdomain.User{GoogleID: "g2", Email: "nomail@example.com"})
	require.NoError(t, err)

	queue := &recordingQueue{}
	h := notification.NewPushHandler(userRepo, queue, gmail.QueryUnread)

	assert.True(t, h.Handle([]byte(`{"emailAddress":"ada@example.com","historyId":10}`)))
	assert.False(t, h.Handle([]byte(`{"emailAddress":"ada@example.com","historyId":10}`)))
	assert.False(t, h.Handle([]byte(`{"emailAddress":"ada@example.com","historyId":9}`)))
	assert.True(t, h.Handle([]byte(`{"emailAddress":"ada@example.com","historyId":11}`)))
	assert.False(t, h.Handle([]byte(`{"emailAddress":"stranger@example.com","historyId":1}`)))
	assert.False(t, h.Handle([]byte(`{"emailAddress":"nomail@example.com","historyId":1}`)))
	assert.False(t, h.Handle([]byte(`not json`)))

	require.Len(t, queue.jobs, 2)
	assert.Equal(t, usecase.SyncJob{UserID: user.ID, Mode: gmail.QueryUnread}, queue.jobs[0])
}

func TestActionNotifierSendsAndPrunesDeadTokens(t *testing.T) {
	_, fcmRepo := newRepos(t)
	require.NoError(t, fcmRepo.SaveToken("u1", "live-token", "chrome"))
	require.NoError(t, fcmRepo.SaveToken("u1", "dead-token", "firefox"))

	sender := &fakeSender{failed: []string{"dead-token"}}
	n := notification.NewActionNotifier(fcmRepo, sender, "http://app.example.com/")

	emails := []*emaildomain.Email{
		{ID: "e1", Subject: "Newsletter"},
		{ID: "e2", Subject: "Invoice due", ActionPoints: datatypes.JSONSlice[string]{"Pay by Friday", "Forward to accounting"}},
	}
	require.NoError(t, n.NotifyActionPoints(context.Background(), "u1", emails))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "2 new action items", msg.Title)
	assert.Equal(t, "Invoice due: Pay by Friday", msg.Body)
	assert.Equal(t, "e2", msg.Data["email_id"])
	assert.Equal(t, "http://app.example.com/dashboard", msg.Link)
	assert.ElementsMatch(t, []string{"live-token", "dead-token"}, sender.tokens)

	tokens, err := fcmRepo.GetTokensByUserID("u1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "live-token", tokens[0].Token)
}

func TestActionNotifierSkipsWithoutActionPoints(t *testing.T) {
	_, fcmRepo := newRepos(t)
	require.NoError(t, fcmRepo.SaveToken("u1", "tok", ""))

	sender := &fakeSender{}
	n := notification.NewActionNotifier(fcmRepo, sender, "")
	require.NoError(t, n.NotifyActionPoints(context.Background(), "u1", []*emaildomain.Email{{ID: "e1"}}))
	assert.Empty(t, sender.sent)
}

func TestBuildActionNotificationSingular(t *testing.T) {
	msg := notification.BuildActionNotification([]*emaildomain.Email{
		{ID: "e1", ActionPoints: datatypes.JSONSlice[string]{"Reply to Bob"}},
	}, 1, "")
	assert.Equal(t, "1 new action item", msg.Title)
	assert.Equal(t, "Reply to Bob", msg.Body)
}
