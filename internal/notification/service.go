package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	authrepo "email-analyzer-backend/internal/auth/repository"
	"email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/pkg/gmail"
	"email-analyzer-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"github.com/goccy/go-json"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on the watch topic.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Enqueuer schedules a background sync. *usecase.SyncQueue implements it.
type Enqueuer interface {
	Enqueue(job usecase.SyncJob) bool
}

// PushHandler turns Gmail push notifications into queued syncs.
type PushHandler struct {
	userRepo authrepo.UserRepository
	queue    Enqueuer
	mode     gmail.QueryMode

	mu sync.Mutex
	// last historyId seen per user
	lastHistoryID map[string]uint64
}

func NewPushHandler(userRepo authrepo.UserRepository, queue Enqueuer, mode gmail.QueryMode) *PushHandler {
	return &PushHandler{
		userRepo:      userRepo,
		queue:         queue,
		mode:          mode,
		lastHistoryID: make(map[string]uint64),
	}
}

// Handle processes one raw notification. It reports whether a sync was queued.
func (h *PushHandler) Handle(data []byte) bool {
	log := logger.For("pubsub")

	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.WithError(err).Warn("failed to decode notification")
		return false
	}
	log = log.WithField("history_id", notification.HistoryID)

	user, err := h.userRepo.FindByEmail(notification.EmailAddress)
	if err != nil {
		log.WithError(err).Error("failed to look up user")
		return false
	}
	if user == nil || !user.HasMailboxAccess() {
		log.WithField("email", notification.EmailAddress).Debug("notification for unknown user")
		return false
	}

	if !h.advance(user.ID, notification.HistoryID) {
		log.WithField("user_id", user.ID).Debug("skipping duplicate notification")
		return false
	}

	if !h.queue.Enqueue(usecase.SyncJob{UserID: user.ID, Mode: h.mode}) {
		log.WithField("user_id", user.ID).Warn("sync queue full, notification dropped")
		return false
	}
	return true
}

// advance records historyID for the user unless an equal or newer one was already seen.
func (h *PushHandler) advance(userID string, historyID uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if last, ok := h.lastHistoryID[userID]; ok && historyID <= last {
		return false
	}
	h.lastHistoryID[userID] = historyID
	return true
}

// Service receives Gmail push notifications from a Pub/Sub subscription.
type Service struct {
	pubsubClient *pubsub.Client
	handler      *PushHandler
	topicName    string
	subName      string
}

func NewService(ctx context.Context, projectID, topicName, subName, credentialsFile string, handler *PushHandler) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	if subName == "" {
		subName = topicName + "-sub"
	}

	return &Service{
		pubsubClient: client,
		handler:      handler,
		topicName:    topicName,
		subName:      subName,
	}, nil
}

// Start blocks receiving messages until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log := logger.For("pubsub").WithField("subscription", s.subName)

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		log.WithError(err).Error("push notifications disabled")
		return
	}

	log.Info("listening for gmail notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handler.Handle(msg.Data)
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("receive stopped")
	}
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	logger.For("pubsub").WithField("subscription", s.subName).Info("subscription created")
	return sub, nil
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}
