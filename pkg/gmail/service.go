package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// QueryMode selects which inbox window ListMessageIDs looks at.
type QueryMode string

const (
	QueryUnread QueryMode = "unread"
	QueryRecent QueryMode = "recent"
)

// Query returns the provider search expression for the mode.
func (m QueryMode) Query() string {
	if m == QueryUnread {
		return "is:unread in:inbox"
	}
	return "in:inbox"
}

// ParseQueryMode falls back to QueryUnread for unknown values.
func ParseQueryMode(s string) QueryMode {
	if QueryMode(s) == QueryRecent {
		return QueryRecent
	}
	return QueryUnread
}

// ErrProviderUnavailable is returned while the circuit breaker is open.
var ErrProviderUnavailable = errors.New("mail provider unavailable")

type Service struct {
	clientID     string
	clientSecret string
	timeout      time.Duration
	cb           *gobreaker.CircuitBreaker
	endpoint     string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback emaildomain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			logger.For("gmail").WithError(err).Warn("failed to persist refreshed token")
		}
	}
	return t, nil
}

// nonCircuitError carries client-side failures through the breaker without counting them.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string { return e.err.Error() }
func (e *nonCircuitError) Unwrap() error { return e.err }

type Option func(*Service)

// WithEndpoint points the client at a different API base URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Service) { s.endpoint = endpoint }
}

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func NewService(clientID, clientSecret string, opts ...Option) *Service {
	s := &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		timeout:      20 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.For("gmail").Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return s
}

// OAuthConfig returns the base OAuth configuration shared by every per-user client.
func (s *Service) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}
}

// client builds a fresh authorized Gmail client for one credential. Nothing is shared between calls.
func (s *Service) client(ctx context.Context, cred emaildomain.Credential) (*gmail.Service, error) {
	if cred.RefreshToken == "" {
		return nil, emaildomain.ErrAuthRequired
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       cred.Expiry,
	}
	// Unknown expiry: force a refresh rather than trusting a stale access token.
	if cred.AccessToken == "" || cred.Expiry.IsZero() {
		token.Expiry = time.Now()
	}

	wrapped := &notifyTokenSource{
		src:      s.OAuthConfig().TokenSource(ctx, token),
		current:  token,
		callback: cred.OnRefresh,
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, wrapped))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// execute runs fn under the breaker and the per-call timeout.
func (s *Service) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		if err := fn(ctx); err != nil {
			if !isServerError(err) {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		err = nce.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrProviderUnavailable
	}
	return err
}

// ListMessageIDs returns up to max message identifiers in provider order.
func (s *Service) ListMessageIDs(ctx context.Context, cred emaildomain.Credential, mode QueryMode, max int64) ([]string, error) {
	srv, err := s.client(ctx, cred)
	if err != nil {
		return nil, err
	}

	var resp *gmail.ListMessagesResponse
	err = s.execute(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = srv.Users.Messages.List(user).Q(mode.Query()).MaxResults(max).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, wrapError(err, "unable to list messages")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage fetches and normalizes one message. A message the provider no longer has yields (nil, nil).
func (s *Service) GetMessage(ctx context.Context, cred emaildomain.Credential, messageID string) (*emaildomain.Email, error) {
	srv, err := s.client(ctx, cred)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = s.execute(ctx, func(ctx context.Context) error {
		var callErr error
		msg, callErr = srv.Users.Messages.Get(user, messageID).Format("full").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, wrapError(err, "unable to retrieve message")
	}

	return Normalize(msg), nil
}

// GetMessages fetches several messages. A failing message is logged and left out.
func (s *Service) GetMessages(ctx context.Context, cred emaildomain.Credential, messageIDs []string) ([]*emaildomain.Email, error) {
	emails := make([]*emaildomain.Email, 0, len(messageIDs))
	for _, id := range messageIDs {
		email, err := s.GetMessage(ctx, cred, id)
		if err != nil {
			if errors.Is(err, emaildomain.ErrAuthRequired) {
				return emails, err
			}
			logger.For("gmail").WithError(err).WithField("message_id", id).Warn("skipping message")
			continue
		}
		if email != nil {
			emails = append(emails, email)
		}
	}
	return emails, nil
}

// Watch registers push notifications for the inbox on the given Pub/Sub topic.
func (s *Service) Watch(ctx context.Context, cred emaildomain.Credential, topicName string) (uint64, error) {
	srv, err := s.client(ctx, cred)
	if err != nil {
		return 0, err
	}

	var resp *gmail.WatchResponse
	err = s.execute(ctx, func(ctx context.Context) error {
		// only one watch per user is allowed; a missing watch makes Stop fail, which is fine
		_ = srv.Users.Stop(user).Context(ctx).Do()

		var callErr error
		resp, callErr = srv.Users.Watch(user, &gmail.WatchRequest{
			TopicName: topicName,
			LabelIds:  []string{"INBOX"},
		}).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return 0, wrapError(err, "unable to watch mailbox")
	}

	logger.For("gmail").WithField("user_id", cred.UserID).Infof("watch started, expiration %d", resp.Expiration)
	return resp.HistoryId, nil
}

// Normalize maps a provider message onto the local email model.
func Normalize(msg *gmail.Message) *emaildomain.Email {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	body, kind := ExtractBody(msg.Payload)

	return &emaildomain.Email{
		MessageID:  msg.Id,
		ThreadID:   msg.ThreadId,
		Subject:    getHeader(headers, "Subject"),
		From:       getHeader(headers, "From"),
		To:         getHeader(headers, "To"),
		Snippet:    msg.Snippet,
		Body:       body,
		BodyKind:   kind,
		ReceivedAt: receivedAt(msg, headers),
		IsRead:     !hasLabel(msg.LabelIds, "UNREAD"),
		IsStarred:  hasLabel(msg.LabelIds, "STARRED"),
	}
}

// receivedAt prefers the provider's internal timestamp and falls back to the Date header.
func receivedAt(msg *gmail.Message, headers []*gmail.MessagePartHeader) time.Time {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).UTC()
	}
	if date := getHeader(headers, "Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isServerError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
	}
	return !isAuthError(err)
}

func isAuthError(err error) bool {
	if errors.Is(err, emaildomain.ErrAuthRequired) {
		return true
	}
	// only a rejected grant means the user must sign in again; token endpoint outages are transient
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return true
		}
		return retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest || retrieveErr.Response.StatusCode == http.StatusUnauthorized)
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}

// wrapError keeps credential failures recognizable as ErrAuthRequired.
func wrapError(err error, msg string) error {
	if errors.Is(err, ErrProviderUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if isAuthError(err) {
		return fmt.Errorf("%s: %w: %v", msg, emaildomain.ErrAuthRequired, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
