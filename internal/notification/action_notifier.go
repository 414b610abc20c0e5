package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	authdomain "email-analyzer-backend/internal/auth/domain"
	authrepo "email-analyzer-backend/internal/auth/repository"
	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/fcm"
	"email-analyzer-backend/pkg/logger"

	"github.com/samber/lo"
)

const maxBodyLen = 120

// ActionNotifier pushes "new action items" notifications to a user's registered devices.
type ActionNotifier struct {
	fcmRepo     authrepo.FCMTokenRepository
	sender      fcm.Sender
	frontendURL string
}

func NewActionNotifier(fcmRepo authrepo.FCMTokenRepository, sender fcm.Sender, frontendURL string) *ActionNotifier {
	return &ActionNotifier{
		fcmRepo:     fcmRepo,
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (n *ActionNotifier) NotifyActionPoints(ctx context.Context, userID string, emails []*emaildomain.Email) error {
	total := lo.SumBy(emails, func(e *emaildomain.Email) int { return len(e.ActionPoints) })
	if total == 0 {
		return nil
	}

	tokens, err := n.fcmRepo.GetTokensByUserID(userID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	deviceTokens := lo.Map(tokens, func(t authdomain.FCMToken, _ int) string { return t.Token })
	failed, err := n.sender.SendToDevices(ctx, deviceTokens, BuildActionNotification(emails, total, n.frontendURL))
	if err != nil {
		return err
	}

	for _, token := range failed {
		if err := n.fcmRepo.DeleteToken(token); err != nil {
			logger.For("notification").WithError(err).Warn("failed to remove dead device token")
		}
	}
	return nil
}

// BuildActionNotification renders the push for a sync that found total action points.
func BuildActionNotification(emails []*emaildomain.Email, total int, frontendURL string) fcm.NotificationData {
	title := "1 new action item"
	if total != 1 {
		title = fmt.Sprintf("%d new action items", total)
	}

	first := emails[0]
	for _, e := range emails {
		if len(e.ActionPoints) > 0 {
			first = e
			break
		}
	}
	body := first.ActionPoints[0]
	if first.Subject != "" {
		body = first.Subject + ": " + body
	}
	if r := []rune(body); len(r) > maxBodyLen {
		body = string(r[:maxBodyLen-3]) + "..."
	}

	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":        "action_points",
			"count":       strconv.Itoa(total),
			"email_id":    first.ID,
			"email_count": strconv.Itoa(len(emails)),
		},
		Link: frontendURL + "/dashboard",
	}
}
