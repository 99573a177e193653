package notify

import (
	"context"
	"strings"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/ids"
	"easybid/internal/store"
	"easybid/models"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100
)

// Inbox serves a user's in-app notifications.
type Inbox struct {
	store store.Store
	now   func() time.Time
}

func NewInbox(st store.Store) *Inbox {
	return &Inbox{store: st, now: time.Now}
}

type InboxPage struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
	Pages         int                   `json:"pages"`
}

func (i *Inbox) List(ctx context.Context, userID string, page, limit int, unreadOnly bool) (*InboxPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultInboxLimit
	}
	limit = min(limit, maxInboxLimit)

	notes, err := i.store.ListNotifications(ctx, userID, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := i.store.CountNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread, err := i.store.CountNotifications(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	return &InboxPage{
		Notifications: notes,
		UnreadCount:   unread,
		Total:         total,
		Page:          page,
		Limit:         limit,
		Pages:         (total + limit - 1) / limit,
	}, nil
}

func (i *Inbox) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	return i.store.MarkNotificationRead(ctx, userID, id)
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return i.store.MarkAllNotificationsRead(ctx, userID)
}

func (i *Inbox) Delete(ctx context.Context, userID, id string) error {
	return i.store.DeleteNotification(ctx, userID, id)
}

func (i *Inbox) UnreadCount(ctx context.Context, userID string) (int, error) {
	return i.store.CountNotifications(ctx, userID, true)
}

type CreateInput struct {
	UserID    string                  `json:"userId"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Type      models.NotificationType `json:"type"`
	Priority  models.Priority         `json:"priority"`
	ActionURL string                  `json:"actionUrl"`
	Metadata  models.NotificationMeta `json:"metadata"`
}

// Create stores an ad-hoc notification, e.g. a system announcement.
func (i *Inbox) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.UserID == "" || in.Title == "" || in.Message == "" {
		return nil, apperr.Validation("userId, title and message are required")
	}
	if in.Type == "" {
		in.Type = models.NotifySystem
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("unknown notification type %q", in.Type)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("unknown priority %q", in.Priority)
	}
	if _, err := i.store.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:               ids.New(),
		UserID:           in.UserID,
		Title:            in.Title,
		Message:          in.Message,
		Type:             in.Type,
		Priority:         in.Priority,
		ActionURL:        in.ActionURL,
		NotificationMeta: in.Metadata,
		CreatedAt:        i.now().UTC(),
	}
	if err := i.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
