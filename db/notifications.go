package db

import (
	"context"

	"easybid/models"

	"github.com/jmoiron/sqlx"
)

const notificationColumns = `id, user_id, title, message, type, priority, read, action_url,
        meta_tender_id, meta_bid_id, meta_related_user_id, created_at`

func (q queries) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
        INSERT INTO notifications (` + notificationColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := q.ext.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.Read, n.ActionURL,
		n.TenderID, n.BidID, n.RelatedUserID, n.CreatedAt)
	return wrapErr("notification", err)
}

func (q queries) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	notes := []models.Notification{}
	query := `
        SELECT ` + notificationColumns + ` FROM notifications
        WHERE user_id = $1 AND (NOT $2 OR NOT read)
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4`
	if err := sqlx.SelectContext(ctx, q.ext, &notes, query, userID, unreadOnly, limit, offset); err != nil {
		return nil, wrapErr("notifications", err)
	}
	return notes, nil
}

func (q queries) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND (NOT $2 OR NOT read)`
	err := sqlx.GetContext(ctx, q.ext, &n, query, userID, unreadOnly)
	return n, wrapErr("notifications", err)
}

func (q queries) MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n := &models.Notification{}
	query := `
        UPDATE notifications SET read = TRUE
        WHERE id = $1 AND user_id = $2
        RETURNING ` + notificationColumns
	if err := sqlx.GetContext(ctx, q.ext, n, query, id, userID); err != nil {
		return nil, wrapErr("notification", err)
	}
	return n, nil
}

func (q queries) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`
	res, err := q.ext.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, wrapErr("notifications", err)
	}
	n, err := res.RowsAffected()
	return n, wrapErr("notifications", err)
}

func (q queries) DeleteNotification(ctx context.Context, userID, id string) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	res, err := q.ext.ExecContext(ctx, query, id, userID)
	return expectOne("notification", res, err)
}
