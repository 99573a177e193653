package db

import (
	"context"
	"errors"
	"strings"

	"easybid/internal/apperr"
	"easybid/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// singleAdminIndex is the partial unique index that allows one Admin row.
const singleAdminIndex = "users_single_admin"

const userColumns = `id, name, email, password_hash, role,
        pref_tender_approval, pref_new_bids, pref_new_tenders, pref_system_updates, pref_weekly_digest,
        created_at`

func (q queries) CreateUser(ctx context.Context, u *models.User) error {
	query := `
        INSERT INTO users (` + userColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.ext.ExecContext(ctx, query,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Role,
		u.TenderApproval, u.NewBids, u.NewTenders, u.SystemUpdates, u.WeeklyDigest,
		u.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint == singleAdminIndex {
		return apperr.Forbidden("an admin account already exists")
	}
	return wrapErr("user", err)
}

func (q queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := sqlx.GetContext(ctx, q.ext, u, query, id); err != nil {
		return nil, wrapErr("user", err)
	}
	return u, nil
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := sqlx.GetContext(ctx, q.ext, u, query, strings.ToLower(email)); err != nil {
		return nil, wrapErr("user", err)
	}
	return u, nil
}

func (q queries) UpdateEmailPreferences(ctx context.Context, userID string, p models.EmailPreferences) error {
	query := `
        UPDATE users
        SET pref_tender_approval = $1, pref_new_bids = $2, pref_new_tenders = $3,
            pref_system_updates = $4, pref_weekly_digest = $5
        WHERE id = $6`
	res, err := q.ext.ExecContext(ctx, query,
		p.TenderApproval, p.NewBids, p.NewTenders, p.SystemUpdates, p.WeeklyDigest, userID)
	return expectOne("user", res, err)
}

func (q queries) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, q.ext, &users, query, role); err != nil {
		return nil, wrapErr("users", err)
	}
	return users, nil
}

func (q queries) Totals(ctx context.Context) (models.Totals, error) {
	var t models.Totals
	query := `
        SELECT
            (SELECT COUNT(*) FROM users) AS users,
            (SELECT COUNT(*) FROM users WHERE role = 'Buyer') AS buyers,
            (SELECT COUNT(*) FROM users WHERE role = 'Supplier') AS suppliers,
            (SELECT COUNT(*) FROM tenders) AS tenders,
            (SELECT COUNT(*) FROM tenders WHERE approval_status = 'Pending') AS pending_tenders,
            (SELECT COUNT(*) FROM tenders WHERE status = 'Open') AS open_tenders,
            (SELECT COUNT(*) FROM bids) AS bids`
	err := sqlx.GetContext(ctx, q.ext, &t, query)
	return t, wrapErr("totals", err)
}
