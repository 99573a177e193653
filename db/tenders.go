package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"easybid/models"

	"github.com/jmoiron/sqlx"
)

const tenderColumns = `id, title, description, category, custom_category, budget, deadline, file_url,
        status, approval_status, approved_by, approved_at, rejection_reason, buyer_id, created_at`

func (q queries) CreateTender(ctx context.Context, t *models.Tender) error {
	query := `
        INSERT INTO tenders (` + tenderColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := q.ext.ExecContext(ctx, query,
		t.ID, t.Title, t.Description, t.Category, t.CustomCategory, t.Budget, t.Deadline, t.FileURL,
		t.Status, t.ApprovalStatus, t.ApprovedBy, t.ApprovedAt, t.RejectionReason, t.BuyerID, t.CreatedAt)
	return wrapErr("tender", err)
}

func (q queries) GetTender(ctx context.Context, id string) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE id = $1`
	if err := sqlx.GetContext(ctx, q.ext, t, query, id); err != nil {
		return nil, wrapErr("tender", err)
	}
	return t, nil
}

// LockTender takes a row lock; callers hold it until their transaction ends.
func (q queries) LockTender(ctx context.Context, id string) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, q.ext, t, query, id); err != nil {
		return nil, wrapErr("tender", err)
	}
	return t, nil
}

func (q queries) UpdateTenderApproval(ctx context.Context, t *models.Tender) error {
	query := `
        UPDATE tenders
        SET approval_status = $1, approved_by = $2, approved_at = $3, rejection_reason = $4
        WHERE id = $5`
	res, err := q.ext.ExecContext(ctx, query,
		t.ApprovalStatus, t.ApprovedBy, t.ApprovedAt, t.RejectionReason, t.ID)
	return expectOne("tender", res, err)
}

func (q queries) SetTenderStatus(ctx context.Context, id string, status models.TenderStatus) error {
	query := `UPDATE tenders SET status = $1 WHERE id = $2`
	res, err := q.ext.ExecContext(ctx, query, status, id)
	return expectOne("tender", res, err)
}

func (q queries) CloseIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
        UPDATE tenders SET status = 'Closed'
        WHERE id = $1 AND status = 'Open' AND deadline < $2`
	res, err := q.ext.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, wrapErr("tender", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("tender", err)
	}
	if n > 0 {
		return true, nil
	}
	// nothing changed: tell "not expired" apart from "missing"
	var exists bool
	if err := sqlx.GetContext(ctx, q.ext, &exists, `SELECT EXISTS (SELECT 1 FROM tenders WHERE id = $1)`, id); err != nil {
		return false, wrapErr("tender", err)
	}
	if !exists {
		return false, wrapErr("tender", sql.ErrNoRows)
	}
	return false, nil
}

func (q queries) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE tenders SET status = 'Closed' WHERE status = 'Open' AND deadline < $1`
	res, err := q.ext.ExecContext(ctx, query, now)
	if err != nil {
		return 0, wrapErr("tenders", err)
	}
	n, err := res.RowsAffected()
	return n, wrapErr("tenders", err)
}

// likeEscaper makes a search term match literally inside ILIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (q queries) ListTenders(ctx context.Context, f models.TenderFilter) ([]models.Tender, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Search != "" {
		add(`title ILIKE $%d ESCAPE '\'`, "%"+likeEscaper.Replace(f.Search)+"%")
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ApprovalStatus != "" {
		add("approval_status = $%d", f.ApprovalStatus)
	}
	if f.BuyerID != "" {
		add("buyer_id = $%d", f.BuyerID)
	}
	if f.DeadlineBefore != nil {
		add("deadline <= $%d", *f.DeadlineBefore)
	}

	filter := ""
	if len(conds) > 0 {
		filter = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, q.ext, &total, "SELECT COUNT(*) FROM tenders"+filter, args...); err != nil {
		return nil, 0, wrapErr("tenders", err)
	}

	query := "SELECT " + tenderColumns + " FROM tenders" + filter
	if f.NewestFirst {
		query += " ORDER BY created_at DESC, id DESC"
	} else {
		query += " ORDER BY deadline ASC, id ASC"
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	tenders := []models.Tender{}
	if err := sqlx.SelectContext(ctx, q.ext, &tenders, query, args...); err != nil {
		return nil, 0, wrapErr("tenders", err)
	}
	return tenders, total, nil
}
