package db

import (
	"context"

	"easybid/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bidColumns = `id, tender_id, supplier_id, amount, status, submitted_at,
        evaluation_score, comments, bid_file, is_best_bid`

func (q queries) GetBidForSupplier(ctx context.Context, tenderID, supplierID string) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE tender_id = $1 AND supplier_id = $2`
	if err := sqlx.GetContext(ctx, q.ext, b, query, tenderID, supplierID); err != nil {
		return nil, wrapErr("bid", err)
	}
	return b, nil
}

func (q queries) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.ext.ExecContext(ctx, query,
		b.ID, b.TenderID, b.SupplierID, b.Amount, b.Status, b.SubmittedAt,
		b.EvaluationScore, b.Comments, b.BidFile, b.IsBestBid)
	return wrapErr("bid", err)
}

func (q queries) UpdateBid(ctx context.Context, b *models.Bid) error {
	query := `
        UPDATE bids
        SET amount = $1, comments = $2, bid_file = $3, submitted_at = $4
        WHERE id = $5`
	res, err := q.ext.ExecContext(ctx, query, b.Amount, b.Comments, b.BidFile, b.SubmittedAt, b.ID)
	return expectOne("bid", res, err)
}

func (q queries) ListBidsByTender(ctx context.Context, tenderID string) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE tender_id = $1 ORDER BY submitted_at ASC, id ASC`
	if err := sqlx.SelectContext(ctx, q.ext, &bids, query, tenderID); err != nil {
		return nil, wrapErr("bids", err)
	}
	return bids, nil
}

func (q queries) ListBidsBySupplier(ctx context.Context, supplierID string) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE supplier_id = $1 ORDER BY submitted_at DESC, id DESC`
	if err := sqlx.SelectContext(ctx, q.ext, &bids, query, supplierID); err != nil {
		return nil, wrapErr("bids", err)
	}
	return bids, nil
}

func (q queries) ListRecentBids(ctx context.Context, limit int) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM bids ORDER BY submitted_at DESC, id DESC LIMIT $1`
	if err := sqlx.SelectContext(ctx, q.ext, &bids, query, limit); err != nil {
		return nil, wrapErr("bids", err)
	}
	return bids, nil
}

// SetBestBid clears the previous holder before flagging the new one, so the
// partial unique index on (tender_id) WHERE is_best_bid never sees two rows.
func (q queries) SetBestBid(ctx context.Context, tenderID, bidID string) error {
	unset := `
        UPDATE bids SET is_best_bid = FALSE
        WHERE tender_id = $1 AND is_best_bid AND id <> $2`
	if _, err := q.ext.ExecContext(ctx, unset, tenderID, bidID); err != nil {
		return wrapErr("bid", err)
	}
	set := `UPDATE bids SET is_best_bid = TRUE WHERE id = $1 AND tender_id = $2`
	res, err := q.ext.ExecContext(ctx, set, bidID, tenderID)
	return expectOne("bid", res, err)
}

func (q queries) CountBidsByTender(ctx context.Context, tenderIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(tenderIDs))
	if len(tenderIDs) == 0 {
		return counts, nil
	}
	for _, id := range tenderIDs {
		counts[id] = 0
	}
	query := `
        SELECT tender_id, COUNT(*) FROM bids
        WHERE tender_id = ANY($1)
        GROUP BY tender_id`
	rows, err := q.ext.QueryContext(ctx, query, pq.Array(tenderIDs))
	if err != nil {
		return nil, wrapErr("bids", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, wrapErr("bids", err)
		}
		counts[id] = n
	}
	return counts, wrapErr("bids", rows.Err())
}
