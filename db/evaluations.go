package db

import (
	"context"

	"easybid/models"

	"github.com/jmoiron/sqlx"
)

func (q queries) UpsertEvaluation(ctx context.Context, e *models.Evaluation) error {
	query := `
        INSERT INTO evaluations (id, tender_id, buyer_id, supplier_id, score, remarks, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT (tender_id, supplier_id) DO UPDATE
        SET buyer_id = EXCLUDED.buyer_id, score = EXCLUDED.score,
            remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	err := q.ext.QueryRowxContext(ctx, query,
		e.ID, e.TenderID, e.BuyerID, e.SupplierID, e.Score, e.Remarks, e.UpdatedAt).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return wrapErr("evaluation", err)
}

func (q queries) ListEvaluations(ctx context.Context, tenderID string) ([]models.Evaluation, error) {
	evals := []models.Evaluation{}
	query := `
        SELECT id, tender_id, buyer_id, supplier_id, score, remarks, created_at, updated_at
        FROM evaluations
        WHERE tender_id = $1
        ORDER BY created_at ASC, id ASC`
	if err := sqlx.SelectContext(ctx, q.ext, &evals, query, tenderID); err != nil {
		return nil, wrapErr("evaluations", err)
	}
	return evals, nil
}
