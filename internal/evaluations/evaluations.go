// Package evaluations records the buyer's score for each supplier on a tender.
package evaluations

import (
	"context"
	"errors"
	"strings"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/ids"
	"easybid/internal/store"
	"easybid/models"

	"go.uber.org/zap"
)

// Publisher finalizes a tender's results.
type Publisher interface {
	PublishEvaluation(ctx context.Context, buyerID, tenderID string) (*models.Tender, error)
}

type Service struct {
	store     store.Store
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, p Publisher, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: st, publisher: p, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RecordInput struct {
	TenderID   string  `json:"tenderId"`
	SupplierID string  `json:"supplierId"`
	Score      float64 `json:"score"`
	Remarks    string  `json:"remarks"`
}

// Record creates or replaces the evaluation of a supplier on a tender. The
// score is stored as given; any number is accepted.
func (s *Service) Record(ctx context.Context, buyerID string, in RecordInput) (*models.Evaluation, error) {
	in.TenderID = strings.TrimSpace(in.TenderID)
	in.SupplierID = strings.TrimSpace(in.SupplierID)
	if in.TenderID == "" || in.SupplierID == "" {
		return nil, apperr.Validation("tenderId and supplierId are required")
	}

	t, err := s.store.GetTender(ctx, in.TenderID)
	if err != nil {
		return nil, err
	}
	if t.CreatedBy() != buyerID {
		return nil, apperr.Forbidden("only the tender owner can evaluate bids")
	}
	if _, err := s.store.GetUser(ctx, in.SupplierID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &models.Evaluation{
		ID:         ids.New(),
		TenderID:   in.TenderID,
		BuyerID:    buyerID,
		SupplierID: in.SupplierID,
		Score:      in.Score,
		Remarks:    strings.TrimSpace(in.Remarks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.UpsertEvaluation(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("evaluation recorded",
		zap.String("tender_id", e.TenderID), zap.String("supplier_id", e.SupplierID), zap.Float64("score", e.Score))
	return e, nil
}

// Publish marks the tender's results final.
func (s *Service) Publish(ctx context.Context, buyerID, tenderID string) (*models.Tender, error) {
	return s.publisher.PublishEvaluation(ctx, buyerID, tenderID)
}

type View struct {
	models.Evaluation
	SupplierName  string `json:"supplierName"`
	SupplierEmail string `json:"supplierEmail"`
}

func (s *Service) ListForTender(ctx context.Context, tenderID string) ([]View, error) {
	if _, err := s.store.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	evals, err := s.store.ListEvaluations(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(evals))
	for _, e := range evals {
		v := View{Evaluation: e}
		u, err := s.store.GetUser(ctx, e.SupplierID)
		switch {
		case err == nil:
			v.SupplierName, v.SupplierEmail = u.Name, u.Email
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
