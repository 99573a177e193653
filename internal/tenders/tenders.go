// Package tenders owns the tender lifecycle: creation, the one-shot approval
// state machine, lazy deadline expiry and publishing of evaluation results.
package tenders

import (
	"context"
	"strings"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/ids"
	"easybid/internal/metrics"
	"easybid/internal/notify"
	"easybid/internal/store"
	"easybid/internal/users"
	"easybid/models"

	"go.uber.org/zap"
)

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

type Service struct {
	store    store.Store
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(st store.Store, n Notifier, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: st, notifier: n, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       models.Category `json:"category"`
	CustomCategory string          `json:"customCategory"`
	Budget         *float64        `json:"budget"`
	Deadline       time.Time       `json:"deadline"`
	FileURL        string          `json:"fileUrl"`
}

func (in *CreateInput) validate(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	in.CustomCategory = strings.TrimSpace(in.CustomCategory)
	switch {
	case in.Title == "":
		return apperr.Validation("title is required")
	case in.Category == "":
		return apperr.Validation("category is required")
	case !in.Category.Valid():
		return apperr.Validation("unknown category %q", in.Category)
	case in.Category == models.CategoryOther && in.CustomCategory == "":
		return apperr.Validation("customCategory is required when category is Other")
	case in.Deadline.IsZero():
		return apperr.Validation("deadline is required")
	case !in.Deadline.After(now):
		return apperr.Validation("deadline must be in the future")
	}
	if in.Budget != nil && !models.ValidAmount(*in.Budget) {
		return apperr.Validation("budget must be a positive number")
	}
	if in.Category != models.CategoryOther {
		in.CustomCategory = ""
	}
	return nil
}

// Create stores a new tender as Open and Pending approval.
func (s *Service) Create(ctx context.Context, buyerID string, in CreateInput) (*models.Tender, error) {
	if _, err := users.RequireRole(ctx, s.store, buyerID, models.RoleBuyer); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	t := &models.Tender{
		ID:             ids.New(),
		Title:          in.Title,
		Description:    strings.TrimSpace(in.Description),
		Category:       in.Category,
		CustomCategory: in.CustomCategory,
		Budget:         in.Budget,
		Deadline:       in.Deadline.UTC(),
		FileURL:        in.FileURL,
		Status:         models.TenderOpen,
		ApprovalStatus: models.ApprovalPending,
		BuyerID:        buyerID,
		CreatedAt:      now,
	}
	if err := s.store.CreateTender(ctx, t); err != nil {
		return nil, err
	}
	s.metrics.TenderTransition(string(models.ApprovalPending))
	s.log.Info("tender created", zap.String("tender_id", t.ID), zap.String("buyer_id", buyerID))
	return t, nil
}

// Approve opens a Pending tender for bidding and announces it to suppliers.
func (s *Service) Approve(ctx context.Context, adminID, tenderID string) (*models.Tender, error) {
	t, err := s.decide(ctx, adminID, tenderID, models.ApprovalApproved, "")
	if err != nil {
		return nil, err
	}
	s.notifier.Dispatch(ctx, notify.Event{Kind: models.NotifyTenderApproved, RecipientID: t.BuyerID, Tender: t})
	s.notifier.Dispatch(ctx, notify.Event{Kind: models.NotifyNewTender, Tender: t})
	return t, nil
}

// Reject closes the approval of a Pending tender with a reason.
func (s *Service) Reject(ctx context.Context, adminID, tenderID, reason string) (*models.Tender, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	t, err := s.decide(ctx, adminID, tenderID, models.ApprovalRejected, reason)
	if err != nil {
		return nil, err
	}
	s.notifier.Dispatch(ctx, notify.Event{Kind: models.NotifyTenderRejected, RecipientID: t.BuyerID, Tender: t, Extra: reason})
	return t, nil
}

func (s *Service) decide(ctx context.Context, adminID, tenderID string, to models.ApprovalStatus, reason string) (*models.Tender, error) {
	var t *models.Tender
	err := s.store.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		if _, err := users.RequireRole(ctx, q, adminID, models.RoleAdmin); err != nil {
			return err
		}
		cur, err := q.LockTender(ctx, tenderID)
		if err != nil {
			return err
		}
		if cur.ApprovalStatus != models.ApprovalPending {
			return apperr.Conflict("tender is already %s", strings.ToLower(string(cur.ApprovalStatus)))
		}

		now := s.now().UTC()
		by := adminID
		cur.ApprovalStatus = to
		cur.ApprovedBy = &by
		cur.ApprovedAt = &now
		cur.RejectionReason = reason
		if err := q.UpdateTenderApproval(ctx, cur); err != nil {
			return err
		}
		t = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TenderTransition(string(to))
	s.log.Info("tender reviewed",
		zap.String("tender_id", tenderID), zap.String("admin_id", adminID), zap.String("decision", string(to)))
	return t, nil
}

// CheckAndExpire closes an Open tender whose deadline has passed. It is
// idempotent and reports whether this call closed the tender.
func (s *Service) CheckAndExpire(ctx context.Context, tenderID string) (*models.Tender, bool, error) {
	closed, err := s.store.CloseIfExpired(ctx, tenderID, s.now().UTC())
	if err != nil {
		return nil, false, err
	}
	if closed {
		s.metrics.TenderTransition(string(models.TenderClosed))
		s.log.Info("tender closed after deadline", zap.String("tender_id", tenderID))
	}
	t, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, false, err
	}
	return t, closed, nil
}

// ExpireInTx is CheckAndExpire for a tender the caller has locked in q.
func ExpireInTx(ctx context.Context, q store.Queries, t *models.Tender, now time.Time) (bool, error) {
	if !t.Expired(now) {
		return false, nil
	}
	closed, err := q.CloseIfExpired(ctx, t.ID, now)
	if err != nil {
		return false, err
	}
	if closed {
		t.Status = models.TenderClosed
	}
	return closed, nil
}

// PublishEvaluation marks the tender Evaluated. Only the owner may do it.
// Evaluations stay writable afterwards.
func (s *Service) PublishEvaluation(ctx context.Context, buyerID, tenderID string) (*models.Tender, error) {
	var t *models.Tender
	err := s.store.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		cur, err := q.LockTender(ctx, tenderID)
		if err != nil {
			return err
		}
		if cur.BuyerID != buyerID {
			return apperr.Forbidden("only the tender owner can publish results")
		}
		if err := q.SetTenderStatus(ctx, tenderID, models.TenderEvaluated); err != nil {
			return err
		}
		cur.Status = models.TenderEvaluated
		t = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TenderTransition(string(models.TenderEvaluated))
	s.log.Info("evaluation results published", zap.String("tender_id", tenderID))
	return t, nil
}

// Get returns a tender after giving it the chance to expire.
func (s *Service) Get(ctx context.Context, tenderID string) (*models.Tender, error) {
	t, _, err := s.CheckAndExpire(ctx, tenderID)
	return t, err
}
