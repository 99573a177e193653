// Package bids is the reverse-auction engine: it accepts one bid per supplier
// and tender, keeps exactly one best bid per tender and ranks bids for display.
package bids

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/ids"
	"easybid/internal/metrics"
	"easybid/internal/notify"
	"easybid/internal/store"
	"easybid/internal/tenders"
	"easybid/internal/users"
	"easybid/models"

	"go.uber.org/zap"
)

type Service struct {
	store    store.Store
	notifier tenders.Notifier
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

func NewService(st store.Store, n tenders.Notifier, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: st, notifier: n, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitInput struct {
	TenderID string  `json:"tenderId"`
	Amount   float64 `json:"amount"`
	Comments string  `json:"comments"`
	FileURL  string  `json:"fileUrl"`
}

type SubmitResult struct {
	Bid         *models.Bid `json:"bid"`
	IsLowestBid bool        `json:"isLowestBid"`
	Updated     bool        `json:"updated"`
}

var errDeadlinePassed = apperr.Conflict("tender deadline has passed")

// Submit places or replaces the supplier's bid on a tender and moves the
// best-bid flag to the current leader. The tender row stays locked for the
// whole read-check-write, so concurrent submissions serialize per tender.
func (s *Service) Submit(ctx context.Context, supplierID string, in SubmitInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.TenderID) == "" {
		s.metrics.BidSubmitted(metrics.BidRejected)
		return nil, apperr.Validation("tenderId is required")
	}

	var (
		res     *SubmitResult
		tender  *models.Tender
		expired bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		t, err := q.LockTender(ctx, in.TenderID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		// The close must commit even though the bid is refused.
		if expired, err = tenders.ExpireInTx(ctx, q, t, now); err != nil || expired {
			return err
		}
		if err := s.check(ctx, q, t, supplierID, in.Amount, now); err != nil {
			return err
		}

		bid, updated, err := upsert(ctx, q, t.ID, supplierID, in, now)
		if err != nil {
			return err
		}
		best, err := promoteLeader(ctx, q, t.ID)
		if err != nil {
			return err
		}
		bid.IsBestBid = best.ID == bid.ID
		res = &SubmitResult{Bid: bid, IsLowestBid: bid.IsBestBid, Updated: updated}
		tender = t
		return nil
	})
	if err == nil && expired {
		s.metrics.TenderTransition(string(models.TenderClosed))
		s.log.Info("tender closed after deadline", zap.String("tender_id", in.TenderID))
		err = errDeadlinePassed
	}
	if err != nil {
		s.metrics.BidSubmitted(metrics.BidRejected)
		return nil, err
	}

	if res.Updated {
		s.metrics.BidSubmitted(metrics.BidUpdated)
	} else {
		s.metrics.BidSubmitted(metrics.BidCreated)
	}
	s.log.Info("bid submitted",
		zap.String("tender_id", tender.ID),
		zap.String("bid_id", res.Bid.ID),
		zap.Float64("amount", res.Bid.Amount),
		zap.Bool("updated", res.Updated),
		zap.Bool("best", res.IsLowestBid),
	)

	ev := notify.Event{Kind: models.NotifyNewBid, RecipientID: tender.BuyerID, Tender: tender, Bid: res.Bid}
	if res.Updated {
		ev.Extra = "The supplier updated an earlier bid."
	}
	s.notifier.Dispatch(ctx, ev)
	return res, nil
}

func (s *Service) check(ctx context.Context, q store.Queries, t *models.Tender, supplierID string, amount float64, now time.Time) error {
	switch {
	case t.Status != models.TenderOpen:
		return apperr.Conflict("tender is %s and does not accept bids", strings.ToLower(string(t.Status)))
	case t.ApprovalStatus != models.ApprovalApproved:
		return apperr.Conflict("tender is not approved for bidding")
	case !t.AcceptsBids(now):
		return errDeadlinePassed
	case !models.ValidAmount(amount):
		return apperr.Validation("amount must be a positive number")
	case !t.WithinBudget(amount):
		return apperr.Validation("amount %.2f exceeds the tender budget of %.2f", amount, *t.Budget)
	case t.CreatedBy() == supplierID:
		return apperr.Forbidden("you cannot bid on your own tender")
	}
	_, err := users.RequireRole(ctx, q, supplierID, models.RoleSupplier)
	return err
}

// upsert keeps one bid per (tender, supplier): a resubmission updates the
// existing row and restarts its submission time.
func upsert(ctx context.Context, q store.Queries, tenderID, supplierID string, in SubmitInput, now time.Time) (*models.Bid, bool, error) {
	existing, err := q.GetBidForSupplier(ctx, tenderID, supplierID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		b := &models.Bid{
			ID:          ids.New(),
			TenderID:    tenderID,
			SupplierID:  supplierID,
			Amount:      in.Amount,
			Status:      models.BidSubmitted,
			SubmittedAt: now,
			Comments:    in.Comments,
			BidFile:     in.FileURL,
		}
		if err := q.CreateBid(ctx, b); err != nil {
			return nil, false, err
		}
		return b, false, nil
	case err != nil:
		return nil, false, err
	}

	existing.Amount = in.Amount
	existing.Comments = in.Comments
	if in.FileURL != "" {
		existing.BidFile = in.FileURL
	}
	existing.SubmittedAt = now
	if err := q.UpdateBid(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// promoteLeader recomputes the leader over the locked bid set and makes it
// the only flagged bid.
func promoteLeader(ctx context.Context, q store.Queries, tenderID string) (*models.Bid, error) {
	all, err := q.ListBidsByTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	best := BestBid(all)
	if best == nil {
		return nil, fmt.Errorf("tender %s has no bids after submit", tenderID)
	}
	if best.IsBestBid && countFlagged(all) == 1 {
		return best, nil
	}
	if err := q.SetBestBid(ctx, tenderID, best.ID); err != nil {
		return nil, err
	}
	return best, nil
}

func countFlagged(bids []models.Bid) int {
	n := 0
	for _, b := range bids {
		if b.IsBestBid {
			n++
		}
	}
	return n
}
