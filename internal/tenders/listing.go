package tenders

import (
	"context"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/users"
	"easybid/models"

	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	recentCount  = 5
)

type ListQuery struct {
	Search         string
	Category       models.Category
	Status         models.TenderStatus
	ApprovalStatus models.ApprovalStatus
	DeadlineBefore *time.Time
	Page           int
	Limit          int
}

type Page struct {
	Tenders []models.Tender `json:"tenders"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Pages   int             `json:"pages"`
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, min(limit, maxLimit)
}

func pages(total, limit int) int {
	return (total + limit - 1) / limit
}

// sweep closes every overdue Open tender so listings never show stale state.
func (s *Service) sweep(ctx context.Context) error {
	n, err := s.store.CloseExpired(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		s.metrics.TendersExpired(n)
		s.log.Info("expired tenders closed", zap.Int64("count", n))
	}
	return nil
}

// List returns tenders matching q ordered by deadline.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	switch {
	case q.Category != "" && !q.Category.Valid():
		return nil, apperr.Validation("unknown category %q", q.Category)
	case q.Status != "" && !q.Status.Valid():
		return nil, apperr.Validation("unknown status %q", q.Status)
	case q.ApprovalStatus != "" && !q.ApprovalStatus.Valid():
		return nil, apperr.Validation("unknown approval status %q", q.ApprovalStatus)
	}
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	page, limit := normalizePage(q.Page, q.Limit)
	list, total, err := s.store.ListTenders(ctx, models.TenderFilter{
		Search:         q.Search,
		Category:       q.Category,
		Status:         q.Status,
		ApprovalStatus: q.ApprovalStatus,
		DeadlineBefore: q.DeadlineBefore,
		Limit:          limit,
		Offset:         (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Tender{}
	}
	return &Page{Tenders: list, Total: total, Page: page, Limit: limit, Pages: pages(total, limit)}, nil
}

// ListOpen returns the tenders suppliers can bid on: Open and Approved,
// soonest deadline first.
func (s *Service) ListOpen(ctx context.Context, search string, page, limit int) (*Page, error) {
	return s.List(ctx, ListQuery{
		Search:         search,
		Status:         models.TenderOpen,
		ApprovalStatus: models.ApprovalApproved,
		Page:           page,
		Limit:          limit,
	})
}

// ListPending returns the approval queue, newest first.
func (s *Service) ListPending(ctx context.Context) ([]models.Tender, error) {
	list, _, err := s.store.ListTenders(ctx, models.TenderFilter{
		ApprovalStatus: models.ApprovalPending,
		NewestFirst:    true,
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Tender{}
	}
	return list, nil
}

type BuyerTender struct {
	models.Tender
	BidCount int `json:"bidCount"`
}

type BuyerStats struct {
	TotalTenders     int `json:"totalTenders"`
	OpenTenders      int `json:"openTenders"`
	ClosedTenders    int `json:"closedTenders"`
	EvaluatedTenders int `json:"evaluatedTenders"`
	PendingApproval  int `json:"pendingApproval"`
	TotalBids        int `json:"totalBids"`
}

type BuyerDashboard struct {
	Tenders []BuyerTender `json:"tenders"`
	Stats   BuyerStats    `json:"stats"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Pages   int           `json:"pages"`
}

// ListByBuyer returns the buyer's tenders newest first with their bid counts.
// Stats cover all of the buyer's tenders, not just the page.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string, page, limit int) (*BuyerDashboard, error) {
	if _, err := users.RequireRole(ctx, s.store, buyerID, models.RoleBuyer); err != nil {
		return nil, err
	}
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	all, _, err := s.store.ListTenders(ctx, models.TenderFilter{BuyerID: buyerID, NewestFirst: true})
	if err != nil {
		return nil, err
	}
	tenderIDs := make([]string, 0, len(all))
	for _, t := range all {
		tenderIDs = append(tenderIDs, t.ID)
	}
	counts, err := s.store.CountBidsByTender(ctx, tenderIDs)
	if err != nil {
		return nil, err
	}

	var stats BuyerStats
	for _, t := range all {
		stats.TotalTenders++
		stats.TotalBids += counts[t.ID]
		switch t.Status {
		case models.TenderOpen:
			stats.OpenTenders++
		case models.TenderClosed:
			stats.ClosedTenders++
		case models.TenderEvaluated:
			stats.EvaluatedTenders++
		}
		if t.ApprovalStatus == models.ApprovalPending {
			stats.PendingApproval++
		}
	}

	page, limit = normalizePage(page, limit)
	out := []BuyerTender{}
	if from := (page - 1) * limit; from < len(all) {
		to := min(from+limit, len(all))
		for _, t := range all[from:to] {
			out = append(out, BuyerTender{Tender: t, BidCount: counts[t.ID]})
		}
	}
	return &BuyerDashboard{
		Tenders: out,
		Stats:   stats,
		Total:   len(all),
		Page:    page,
		Limit:   limit,
		Pages:   pages(len(all), limit),
	}, nil
}

type AdminSummary struct {
	models.Totals
	RecentTenders  []models.Tender `json:"recentTenders"`
	RecentBids     []models.Bid    `json:"recentBids"`
	PendingReviews []models.Tender `json:"pendingReviews"`
}

// Summary feeds the admin dashboard.
func (s *Service) Summary(ctx context.Context, adminID string) (*AdminSummary, error) {
	if _, err := users.RequireRole(ctx, s.store, adminID, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.store.ListTenders(ctx, models.TenderFilter{NewestFirst: true, Limit: recentCount})
	if err != nil {
		return nil, err
	}
	pending, _, err := s.store.ListTenders(ctx, models.TenderFilter{
		ApprovalStatus: models.ApprovalPending,
		NewestFirst:    true,
		Limit:          recentCount,
	})
	if err != nil {
		return nil, err
	}
	bids, err := s.store.ListRecentBids(ctx, recentCount)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []models.Tender{}
	}
	if pending == nil {
		pending = []models.Tender{}
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	return &AdminSummary{Totals: totals, RecentTenders: recent, RecentBids: bids, PendingReviews: pending}, nil
}
