package bids

import (
	"context"
	"errors"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/users"
	"easybid/models"

	"go.uber.org/zap"
)

type RankedBid struct {
	models.Bid
	Rank          int    `json:"rank"`
	IsLowest      bool   `json:"isLowest"`
	SupplierName  string `json:"supplierName"`
	SupplierEmail string `json:"supplierEmail"`
}

type TenderBids struct {
	Bids  []RankedBid `json:"bids"`
	Stats Stats       `json:"stats"`
	Count int         `json:"count"`
}

// ListForTender returns the tender's bids in display order with ranks,
// supplier contacts and aggregate statistics.
func (s *Service) ListForTender(ctx context.Context, tenderID string) (*TenderBids, error) {
	if _, err := s.store.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	all, err := s.store.ListBidsByTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	SortForDisplay(all)

	suppliers := make(map[string]*models.User)
	out := make([]RankedBid, 0, len(all))
	for i, b := range all {
		u, ok := suppliers[b.SupplierID]
		if !ok {
			u, err = s.store.GetUser(ctx, b.SupplierID)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				s.log.Warn("bid references unknown supplier", zap.String("bid_id", b.ID), zap.String("supplier_id", b.SupplierID))
				u = &models.User{}
			case err != nil:
				return nil, err
			}
			suppliers[b.SupplierID] = u
		}
		out = append(out, RankedBid{
			Bid:           b,
			Rank:          i + 1,
			IsLowest:      i == 0,
			SupplierName:  u.Name,
			SupplierEmail: u.Email,
		})
	}
	return &TenderBids{Bids: out, Stats: ComputeStats(all), Count: len(out)}, nil
}

type TenderRef struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Status   models.TenderStatus `json:"status"`
	Deadline time.Time           `json:"deadline"`
	Budget   *float64            `json:"budget,omitempty"`
}

type SupplierBid struct {
	models.Bid
	Tender          TenderRef `json:"tender"`
	TotalBids       int       `json:"totalBids"`
	MyRank          int       `json:"myRank"`
	LowestBid       float64   `json:"lowestBid"`
	IsLeading       bool      `json:"isLeading"`
	Competitiveness float64   `json:"competitiveness"`
}

// ListForSupplier returns the supplier's bids, newest first, each placed
// against the competition on its tender.
func (s *Service) ListForSupplier(ctx context.Context, supplierID string) ([]SupplierBid, error) {
	mine, err := s.store.ListBidsBySupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	return s.standings(ctx, mine)
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

type SubmittedPage struct {
	Bids  []SupplierBid `json:"bids"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Pages int           `json:"pages"`
}

// ListSubmitted pages through the supplier's bids, newest first. Standings
// are computed only for the requested page.
func (s *Service) ListSubmitted(ctx context.Context, supplierID string, page, limit int) (*SubmittedPage, error) {
	if _, err := users.RequireRole(ctx, s.store, supplierID, models.RoleSupplier); err != nil {
		return nil, err
	}
	mine, err := s.store.ListBidsBySupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	page = max(page, 1)
	if limit < 1 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	var slice []models.Bid
	if from := (page - 1) * limit; from < len(mine) {
		slice = mine[from:min(from+limit, len(mine))]
	}
	out, err := s.standings(ctx, slice)
	if err != nil {
		return nil, err
	}
	return &SubmittedPage{
		Bids:  out,
		Total: len(mine),
		Page:  page,
		Limit: limit,
		Pages: (len(mine) + limit - 1) / limit,
	}, nil
}

func (s *Service) standings(ctx context.Context, mine []models.Bid) ([]SupplierBid, error) {
	out := make([]SupplierBid, 0, len(mine))
	for _, b := range mine {
		t, err := s.store.GetTender(ctx, b.TenderID)
		if err != nil {
			return nil, err
		}
		all, err := s.store.ListBidsByTender(ctx, b.TenderID)
		if err != nil {
			return nil, err
		}
		SortByStanding(all)

		rank := 0
		for i := range all {
			if all[i].ID == b.ID {
				rank = i + 1
				break
			}
		}
		lowest := 0.0
		if len(all) > 0 {
			lowest = all[0].Amount
		}
		leading := rank == 1
		out = append(out, SupplierBid{
			Bid: b,
			Tender: TenderRef{
				ID:       t.ID,
				Title:    t.Title,
				Status:   t.Status,
				Deadline: t.Deadline,
				Budget:   t.Budget,
			},
			TotalBids:       len(all),
			MyRank:          rank,
			LowestBid:       lowest,
			IsLeading:       leading,
			Competitiveness: Competitiveness(b.Amount, lowest, leading),
		})
	}
	return out, nil
}
