package bids

import (
	"cmp"
	"math"
	"slices"

	"easybid/models"
)

// BestBid returns the bid that holds the best-bid flag: the lowest amount,
// ties going to the earliest submission. It returns nil for no bids.
func BestBid(bids []models.Bid) *models.Bid {
	if len(bids) == 0 {
		return nil
	}
	best := slices.MinFunc(bids, compareBest)
	return &best
}

func compareBest(a, b models.Bid) int {
	return cmp.Or(
		cmp.Compare(a.Amount, b.Amount),
		a.SubmittedAt.Compare(b.SubmittedAt),
		cmp.Compare(a.ID, b.ID),
	)
}

// SortByStanding orders bids the way BestBid picks them, so the first bid is
// the one holding the best-bid flag.
func SortByStanding(bids []models.Bid) {
	slices.SortStableFunc(bids, compareBest)
}

// SortForDisplay orders bids the way listings show them: lowest amount first,
// ties going to the latest submission. This differs from BestBid on ties.
func SortForDisplay(bids []models.Bid) {
	slices.SortStableFunc(bids, func(a, b models.Bid) int {
		return cmp.Or(
			cmp.Compare(a.Amount, b.Amount),
			b.SubmittedAt.Compare(a.SubmittedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

type Stats struct {
	TotalBids       int     `json:"totalBids"`
	LowestBid       float64 `json:"lowestBid"`
	HighestBid      float64 `json:"highestBid"`
	AverageBid      float64 `json:"averageBid"`
	UniqueSuppliers int     `json:"uniqueSuppliers"`
}

// ComputeStats aggregates bid amounts. An empty set yields zero stats.
func ComputeStats(bids []models.Bid) Stats {
	if len(bids) == 0 {
		return Stats{}
	}
	st := Stats{
		TotalBids:  len(bids),
		LowestBid:  math.Inf(1),
		HighestBid: math.Inf(-1),
	}
	suppliers := make(map[string]struct{}, len(bids))
	sum := 0.0
	for _, b := range bids {
		st.LowestBid = min(st.LowestBid, b.Amount)
		st.HighestBid = max(st.HighestBid, b.Amount)
		sum += b.Amount
		suppliers[b.SupplierID] = struct{}{}
	}
	st.AverageBid = sum / float64(len(bids))
	st.UniqueSuppliers = len(suppliers)
	return st
}

// Competitiveness is how far amount sits above the lowest bid, in percent
// rounded to one decimal. The leader and a zero lowest get 0.
func Competitiveness(amount, lowest float64, leading bool) float64 {
	if leading || lowest == 0 {
		return 0
	}
	return math.Round((amount/lowest-1)*1000) / 10
}
