// Package memstore is an in-memory store.Store used by tests and by the
// STORAGE=memory mode. One mutex guards everything; a transaction holds it
// for its whole duration and restores a snapshot when it fails.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/store"
	"easybid/models"
)

type data struct {
	users   map[string]models.User
	tenders map[string]models.Tender
	bids    map[string]models.Bid
	evals   map[string]models.Evaluation
	notes   map[string]models.Notification
}

func newData() *data {
	return &data{
		users:   make(map[string]models.User),
		tenders: make(map[string]models.Tender),
		bids:    make(map[string]models.Bid),
		evals:   make(map[string]models.Evaluation),
		notes:   make(map[string]models.Notification),
	}
}

func (d *data) clone() *data {
	return &data{
		users:   maps.Clone(d.users),
		tenders: maps.Clone(d.tenders),
		bids:    maps.Clone(d.bids),
		evals:   maps.Clone(d.evals),
		notes:   maps.Clone(d.notes),
	}
}

type Store struct {
	queries
	mu sync.Mutex
	d  *data
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{d: newData()}
	s.queries = queries{lock: &s.mu, d: s.d}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.d.clone()
	defer func() {
		if p := recover(); p != nil {
			*s.d = *snap
			panic(p)
		}
		if err != nil {
			*s.d = *snap
		}
	}()

	return fn(ctx, queries{lock: nopLocker{}, d: s.d})
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// queries implements store.Queries. Outside a transaction lock is the store
// mutex; inside one the mutex is already held and lock is a no-op.
type queries struct {
	lock sync.Locker
	d    *data
}

func (q queries) CreateUser(_ context.Context, u *models.User) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, existing := range q.d.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("user with email %s already exists", u.Email)
		}
		if u.Role == models.RoleAdmin && existing.Role == models.RoleAdmin {
			return apperr.Forbidden("an admin account already exists")
		}
	}
	q.d.users[u.ID] = *u
	return nil
}

func (q queries) GetUser(_ context.Context, id string) (*models.User, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	u, ok := q.d.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

func (q queries) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, u := range q.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user %s not found", email)
}

func (q queries) UpdateEmailPreferences(_ context.Context, userID string, prefs models.EmailPreferences) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	u, ok := q.d.users[userID]
	if !ok {
		return apperr.NotFound("user %s not found", userID)
	}
	u.EmailPreferences = prefs
	q.d.users[userID] = u
	return nil
}

func (q queries) ListUsersByRole(_ context.Context, role models.Role) ([]models.User, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var out []models.User
	for _, u := range q.d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (q queries) CreateTender(_ context.Context, t *models.Tender) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if _, ok := q.d.tenders[t.ID]; ok {
		return apperr.Conflict("tender %s already exists", t.ID)
	}
	q.d.tenders[t.ID] = *t
	return nil
}

func (q queries) GetTender(_ context.Context, id string) (*models.Tender, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	t, ok := q.d.tenders[id]
	if !ok {
		return nil, apperr.NotFound("tender %s not found", id)
	}
	return &t, nil
}

// LockTender is GetTender: inside a transaction the store mutex is already held.
func (q queries) LockTender(ctx context.Context, id string) (*models.Tender, error) {
	return q.GetTender(ctx, id)
}

func (q queries) UpdateTenderApproval(_ context.Context, t *models.Tender) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	cur, ok := q.d.tenders[t.ID]
	if !ok {
		return apperr.NotFound("tender %s not found", t.ID)
	}
	cur.ApprovalStatus = t.ApprovalStatus
	cur.ApprovedBy = t.ApprovedBy
	cur.ApprovedAt = t.ApprovedAt
	cur.RejectionReason = t.RejectionReason
	q.d.tenders[t.ID] = cur
	return nil
}

func (q queries) SetTenderStatus(_ context.Context, id string, status models.TenderStatus) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	cur, ok := q.d.tenders[id]
	if !ok {
		return apperr.NotFound("tender %s not found", id)
	}
	cur.Status = status
	q.d.tenders[id] = cur
	return nil
}

func (q queries) CloseIfExpired(_ context.Context, id string, now time.Time) (bool, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	cur, ok := q.d.tenders[id]
	if !ok {
		return false, apperr.NotFound("tender %s not found", id)
	}
	if !cur.Expired(now) {
		return false, nil
	}
	cur.Status = models.TenderClosed
	q.d.tenders[id] = cur
	return true, nil
}

func (q queries) CloseExpired(_ context.Context, now time.Time) (int64, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var n int64
	for id, t := range q.d.tenders {
		if t.Expired(now) {
			t.Status = models.TenderClosed
			q.d.tenders[id] = t
			n++
		}
	}
	return n, nil
}

func (q queries) ListTenders(_ context.Context, f models.TenderFilter) ([]models.Tender, int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	search := strings.ToLower(f.Search)
	var out []models.Tender
	for _, t := range q.d.tenders {
		switch {
		case search != "" && !strings.Contains(strings.ToLower(t.Title), search):
			continue
		case f.Category != "" && t.Category != f.Category:
			continue
		case f.Status != "" && t.Status != f.Status:
			continue
		case f.ApprovalStatus != "" && t.ApprovalStatus != f.ApprovalStatus:
			continue
		case f.BuyerID != "" && t.BuyerID != f.BuyerID:
			continue
		case f.DeadlineBefore != nil && t.Deadline.After(*f.DeadlineBefore):
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.Tender) int {
		if f.NewestFirst {
			return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
		}
		return cmp.Or(a.Deadline.Compare(b.Deadline), cmp.Compare(a.ID, b.ID))
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (q queries) GetBidForSupplier(_ context.Context, tenderID, supplierID string) (*models.Bid, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, b := range q.d.bids {
		if b.TenderID == tenderID && b.SupplierID == supplierID {
			return &b, nil
		}
	}
	return nil, apperr.NotFound("no bid from supplier %s on tender %s", supplierID, tenderID)
}

func (q queries) CreateBid(_ context.Context, b *models.Bid) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, existing := range q.d.bids {
		if existing.TenderID == b.TenderID && existing.SupplierID == b.SupplierID {
			return apperr.Conflict("supplier %s already bid on tender %s", b.SupplierID, b.TenderID)
		}
	}
	q.d.bids[b.ID] = *b
	return nil
}

func (q queries) UpdateBid(_ context.Context, b *models.Bid) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	cur, ok := q.d.bids[b.ID]
	if !ok {
		return apperr.NotFound("bid %s not found", b.ID)
	}
	cur.Amount = b.Amount
	cur.Comments = b.Comments
	cur.BidFile = b.BidFile
	cur.SubmittedAt = b.SubmittedAt
	q.d.bids[b.ID] = cur
	return nil
}

func (q queries) ListBidsByTender(_ context.Context, tenderID string) ([]models.Bid, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var out []models.Bid
	for _, b := range q.d.bids {
		if b.TenderID == tenderID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b models.Bid) int {
		return cmp.Or(a.SubmittedAt.Compare(b.SubmittedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (q queries) ListBidsBySupplier(_ context.Context, supplierID string) ([]models.Bid, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var out []models.Bid
	for _, b := range q.d.bids {
		if b.SupplierID == supplierID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b models.Bid) int {
		return cmp.Or(b.SubmittedAt.Compare(a.SubmittedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func (q queries) ListRecentBids(_ context.Context, limit int) ([]models.Bid, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	out := make([]models.Bid, 0, len(q.d.bids))
	for _, b := range q.d.bids {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b models.Bid) int {
		return cmp.Or(b.SubmittedAt.Compare(a.SubmittedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(out, limit, 0), nil
}

func (q queries) SetBestBid(_ context.Context, tenderID, bidID string) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if b, ok := q.d.bids[bidID]; !ok || b.TenderID != tenderID {
		return apperr.NotFound("bid %s not found on tender %s", bidID, tenderID)
	}
	for id, b := range q.d.bids {
		if b.TenderID != tenderID {
			continue
		}
		b.IsBestBid = id == bidID
		q.d.bids[id] = b
	}
	return nil
}

func (q queries) CountBidsByTender(_ context.Context, tenderIDs []string) (map[string]int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	out := make(map[string]int, len(tenderIDs))
	for _, id := range tenderIDs {
		out[id] = 0
	}
	for _, b := range q.d.bids {
		if _, ok := out[b.TenderID]; ok {
			out[b.TenderID]++
		}
	}
	return out, nil
}

func (q queries) UpsertEvaluation(_ context.Context, e *models.Evaluation) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	for id, cur := range q.d.evals {
		if cur.TenderID == e.TenderID && cur.SupplierID == e.SupplierID {
			cur.BuyerID = e.BuyerID
			cur.Score = e.Score
			cur.Remarks = e.Remarks
			cur.UpdatedAt = e.UpdatedAt
			q.d.evals[id] = cur
			*e = cur
			return nil
		}
	}
	q.d.evals[e.ID] = *e
	return nil
}

func (q queries) ListEvaluations(_ context.Context, tenderID string) ([]models.Evaluation, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var out []models.Evaluation
	for _, e := range q.d.evals {
		if e.TenderID == tenderID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.Evaluation) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (q queries) CreateNotification(_ context.Context, n *models.Notification) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.d.notes[n.ID] = *n
	return nil
}

func (q queries) userNotes(userID string, unreadOnly bool) []models.Notification {
	var out []models.Notification
	for _, n := range q.d.notes {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b models.Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return out
}

func (q queries) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	return page(q.userNotes(userID, unreadOnly), limit, offset), nil
}

func (q queries) CountNotifications(_ context.Context, userID string, unreadOnly bool) (int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.userNotes(userID, unreadOnly)), nil
}

func (q queries) MarkNotificationRead(_ context.Context, userID, id string) (*models.Notification, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	n, ok := q.d.notes[id]
	if !ok || n.UserID != userID {
		return nil, apperr.NotFound("notification %s not found", id)
	}
	n.Read = true
	q.d.notes[id] = n
	return &n, nil
}

func (q queries) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var n int64
	for id, note := range q.d.notes {
		if note.UserID == userID && !note.Read {
			note.Read = true
			q.d.notes[id] = note
			n++
		}
	}
	return n, nil
}

func (q queries) DeleteNotification(_ context.Context, userID, id string) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	n, ok := q.d.notes[id]
	if !ok || n.UserID != userID {
		return apperr.NotFound("notification %s not found", id)
	}
	delete(q.d.notes, id)
	return nil
}

func (q queries) Totals(_ context.Context) (models.Totals, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var t models.Totals
	for _, u := range q.d.users {
		t.Users++
		switch u.Role {
		case models.RoleBuyer:
			t.Buyers++
		case models.RoleSupplier:
			t.Suppliers++
		}
	}
	for _, tender := range q.d.tenders {
		t.Tenders++
		if tender.ApprovalStatus == models.ApprovalPending {
			t.PendingTenders++
		}
		if tender.Status == models.TenderOpen {
			t.OpenTenders++
		}
	}
	t.Bids = len(q.d.bids)
	return t, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
