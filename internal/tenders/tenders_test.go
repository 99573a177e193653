package tenders

import (
	"context"
	"sync"
	"testing"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/notify"
	"easybid/internal/store/memstore"
	"easybid/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Dispatch(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []models.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	st    *memstore.Store
	notes *recorder
	now   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	now := base
	f := &fixture{st: st, notes: &recorder{}, now: &now}
	f.svc = NewService(st, f.notes, zap.NewNop(), WithClock(func() time.Time { return *f.now }))
	for id, role := range map[string]models.Role{
		"buyer": models.RoleBuyer, "buyer2": models.RoleBuyer,
		"admin": models.RoleAdmin, "supplier": models.RoleSupplier,
	} {
		require.NoError(t, st.CreateUser(context.Background(), &models.User{
			ID: id, Name: id, Email: id + "@example.com", Role: role,
		}))
	}
	return f
}

func validInput() CreateInput {
	return CreateInput{
		Title:    "Bridge repair",
		Category: models.CategoryRoad,
		Deadline: base.Add(48 * time.Hour),
	}
}

func budget(v float64) *float64 { return &v }

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.CustomCategory = "ignored"
	tender, err := f.svc.Create(ctx, "buyer", in)
	require.NoError(t, err)
	require.Equal(t, models.TenderOpen, tender.Status)
	require.Equal(t, models.ApprovalPending, tender.ApprovalStatus)
	require.Equal(t, "buyer", tender.CreatedBy())
	require.Empty(t, tender.CustomCategory)

	stored, err := f.st.GetTender(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, tender.Title, stored.Title)

	_, err = f.svc.Create(ctx, "supplier", validInput())
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]func(*CreateInput){
		"missing title":        func(in *CreateInput) { in.Title = "  " },
		"missing category":     func(in *CreateInput) { in.Category = "" },
		"unknown category":     func(in *CreateInput) { in.Category = "Space" },
		"other without custom": func(in *CreateInput) { in.Category = models.CategoryOther },
		"missing deadline":     func(in *CreateInput) { in.Deadline = time.Time{} },
		"deadline now":         func(in *CreateInput) { in.Deadline = base },
		"deadline in the past": func(in *CreateInput) { in.Deadline = base.Add(-time.Minute) },
		"zero budget":          func(in *CreateInput) { in.Budget = budget(0) },
		"negative budget":      func(in *CreateInput) { in.Budget = budget(-5) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := f.svc.Create(context.Background(), "buyer", in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	in := validInput()
	in.Category = models.CategoryOther
	in.CustomCategory = "Drones"
	tender, err := f.svc.Create(context.Background(), "buyer", in)
	require.NoError(t, err)
	require.Equal(t, "Drones", tender.CustomCategory)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "buyer", tender.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Approve(ctx, "admin", "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	approved, err := f.svc.Approve(ctx, "admin", tender.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
	require.Equal(t, "admin", *approved.ApprovedBy)
	require.Equal(t, base, *approved.ApprovedAt)
	require.Equal(t, []models.NotificationType{models.NotifyTenderApproved, models.NotifyNewTender}, f.notes.kinds())

	_, err = f.svc.Approve(ctx, "admin", tender.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.Reject(ctx, "admin", tender.ID, "late")
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.Len(t, f.notes.kinds(), 2)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, "admin", tender.ID, " ")
	require.ErrorIs(t, err, apperr.ErrValidation)

	rejected, err := f.svc.Reject(ctx, "admin", tender.ID, "budget missing")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalRejected, rejected.ApprovalStatus)
	require.Equal(t, "budget missing", rejected.RejectionReason)
	require.Equal(t, []models.NotificationType{models.NotifyTenderRejected}, f.notes.kinds())
	require.Equal(t, "budget missing", f.notes.events[0].Extra)

	_, err = f.svc.Approve(ctx, "admin", tender.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestConcurrentApproveOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, "admin", tender.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, apperr.ErrConflict)
	}
	require.Equal(t, 1, ok)
}

func TestCheckAndExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)

	got, closed, err := f.svc.CheckAndExpire(ctx, tender.ID)
	require.NoError(t, err)
	require.False(t, closed)
	require.Equal(t, models.TenderOpen, got.Status)

	*f.now = tender.Deadline.Add(time.Second)
	got, closed, err = f.svc.CheckAndExpire(ctx, tender.ID)
	require.NoError(t, err)
	require.True(t, closed)
	require.Equal(t, models.TenderClosed, got.Status)

	_, closed, err = f.svc.CheckAndExpire(ctx, tender.ID)
	require.NoError(t, err)
	require.False(t, closed)

	_, _, err = f.svc.CheckAndExpire(ctx, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPublishEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)

	_, err = f.svc.PublishEvaluation(ctx, "buyer2", tender.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.PublishEvaluation(ctx, "buyer", "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.svc.PublishEvaluation(ctx, "buyer", tender.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderEvaluated, got.Status)

	// Evaluated tenders never expire.
	*f.now = tender.Deadline.Add(time.Hour)
	got, err = f.svc.Get(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderEvaluated, got.Status)
}

func TestListSweepsAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created []*models.Tender
	for i := 0; i < 5; i++ {
		in := validInput()
		in.Deadline = base.Add(time.Duration(i+1) * time.Hour)
		tender, err := f.svc.Create(ctx, "buyer", in)
		require.NoError(t, err)
		created = append(created, tender)
	}

	page, err := f.svc.List(ctx, ListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.Pages)
	require.Len(t, page.Tenders, 2)
	require.Equal(t, created[2].ID, page.Tenders[0].ID)

	*f.now = base.Add(150 * time.Minute)
	page, err = f.svc.List(ctx, ListQuery{Status: models.TenderClosed})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, defaultLimit, page.Limit)

	page, err = f.svc.List(ctx, ListQuery{Limit: 1000})
	require.NoError(t, err)
	require.Equal(t, maxLimit, page.Limit)

	_, err = f.svc.List(ctx, ListQuery{Category: "Space"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListPendingNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)
	*f.now = base.Add(time.Minute)
	second, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)
	*f.now = base.Add(2 * time.Minute)
	third, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, "admin", third.ID)
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, second.ID, pending[0].ID)
	require.Equal(t, first.ID, pending[1].ID)
}

func TestListByBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.svc.Create(ctx, "buyer", validInput())
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "buyer2", validInput())
	require.NoError(t, err)
	require.NoError(t, f.st.CreateBid(ctx, &models.Bid{
		ID: "b1", TenderID: mine.ID, SupplierID: "supplier", Amount: 10, Status: models.BidSubmitted, SubmittedAt: base,
	}))

	dash, err := f.svc.ListByBuyer(ctx, "buyer", 1, 10)
	require.NoError(t, err)
	require.Len(t, dash.Tenders, 1)
	require.Equal(t, mine.ID, dash.Tenders[0].ID)
	require.Equal(t, 1, dash.Tenders[0].BidCount)
	require.Equal(t, BuyerStats{TotalTenders: 1, OpenTenders: 1, PendingApproval: 1, TotalBids: 1}, dash.Stats)

	dash, err = f.svc.ListByBuyer(ctx, "buyer", 3, 10)
	require.NoError(t, err)
	require.Empty(t, dash.Tenders)
	require.Equal(t, 1, dash.Total)

	_, err = f.svc.ListByBuyer(ctx, "supplier", 1, 10)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var last *models.Tender
	for i := 0; i < 7; i++ {
		tender, err := f.svc.Create(ctx, "buyer", validInput())
		require.NoError(t, err)
		last = tender
	}
	for i, id := range []string{"b1", "b2"} {
		require.NoError(t, f.st.CreateBid(ctx, &models.Bid{
			ID: id, TenderID: last.ID, SupplierID: "s" + id, Amount: 100,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sum, err := f.svc.Summary(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, 4, sum.Users)
	require.Equal(t, 7, sum.Tenders)
	require.Equal(t, 7, sum.PendingTenders)
	require.Len(t, sum.RecentTenders, recentCount)
	require.Len(t, sum.PendingReviews, recentCount)
	require.Len(t, sum.RecentBids, 2)
	require.Equal(t, "b2", sum.RecentBids[0].ID)

	_, err = f.svc.Summary(ctx, "buyer")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestListOpenOnlyShowsBiddableTenders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	create := func(title string, deadline time.Duration) *models.Tender {
		in := validInput()
		in.Title = title
		in.Deadline = base.Add(deadline)
		tender, err := f.svc.Create(ctx, "buyer", in)
		require.NoError(t, err)
		return tender
	}
	late := create("Bridge repair north", 72*time.Hour)
	soon := create("Bridge repair south", 24*time.Hour)
	create("Bridge pending", 48*time.Hour)
	expiring := create("Bridge expiring", time.Hour)
	for _, tender := range []*models.Tender{late, soon, expiring} {
		_, err := f.svc.Approve(ctx, "admin", tender.ID)
		require.NoError(t, err)
	}
	*f.now = base.Add(2 * time.Hour)

	page, err := f.svc.ListOpen(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, soon.ID, page.Tenders[0].ID)
	require.Equal(t, late.ID, page.Tenders[1].ID)

	page, err = f.svc.ListOpen(ctx, "NORTH", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Tenders, 1)
	require.Equal(t, late.ID, page.Tenders[0].ID)
}
