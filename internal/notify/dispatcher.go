// Package notify delivers lifecycle notifications: an in-app record for every
// recipient plus an e-mail when the recipient's preferences allow it.
// Delivery is asynchronous, best-effort and at-most-once; callers never see
// its errors.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"easybid/internal/ids"
	"easybid/internal/metrics"
	"easybid/models"

	"go.uber.org/zap"
)

// Event is what the domain services emit. RecipientID is ignored for
// new_tender, which goes to every supplier.
type Event struct {
	Kind        models.NotificationType
	RecipientID string
	Tender      *models.Tender
	Bid         *models.Bid
	Extra       string
}

// Recipients is the part of the store the dispatcher needs.
type Recipients interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type Dispatcher struct {
	queue   chan Event
	store   Recipients
	mailer  Mailer
	log     *zap.Logger
	metrics *metrics.Metrics
	workers int
	now     func() time.Time
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Event, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(st Recipients, mailer Mailer, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   make(chan Event, 256),
		store:   st,
		mailer:  mailer,
		log:     log,
		workers: 2,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch enqueues ev and returns immediately. A full queue drops the event.
func (d *Dispatcher) Dispatch(_ context.Context, ev Event) {
	select {
	case d.queue <- ev:
		d.metrics.Notification(metrics.NotifyQueued)
	default:
		d.metrics.Notification(metrics.NotifyDropped)
		d.log.Warn("notification queue full, event dropped",
			zap.String("kind", string(ev.Kind)), zap.String("recipient", ev.RecipientID))
	}
}

// Run delivers queued events until ctx is cancelled. Events still queued at
// that point are dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-d.queue:
					d.Deliver(ctx, ev)
				}
			}
		}()
	}
	wg.Wait()
	if n := len(d.queue); n > 0 {
		d.log.Warn("dispatcher stopped with pending events", zap.Int("pending", n))
	}
}

// Deliver handles one event synchronously. Failures are logged and counted.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			d.metrics.Notification(metrics.NotifyFailed)
			d.log.Error("notification delivery panicked", zap.Any("panic", p), zap.String("kind", string(ev.Kind)))
		}
	}()

	recipients, err := d.recipients(ctx, ev)
	if err != nil {
		d.metrics.Notification(metrics.NotifyFailed)
		d.log.Error("resolve notification recipients", zap.Error(err), zap.String("kind", string(ev.Kind)))
		return
	}

	for _, u := range recipients {
		n := compose(ev, u.ID)
		n.ID = ids.New()
		n.CreatedAt = d.now().UTC()
		if err := d.store.CreateNotification(ctx, n); err != nil {
			d.metrics.Notification(metrics.NotifyFailed)
			d.log.Error("store notification", zap.Error(err), zap.String("user_id", u.ID))
		} else {
			d.metrics.Notification(metrics.NotifyStored)
		}

		if !wantsMail(u.EmailPreferences, ev.Kind) {
			continue
		}
		msg := Message{To: u.Email, Subject: n.Title, Body: n.Message}
		if err := d.mailer.Send(ctx, msg); err != nil {
			d.metrics.Notification(metrics.NotifyFailed)
			d.log.Error("send notification email", zap.Error(err), zap.String("user_id", u.ID))
			continue
		}
		d.metrics.Notification(metrics.NotifyMailed)
	}
}

func (d *Dispatcher) recipients(ctx context.Context, ev Event) ([]models.User, error) {
	if ev.Kind == models.NotifyNewTender {
		return d.store.ListUsersByRole(ctx, models.RoleSupplier)
	}
	u, err := d.store.GetUser(ctx, ev.RecipientID)
	if err != nil {
		return nil, err
	}
	return []models.User{*u}, nil
}

func wantsMail(p models.EmailPreferences, kind models.NotificationType) bool {
	switch kind {
	case models.NotifyTenderApproved, models.NotifyTenderRejected:
		return p.TenderApproval
	case models.NotifyNewBid:
		return p.NewBids
	case models.NotifyNewTender:
		return p.NewTenders
	case models.NotifySystem:
		return p.SystemUpdates
	}
	return false
}

func compose(ev Event, userID string) *models.Notification {
	n := &models.Notification{
		UserID:   userID,
		Type:     ev.Kind,
		Priority: models.PriorityMedium,
	}
	title := ""
	if ev.Tender != nil {
		title = ev.Tender.Title
		n.TenderID = ev.Tender.ID
		n.ActionURL = "/tenders/" + ev.Tender.ID
	}
	if ev.Bid != nil {
		n.BidID = ev.Bid.ID
		n.RelatedUserID = ev.Bid.SupplierID
	}

	switch ev.Kind {
	case models.NotifyTenderApproved:
		n.Title = "Tender approved"
		n.Message = fmt.Sprintf("Your tender %q has been approved and is now open for bids.", title)
		n.Priority = models.PriorityHigh
	case models.NotifyTenderRejected:
		n.Title = "Tender rejected"
		n.Message = fmt.Sprintf("Your tender %q was rejected. Reason: %s", title, ev.Extra)
		n.Priority = models.PriorityHigh
	case models.NotifyNewBid:
		n.Title = "New bid received"
		amount := 0.0
		if ev.Bid != nil {
			amount = ev.Bid.Amount
		}
		n.Message = fmt.Sprintf("A bid of %.2f was submitted on your tender %q.", amount, title)
		if ev.Extra != "" {
			n.Message += " " + ev.Extra
		}
	case models.NotifyNewTender:
		n.Title = "New tender available"
		n.Message = fmt.Sprintf("Tender %q is open for bids.", title)
		if ev.Tender != nil {
			n.Message = fmt.Sprintf("Tender %q (%s) is open for bids until %s.",
				title, ev.Tender.Category, ev.Tender.Deadline.Format(time.RFC1123))
		}
	default:
		n.Title = "Notification"
		n.Message = ev.Extra
	}
	return n
}
