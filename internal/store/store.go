// Package store declares the persistence contract the domain services run on.
// db.Storage implements it over PostgreSQL, memstore.Store in memory.
package store

import (
	"context"
	"time"

	"easybid/models"
)

// Queries is the set of operations available both on the store itself and
// inside a transaction. Lookups of missing records fail with apperr.ErrNotFound,
// unique violations with apperr.ErrConflict.
type Queries interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateEmailPreferences(ctx context.Context, userID string, prefs models.EmailPreferences) error
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)

	CreateTender(ctx context.Context, t *models.Tender) error
	GetTender(ctx context.Context, id string) (*models.Tender, error)
	// LockTender reads a tender and holds it until the surrounding transaction ends.
	LockTender(ctx context.Context, id string) (*models.Tender, error)
	UpdateTenderApproval(ctx context.Context, t *models.Tender) error
	SetTenderStatus(ctx context.Context, id string, status models.TenderStatus) error
	// CloseIfExpired moves an Open tender past its deadline to Closed and
	// reports whether this call did it.
	CloseIfExpired(ctx context.Context, id string, now time.Time) (bool, error)
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
	ListTenders(ctx context.Context, f models.TenderFilter) ([]models.Tender, int, error)

	GetBidForSupplier(ctx context.Context, tenderID, supplierID string) (*models.Bid, error)
	CreateBid(ctx context.Context, b *models.Bid) error
	UpdateBid(ctx context.Context, b *models.Bid) error
	ListBidsByTender(ctx context.Context, tenderID string) ([]models.Bid, error)
	ListBidsBySupplier(ctx context.Context, supplierID string) ([]models.Bid, error)
	// ListRecentBids returns the latest submissions across all tenders.
	ListRecentBids(ctx context.Context, limit int) ([]models.Bid, error)
	// SetBestBid flags bidID as the only best bid of the tender.
	SetBestBid(ctx context.Context, tenderID, bidID string) error
	CountBidsByTender(ctx context.Context, tenderIDs []string) (map[string]int, error)

	// UpsertEvaluation inserts or replaces the evaluation keyed by
	// (TenderID, SupplierID) and fills e with the stored row.
	UpsertEvaluation(ctx context.Context, e *models.Evaluation) error
	ListEvaluations(ctx context.Context, tenderID string) ([]models.Evaluation, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error

	Totals(ctx context.Context) (models.Totals, error)
}

// Store is a Queries that can also run a unit of work atomically.
type Store interface {
	Queries
	// InTx runs fn in a transaction: committed when fn returns nil, rolled
	// back otherwise. Panics roll back and are rethrown.
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}
