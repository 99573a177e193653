package models

import (
	"math"
	"time"
)

// Роли пользователей
type Role string

const (
	RoleBuyer    Role = "Buyer"
	RoleSupplier Role = "Supplier"
	RoleAdmin    Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

// EmailPreferences toggles outbound mail per notification category.
type EmailPreferences struct {
	TenderApproval bool `db:"pref_tender_approval" json:"tenderApproval"`
	NewBids        bool `db:"pref_new_bids" json:"newBids"`
	NewTenders     bool `db:"pref_new_tenders" json:"newTenders"`
	SystemUpdates  bool `db:"pref_system_updates" json:"systemUpdates"`
	WeeklyDigest   bool `db:"pref_weekly_digest" json:"weeklyDigest"`
}

func DefaultEmailPreferences() EmailPreferences {
	return EmailPreferences{
		TenderApproval: true,
		NewBids:        true,
		NewTenders:     true,
		SystemUpdates:  true,
	}
}

// Сущность Пользователя
type User struct {
	ID               string `db:"id" json:"id"`
	Name             string `db:"name" json:"name"`
	Email            string `db:"email" json:"email"`
	PasswordHash     string `db:"password_hash" json:"-"`
	Role             Role   `db:"role" json:"role"`
	EmailPreferences `json:"emailPreferences"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

type Category string

const (
	CategoryRoad           Category = "Road Infrastructure"
	CategoryElectricity    Category = "Electricity & Power"
	CategoryEducation      Category = "Education"
	CategoryCrops          Category = "Crops & Farming"
	CategoryPharma         Category = "Pharmaceuticals"
	CategoryHealthcare     Category = "Healthcare"
	CategoryConstruction   Category = "Construction"
	CategoryIT             Category = "IT & Technology"
	CategoryTransportation Category = "Transportation"
	CategoryWater          Category = "Water & Sanitation"
	CategoryOther          Category = "Other"
)

var Categories = []Category{
	CategoryRoad, CategoryElectricity, CategoryEducation, CategoryCrops, CategoryPharma,
	CategoryHealthcare, CategoryConstruction, CategoryIT, CategoryTransportation,
	CategoryWater, CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type TenderStatus string

const (
	TenderOpen      TenderStatus = "Open"
	TenderClosed    TenderStatus = "Closed"
	TenderEvaluated TenderStatus = "Evaluated"
)

func (s TenderStatus) Valid() bool {
	return s == TenderOpen || s == TenderClosed || s == TenderEvaluated
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// Сущность Тендера
type Tender struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	Category        Category       `db:"category" json:"category"`
	CustomCategory  string         `db:"custom_category" json:"customCategory,omitempty"`
	Budget          *float64       `db:"budget" json:"budget,omitempty"`
	Deadline        time.Time      `db:"deadline" json:"deadline"`
	FileURL         string         `db:"file_url" json:"fileUrl,omitempty"`
	Status          TenderStatus   `db:"status" json:"status"`
	ApprovalStatus  ApprovalStatus `db:"approval_status" json:"approvalStatus"`
	ApprovedBy      *string        `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time     `db:"approved_at" json:"approvedAt,omitempty"`
	RejectionReason string         `db:"rejection_reason" json:"rejectionReason,omitempty"`
	BuyerID         string         `db:"buyer_id" json:"buyerId"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// CreatedBy returns the owning buyer. Ownership is stored once, in BuyerID.
func (t *Tender) CreatedBy() string { return t.BuyerID }

// Expired reports whether the deadline has passed for a tender that is still open.
func (t *Tender) Expired(now time.Time) bool {
	return t.Status == TenderOpen && now.After(t.Deadline)
}

// AcceptsBids reports whether suppliers may bid at the given instant.
func (t *Tender) AcceptsBids(now time.Time) bool {
	return t.Status == TenderOpen && t.ApprovalStatus == ApprovalApproved && !now.After(t.Deadline)
}

// WithinBudget reports whether amount respects the optional budget ceiling.
func (t *Tender) WithinBudget(amount float64) bool {
	return t.Budget == nil || amount <= *t.Budget
}

type BidStatus string

const (
	BidSubmitted   BidStatus = "Submitted"
	BidUnderReview BidStatus = "Under Review"
	BidAccepted    BidStatus = "Accepted"
	BidRejected    BidStatus = "Rejected"
)

// Сущность Предложения
type Bid struct {
	ID              string    `db:"id" json:"id"`
	TenderID        string    `db:"tender_id" json:"tenderId"`
	SupplierID      string    `db:"supplier_id" json:"supplierId"`
	Amount          float64   `db:"amount" json:"amount"`
	Status          BidStatus `db:"status" json:"status"`
	SubmittedAt     time.Time `db:"submitted_at" json:"submittedAt"`
	EvaluationScore *float64  `db:"evaluation_score" json:"evaluationScore,omitempty"`
	Comments        string    `db:"comments" json:"comments,omitempty"`
	BidFile         string    `db:"bid_file" json:"bidFile,omitempty"`
	IsBestBid       bool      `db:"is_best_bid" json:"isBestBid"`
}

// ValidAmount reports whether amount is a finite positive number.
func ValidAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount > 0
}

// Сущность Оценки
type Evaluation struct {
	ID         string    `db:"id" json:"id"`
	TenderID   string    `db:"tender_id" json:"tenderId"`
	BuyerID    string    `db:"buyer_id" json:"buyerId"`
	SupplierID string    `db:"supplier_id" json:"supplierId"`
	Score      float64   `db:"score" json:"score"`
	Remarks    string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

type NotificationType string

const (
	NotifyTenderApproved NotificationType = "tender_approved"
	NotifyTenderRejected NotificationType = "tender_rejected"
	NotifyNewBid         NotificationType = "new_bid"
	NotifyNewTender      NotificationType = "new_tender"
	NotifySystem         NotificationType = "system"
	NotifyReminder       NotificationType = "reminder"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyTenderApproved, NotifyTenderRejected, NotifyNewBid, NotifyNewTender, NotifySystem, NotifyReminder:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// NotificationMeta points at the records a notification is about.
type NotificationMeta struct {
	TenderID      string `db:"meta_tender_id" json:"tenderId,omitempty"`
	BidID         string `db:"meta_bid_id" json:"bidId,omitempty"`
	RelatedUserID string `db:"meta_related_user_id" json:"relatedUserId,omitempty"`
}

// Сущность Уведомления
type Notification struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"userId"`
	Title            string           `db:"title" json:"title"`
	Message          string           `db:"message" json:"message"`
	Type             NotificationType `db:"type" json:"type"`
	Priority         Priority         `db:"priority" json:"priority"`
	Read             bool             `db:"read" json:"read"`
	ActionURL        string           `db:"action_url" json:"actionUrl,omitempty"`
	NotificationMeta `json:"metadata"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// TenderFilter selects tenders for listings. Zero values mean "any".
type TenderFilter struct {
	Search         string
	Category       Category
	Status         TenderStatus
	ApprovalStatus ApprovalStatus
	BuyerID        string
	DeadlineBefore *time.Time
	NewestFirst    bool
	Limit          int
	Offset         int
}

// Totals feeds the admin dashboard.
type Totals struct {
	Users          int `db:"users" json:"totalUsers"`
	Buyers         int `db:"buyers" json:"totalBuyers"`
	Suppliers      int `db:"suppliers" json:"totalSuppliers"`
	Tenders        int `db:"tenders" json:"totalTenders"`
	PendingTenders int `db:"pending_tenders" json:"pendingTenders"`
	OpenTenders    int `db:"open_tenders" json:"openTenders"`
	Bids           int `db:"bids" json:"totalBids"`
}
