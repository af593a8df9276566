package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a concurrent mutation wins at commit
	// time. Callers may retry once after re-validating state.
	ErrConflict = errors.New("storage: conflict")
)

// TxFilter narrows transaction list queries.
type TxFilter struct {
	UserID         *uuid.UUID // buyer or seller
	Status         *string
	StatusIn       []string
	DeadlineBefore *time.Time
	CreatedBefore  *time.Time
	Limit          int
	Offset         int
}

// ListingFilter narrows listing list queries.
type ListingFilter struct {
	SellerID *uuid.UUID
	Status   *string
	Category *string
	Limit    int
	Offset   int
}

// Queries is the full set of persistence operations. Inside InTx the
// ForUpdate reads take exclusive row locks; outside they are plain reads.
type Queries interface {
	// Users
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// Listings
	CreateListing(ctx context.Context, l *models.GroupListing) error
	GetListing(ctx context.Context, id uuid.UUID) (*models.GroupListing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]models.GroupListing, error)
	UpdateListing(ctx context.Context, l *models.GroupListing) error
	UpdateListingStatus(ctx context.Context, id uuid.UUID, status string) error

	// Escrow transactions
	CreateTransaction(ctx context.Context, t *models.EscrowTransaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	UpdateTransaction(ctx context.Context, t *models.EscrowTransaction) error
	ListTransactions(ctx context.Context, f TxFilter) ([]models.EscrowTransaction, error)

	// Dispute cases
	CreateDispute(ctx context.Context, d *models.DisputeCase) error
	GetDispute(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error)
	GetDisputeByTransaction(ctx context.Context, txID uuid.UUID) (*models.DisputeCase, error)
	UpdateDispute(ctx context.Context, d *models.DisputeCase) error

	// Payment webhook records
	CreateWebhookRecord(ctx context.Context, r *models.PaymentWebhookRecord) error
	MarkWebhookProcessed(ctx context.Context, id uuid.UUID) error
	CountWebhookEvents(ctx context.Context, chargeID, eventType string) (int, error)

	// Verification results (latest wins per transaction)
	UpsertVerificationResult(ctx context.Context, v *models.VerificationResult) error
	GetVerificationResult(ctx context.Context, txID uuid.UUID) (*models.VerificationResult, error)

	// Audit log
	AppendAudit(ctx context.Context, e *models.AuditLogEntry) error
	ListAuditByTransaction(ctx context.Context, txID uuid.UUID, limit int) ([]models.AuditLogEntry, error)
}

// Store adds the transactional unit. Every state check + mutation + audit
// write runs inside a single InTx call; fn returning an error rolls the
// whole unit back.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}
