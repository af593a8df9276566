// Package memory is an in-memory storage.Store used by tests and by
// local development without Postgres. InTx clones the whole state and
// swaps it back on success, so a failed unit rolls back atomically and
// concurrent units are serialized the same way row locks serialize them.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
)

type state struct {
	users         map[uuid.UUID]models.User
	usersByTg     map[int64]uuid.UUID
	listings      map[uuid.UUID]models.GroupListing
	txs           map[uuid.UUID]models.EscrowTransaction
	disputes      map[uuid.UUID]models.DisputeCase
	disputeByTx   map[uuid.UUID]uuid.UUID
	webhooks      map[uuid.UUID]models.PaymentWebhookRecord
	webhookOrder  []uuid.UUID
	verifications map[uuid.UUID]models.VerificationResult // keyed by transaction id
	audit         []models.AuditLogEntry
}

func newState() *state {
	return &state{
		users:         map[uuid.UUID]models.User{},
		usersByTg:     map[int64]uuid.UUID{},
		listings:      map[uuid.UUID]models.GroupListing{},
		txs:           map[uuid.UUID]models.EscrowTransaction{},
		disputes:      map[uuid.UUID]models.DisputeCase{},
		disputeByTx:   map[uuid.UUID]uuid.UUID{},
		webhooks:      map[uuid.UUID]models.PaymentWebhookRecord{},
		verifications: map[uuid.UUID]models.VerificationResult{},
	}
}

func (s *state) clone() *state {
	return &state{
		users:         maps.Clone(s.users),
		usersByTg:     maps.Clone(s.usersByTg),
		listings:      maps.Clone(s.listings),
		txs:           maps.Clone(s.txs),
		disputes:      maps.Clone(s.disputes),
		disputeByTx:   maps.Clone(s.disputeByTx),
		webhooks:      maps.Clone(s.webhooks),
		webhookOrder:  slices.Clone(s.webhookOrder),
		verifications: maps.Clone(s.verifications),
		audit:         slices.Clone(s.audit),
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

// InTx serializes all units behind one mutex; fn mutates a clone that
// replaces the live state only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.st.clone()
	if err := fn(&queries{st: clone}); err != nil {
		return err
	}
	s.st = clone
	return nil
}

func (s *Store) withRead(fn func(q *queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&queries{st: s.st})
}

type queries struct {
	st *state
}

// ---- Users ----

func (q *queries) UpsertUser(ctx context.Context, u *models.User) error {
	now := time.Now()
	if existingID, ok := q.st.usersByTg[u.TelegramUserID]; ok {
		existing := q.st.users[existingID]
		existing.Username = u.Username
		existing.FirstName = u.FirstName
		existing.LastName = u.LastName
		existing.LastActiveAt = now
		q.st.users[existingID] = existing
		*u = existing
		return nil
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = now
	u.LastActiveAt = now
	q.st.users[u.ID] = *u
	q.st.usersByTg[u.TelegramUserID] = u.ID
	return nil
}

func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (q *queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	id, ok := q.st.usersByTg[telegramID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return q.GetUser(ctx, id)
}

// ---- Listings ----

func (q *queries) CreateListing(ctx context.Context, l *models.GroupListing) error {
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	q.st.listings[l.ID] = *l
	return nil
}

func (q *queries) GetListing(ctx context.Context, id uuid.UUID) (*models.GroupListing, error) {
	l, ok := q.st.listings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

func (q *queries) ListListings(ctx context.Context, f storage.ListingFilter) ([]models.GroupListing, error) {
	var out []models.GroupListing
	for _, l := range q.st.listings {
		if f.SellerID != nil && l.SellerID != *f.SellerID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		if f.Category != nil && l.Category != *f.Category {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b models.GroupListing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (q *queries) UpdateListing(ctx context.Context, l *models.GroupListing) error {
	if _, ok := q.st.listings[l.ID]; !ok {
		return storage.ErrNotFound
	}
	l.UpdatedAt = time.Now()
	q.st.listings[l.ID] = *l
	return nil
}

func (q *queries) UpdateListingStatus(ctx context.Context, id uuid.UUID, status string) error {
	l, ok := q.st.listings[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = time.Now()
	q.st.listings[id] = l
	return nil
}

// ---- Transactions ----

func (q *queries) CreateTransaction(ctx context.Context, t *models.EscrowTransaction) error {
	t.CreatedAt = time.Now()
	q.st.txs[t.ID] = *t
	return nil
}

func (q *queries) GetTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	t, ok := q.st.txs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (q *queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return q.GetTransaction(ctx, id)
}

func (q *queries) UpdateTransaction(ctx context.Context, t *models.EscrowTransaction) error {
	if _, ok := q.st.txs[t.ID]; !ok {
		return storage.ErrNotFound
	}
	q.st.txs[t.ID] = *t
	return nil
}

func (q *queries) ListTransactions(ctx context.Context, f storage.TxFilter) ([]models.EscrowTransaction, error) {
	var out []models.EscrowTransaction
	for _, t := range q.st.txs {
		if f.UserID != nil && t.BuyerID != *f.UserID && t.SellerID != *f.UserID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if len(f.StatusIn) > 0 && !slices.Contains(f.StatusIn, t.Status) {
			continue
		}
		if f.DeadlineBefore != nil && (t.TransferDeadline == nil || !t.TransferDeadline.Before(*f.DeadlineBefore)) {
			continue
		}
		if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.EscrowTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

// ---- Disputes ----

func (q *queries) CreateDispute(ctx context.Context, d *models.DisputeCase) error {
	if _, ok := q.st.disputeByTx[d.TransactionID]; ok {
		return storage.ErrConflict
	}
	d.CreatedAt = time.Now()
	q.st.disputes[d.ID] = *d
	q.st.disputeByTx[d.TransactionID] = d.ID
	return nil
}

func (q *queries) GetDispute(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error) {
	d, ok := q.st.disputes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &d, nil
}

func (q *queries) GetDisputeByTransaction(ctx context.Context, txID uuid.UUID) (*models.DisputeCase, error) {
	id, ok := q.st.disputeByTx[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return q.GetDispute(ctx, id)
}

func (q *queries) UpdateDispute(ctx context.Context, d *models.DisputeCase) error {
	if _, ok := q.st.disputes[d.ID]; !ok {
		return storage.ErrNotFound
	}
	q.st.disputes[d.ID] = *d
	return nil
}

// ---- Webhook records ----

func (q *queries) CreateWebhookRecord(ctx context.Context, r *models.PaymentWebhookRecord) error {
	r.CreatedAt = time.Now()
	q.st.webhooks[r.ID] = *r
	q.st.webhookOrder = append(q.st.webhookOrder, r.ID)
	return nil
}

func (q *queries) MarkWebhookProcessed(ctx context.Context, id uuid.UUID) error {
	r, ok := q.st.webhooks[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Processed = true
	q.st.webhooks[id] = r
	return nil
}

func (q *queries) CountWebhookEvents(ctx context.Context, chargeID, eventType string) (int, error) {
	n := 0
	for _, r := range q.st.webhooks {
		if r.ChargeID == chargeID && r.EventType == eventType {
			n++
		}
	}
	return n, nil
}

// ---- Verification results ----

func (q *queries) UpsertVerificationResult(ctx context.Context, v *models.VerificationResult) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.VerifiedAt = time.Now()
	q.st.verifications[v.TransactionID] = *v
	return nil
}

func (q *queries) GetVerificationResult(ctx context.Context, txID uuid.UUID) (*models.VerificationResult, error) {
	v, ok := q.st.verifications[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

// ---- Audit ----

func (q *queries) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	e.CreatedAt = time.Now()
	q.st.audit = append(q.st.audit, *e)
	return nil
}

func (q *queries) ListAuditByTransaction(ctx context.Context, txID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.AuditLogEntry
	for i := len(q.st.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if q.st.audit[i].TransactionID == txID {
			out = append(out, q.st.audit[i])
		}
	}
	return out, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ---- Store pass-throughs (reads outside a unit) ----

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.UpsertUser(ctx, u) })
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetUser(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var out *models.User
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetUserByTelegramID(ctx, telegramID)
		return err
	})
	return out, err
}

func (s *Store) CreateListing(ctx context.Context, l *models.GroupListing) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.CreateListing(ctx, l) })
}

func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (*models.GroupListing, error) {
	var out *models.GroupListing
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetListing(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ListListings(ctx context.Context, f storage.ListingFilter) ([]models.GroupListing, error) {
	var out []models.GroupListing
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.ListListings(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) UpdateListing(ctx context.Context, l *models.GroupListing) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.UpdateListing(ctx, l) })
}

func (s *Store) UpdateListingStatus(ctx context.Context, id uuid.UUID, status string) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.UpdateListingStatus(ctx, id, status) })
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.EscrowTransaction) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.CreateTransaction(ctx, t) })
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	var out *models.EscrowTransaction
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetTransaction(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return s.GetTransaction(ctx, id)
}

func (s *Store) UpdateTransaction(ctx context.Context, t *models.EscrowTransaction) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.UpdateTransaction(ctx, t) })
}

func (s *Store) ListTransactions(ctx context.Context, f storage.TxFilter) ([]models.EscrowTransaction, error) {
	var out []models.EscrowTransaction
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) CreateDispute(ctx context.Context, d *models.DisputeCase) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.CreateDispute(ctx, d) })
}

func (s *Store) GetDispute(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error) {
	var out *models.DisputeCase
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetDispute(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) GetDisputeByTransaction(ctx context.Context, txID uuid.UUID) (*models.DisputeCase, error) {
	var out *models.DisputeCase
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetDisputeByTransaction(ctx, txID)
		return err
	})
	return out, err
}

func (s *Store) UpdateDispute(ctx context.Context, d *models.DisputeCase) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.UpdateDispute(ctx, d) })
}

func (s *Store) CreateWebhookRecord(ctx context.Context, r *models.PaymentWebhookRecord) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.CreateWebhookRecord(ctx, r) })
}

func (s *Store) MarkWebhookProcessed(ctx context.Context, id uuid.UUID) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.MarkWebhookProcessed(ctx, id) })
}

func (s *Store) CountWebhookEvents(ctx context.Context, chargeID, eventType string) (int, error) {
	var out int
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.CountWebhookEvents(ctx, chargeID, eventType)
		return err
	})
	return out, err
}

func (s *Store) UpsertVerificationResult(ctx context.Context, v *models.VerificationResult) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.UpsertVerificationResult(ctx, v) })
}

func (s *Store) GetVerificationResult(ctx context.Context, txID uuid.UUID) (*models.VerificationResult, error) {
	var out *models.VerificationResult
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.GetVerificationResult(ctx, txID)
		return err
	})
	return out, err
}

func (s *Store) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	return s.InTx(ctx, func(q storage.Queries) error { return q.AppendAudit(ctx, e) })
}

func (s *Store) ListAuditByTransaction(ctx context.Context, txID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	var out []models.AuditLogEntry
	err := s.withRead(func(q *queries) error {
		var err error
		out, err = q.ListAuditByTransaction(ctx, txID, limit)
		return err
	})
	return out, err
}
