package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trustlink/backend/internal/config"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
	"github.com/trustlink/backend/internal/tme"
	"go.uber.org/zap"
)

// PreviewFetcher provides the public t.me cross-check. *tme.Parser
// implements it; a nil fetcher disables the cross-check.
type PreviewFetcher interface {
	FetchPreview(ctx context.Context, username string) (*tme.GroupPreview, error)
}

// ListingService manages the group-for-sale catalog. Creating a listing
// snapshots the group through the bot probe: that snapshot is what the
// verification gate later compares against.
type ListingService struct {
	store   storage.Store
	probe   GroupProber
	preview PreviewFetcher
	cfg     *config.Config
	log     *zap.Logger
}

func NewListingService(store storage.Store, probe GroupProber, preview PreviewFetcher, cfg *config.Config, log *zap.Logger) *ListingService {
	return &ListingService{store: store, probe: probe, preview: preview, cfg: cfg, log: log}
}

type CreateListingInput struct {
	GroupID     int64
	PriceUSD    decimal.Decimal
	Category    string
	Description string
}

// Create lists a group for sale. The seller must own the group and the
// bot must already be an admin in it; both facts come from the live
// probe, never from the seller's claim.
func (s *ListingService) Create(ctx context.Context, sellerID uuid.UUID, input CreateListingInput) (*models.GroupListing, error) {
	if !models.IsValidCategory(input.Category) {
		return nil, models.NewValidationError("category", "unknown category")
	}
	if !input.PriceUSD.IsPositive() {
		return nil, models.NewValidationError("price_usd", "price must be positive")
	}
	if input.GroupID == 0 {
		return nil, models.NewValidationError("group_id", "group_id is required")
	}

	seller, err := s.store.GetUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	info, err := s.probe.GetGroupInfo(ctx, input.GroupID)
	if err != nil {
		return nil, models.NewValidationError("group_id", "group is not reachable, add the bot to the group first")
	}
	if info.OwnerID != seller.TelegramUserID {
		return nil, models.NewValidationError("group_id", "only the group owner can list it")
	}
	if !info.BotIsAdmin {
		return nil, models.NewValidationError("group_id", "bot must be an admin in the group")
	}

	memberCount := info.MemberCount
	if s.preview != nil && info.Username != nil {
		if p, err := s.preview.FetchPreview(ctx, *info.Username); err == nil && p.MemberCount != nil {
			// Public preview disagreeing wildly with the probe is worth
			// a log line; the probe wins.
			if *p.MemberCount*2 < memberCount || memberCount*2 < *p.MemberCount {
				s.log.Warn("t.me preview disagrees with probe",
					zap.Int64("group_id", input.GroupID),
					zap.Int("probe_members", memberCount),
					zap.Int("preview_members", *p.MemberCount),
				)
			}
		}
	}

	now := time.Now()
	expires := now.Add(s.listingTTL())
	listing := &models.GroupListing{
		ID:                uuid.New(),
		SellerID:          sellerID,
		GroupID:           input.GroupID,
		GroupUsername:     info.Username,
		GroupTitle:        info.Title,
		GroupDescription:  input.Description,
		MemberCount:       memberCount,
		PriceUSD:          input.PriceUSD,
		Category:          input.Category,
		Status:            models.ListingStatusActive,
		AdminListSnapshot: info.AdminIDs,
		BotIsAdmin:        info.BotIsAdmin,
		LastVerifiedAt:    &now,
		ExpiresAt:         &expires,
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.log.Info("listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.Int64("group_id", listing.GroupID),
		zap.String("price_usd", listing.PriceUSD.String()),
	)
	return listing, nil
}

type UpdateListingInput struct {
	PriceUSD    *decimal.Decimal
	Category    *string
	Description *string
}

func (s *ListingService) Update(ctx context.Context, listingID, sellerID uuid.UUID, input UpdateListingInput) (*models.GroupListing, error) {
	var listing *models.GroupListing
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		listing, err = q.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return models.NewValidationError("seller_id", "not your listing")
		}
		if listing.Status != models.ListingStatusDraft && listing.Status != models.ListingStatusActive {
			return models.NewValidationError("status", "listing can no longer be edited")
		}

		if input.PriceUSD != nil {
			if !input.PriceUSD.IsPositive() {
				return models.NewValidationError("price_usd", "price must be positive")
			}
			listing.PriceUSD = *input.PriceUSD
		}
		if input.Category != nil {
			if !models.IsValidCategory(*input.Category) {
				return models.NewValidationError("category", "unknown category")
			}
			listing.Category = *input.Category
		}
		if input.Description != nil {
			listing.GroupDescription = *input.Description
		}
		return q.UpdateListing(ctx, listing)
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Refresh re-probes the group and updates the stored snapshot.
func (s *ListingService) Refresh(ctx context.Context, listingID uuid.UUID) (*models.GroupListing, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	info, err := s.probe.GetGroupInfo(ctx, listing.GroupID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	listing.GroupTitle = info.Title
	listing.GroupUsername = info.Username
	listing.MemberCount = info.MemberCount
	listing.AdminListSnapshot = info.AdminIDs
	listing.BotIsAdmin = info.BotIsAdmin
	listing.LastVerifiedAt = &now
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Suspend pulls a listing from the catalog (admin moderation).
func (s *ListingService) Suspend(ctx context.Context, listingID uuid.UUID) error {
	return s.store.UpdateListingStatus(ctx, listingID, models.ListingStatusSuspended)
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.GroupListing, error) {
	return s.store.GetListing(ctx, id)
}

func (s *ListingService) List(ctx context.Context, f storage.ListingFilter) ([]models.GroupListing, error) {
	return s.store.ListListings(ctx, f)
}

// ExpireSweep marks ACTIVE listings past their TTL as EXPIRED.
func (s *ListingService) ExpireSweep(ctx context.Context) error {
	active := models.ListingStatusActive
	listings, err := s.store.ListListings(ctx, storage.ListingFilter{Status: &active, Limit: 100})
	if err != nil {
		return err
	}
	now := time.Now()
	for _, l := range listings {
		if !l.IsExpired(now) {
			continue
		}
		if err := s.store.UpdateListingStatus(ctx, l.ID, models.ListingStatusExpired); err != nil {
			s.log.Error("listing expiry failed", zap.String("listing_id", l.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *ListingService) listingTTL() time.Duration {
	if s.cfg != nil && s.cfg.ListingTTL > 0 {
		return s.cfg.ListingTTL
	}
	return 30 * 24 * time.Hour
}
