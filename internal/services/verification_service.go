package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

// GroupProber is the live-view side of the verification gate. *BotClient
// implements it; tests substitute a fake.
type GroupProber interface {
	GetGroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error)
	CheckOwnership(ctx context.Context, groupID, telegramUserID int64) (*CheckOwnershipResult, error)
}

const ReasonProbeUnreachable = "probe unreachable"

// VerificationService runs the three-point gate against the bot's live
// view of a group: ownership, metadata drift, bot admin rights. The gate
// fails closed: if the probe cannot answer, the result is FAILED with
// the probe-unreachable reason, never a silent pass.
type VerificationService struct {
	store storage.Store
	probe GroupProber
	log   *zap.Logger
}

func NewVerificationService(store storage.Store, probe GroupProber, log *zap.Logger) *VerificationService {
	return &VerificationService{store: store, probe: probe, log: log}
}

// VerifySellerOwnership is the pre-transfer gate: the seller must still
// own the group they listed before the buyer's money starts a transfer
// window. Runs without holding any transaction lock.
func (s *VerificationService) VerifySellerOwnership(ctx context.Context, t *models.EscrowTransaction, listing *models.GroupListing, sellerTelegramID int64) (*models.VerificationResult, error) {
	return s.run(ctx, t.ID, listing, sellerTelegramID)
}

// VerifyTransferred is the post-transfer gate: the buyer must now own
// the group before held funds are released to the seller.
func (s *VerificationService) VerifyTransferred(ctx context.Context, t *models.EscrowTransaction, listing *models.GroupListing, buyerTelegramID int64) (*models.VerificationResult, error) {
	return s.run(ctx, t.ID, listing, buyerTelegramID)
}

func (s *VerificationService) run(ctx context.Context, txID uuid.UUID, listing *models.GroupListing, expectedOwnerTelegramID int64) (*models.VerificationResult, error) {
	result := &models.VerificationResult{
		ID:            uuid.New(),
		TransactionID: txID,
		Details:       map[string]any{"group_id": listing.GroupID},
	}

	info, err := s.probe.GetGroupInfo(ctx, listing.GroupID)
	if err != nil {
		s.log.Warn("verification probe failed",
			zap.String("transaction_id", txID.String()),
			zap.Int64("group_id", listing.GroupID),
			zap.Error(err),
		)
		result.Result = models.VerificationFailed
		result.FailureReasons = []string{ReasonProbeUnreachable}
		result.Details["probe_error"] = err.Error()
		if err := s.store.UpsertVerificationResult(ctx, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	result.OwnershipVerified = info.OwnerID == expectedOwnerTelegramID
	if !result.OwnershipVerified {
		result.FailureReasons = append(result.FailureReasons,
			fmt.Sprintf("group owner %d does not match expected user %d", info.OwnerID, expectedOwnerTelegramID))
	}

	result.MetadataMatches = metadataMatches(listing, info)
	if !result.MetadataMatches {
		result.FailureReasons = append(result.FailureReasons, "group metadata drifted from listing snapshot")
		result.Details["live_title"] = info.Title
		result.Details["live_member_count"] = info.MemberCount
	}

	result.AdminPermissionsCorrect = info.BotIsAdmin
	if !result.AdminPermissionsCorrect {
		result.FailureReasons = append(result.FailureReasons, "bot lost admin rights in group")
	}

	if result.OwnershipVerified && result.MetadataMatches && result.AdminPermissionsCorrect {
		result.Result = models.VerificationPassed
	} else if result.OwnershipVerified && !result.MetadataMatches && result.AdminPermissionsCorrect {
		// Owner and bot are fine, only the metadata drifted. A retitled
		// group is worth a human look, not an automatic dispute.
		result.Result = models.VerificationManualReview
	} else {
		result.Result = models.VerificationFailed
	}

	if err := s.store.UpsertVerificationResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Latest returns the most recent gate outcome for a transaction.
func (s *VerificationService) Latest(ctx context.Context, txID uuid.UUID) (*models.VerificationResult, error) {
	return s.store.GetVerificationResult(ctx, txID)
}

func metadataMatches(listing *models.GroupListing, info *GroupInfo) bool {
	if info.Title != listing.GroupTitle {
		return false
	}
	// A community can shrink a bit between listing and sale, but losing
	// half its members means the buyer is not getting what was listed.
	return info.MemberCount*2 >= listing.MemberCount
}
