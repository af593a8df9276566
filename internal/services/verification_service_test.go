package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trustlink/backend/internal/models"
)

func TestVerificationPassed(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	result, err := env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)
	require.Equal(t, models.VerificationPassed, result.Result)
	require.True(t, result.OwnershipVerified)
	require.True(t, result.MetadataMatches)
	require.True(t, result.AdminPermissionsCorrect)
	require.Empty(t, result.FailureReasons)
}

func TestVerificationWrongOwnerFails(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	result, err := env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, 4242)
	require.NoError(t, err)
	require.Equal(t, models.VerificationFailed, result.Result)
	require.False(t, result.OwnershipVerified)
	require.NotEmpty(t, result.FailureReasons)
}

func TestVerificationProbeUnreachableFailsClosed(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	env.probe.fail(errors.New("connection refused"))

	result, err := env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)
	require.Equal(t, models.VerificationFailed, result.Result)
	require.Equal(t, []string{ReasonProbeUnreachable}, result.FailureReasons)
	require.Contains(t, result.Details, "probe_error")
}

func TestVerificationTitleDriftNeedsManualReview(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	env.probe.set(testGroupID, GroupInfo{
		Title:       "Totally Different Name",
		MemberCount: testMembers,
		OwnerID:     sellerTgID,
		BotIsAdmin:  true,
	})

	result, err := env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)
	require.Equal(t, models.VerificationManualReview, result.Result)
	require.True(t, result.OwnershipVerified)
	require.False(t, result.MetadataMatches)
}

func TestVerificationMemberCollapseDrifts(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	// Losing half the community counts as drift; a small dip does not.
	env.probe.set(testGroupID, GroupInfo{
		Title:       testTitle,
		MemberCount: testMembers/2 - 1,
		OwnerID:     sellerTgID,
		BotIsAdmin:  true,
	})
	result, err := env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)
	require.False(t, result.MetadataMatches)

	env.probe.set(testGroupID, GroupInfo{
		Title:       testTitle,
		MemberCount: testMembers - 100,
		OwnerID:     sellerTgID,
		BotIsAdmin:  true,
	})
	result, err = env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)
	require.True(t, result.MetadataMatches)
}

func TestVerificationBotLostAdminFails(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	env.probe.set(testGroupID, GroupInfo{
		Title:       testTitle,
		MemberCount: testMembers,
		OwnerID:     sellerTgID,
		BotIsAdmin:  false,
	})

	result, err := env.escrow.verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)
	require.Equal(t, models.VerificationFailed, result.Result)
	require.False(t, result.AdminPermissionsCorrect)
}

func TestVerificationLatestWins(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)
	verifier := env.escrow.verifier

	env.probe.fail(errors.New("down"))
	_, err := verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)

	env.probe.fail(nil)
	_, err = verifier.VerifySellerOwnership(ctx, tx, env.listing, sellerTgID)
	require.NoError(t, err)

	latest, err := verifier.Latest(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.VerificationPassed, latest.Result)
}
