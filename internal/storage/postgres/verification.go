package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
)

func (q *queries) UpsertVerificationResult(ctx context.Context, v *models.VerificationResult) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO verification_results
			(id, transaction_id, result, ownership_verified, metadata_matches,
			 admin_permissions_correct, details, failure_reasons, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (transaction_id) DO UPDATE SET
			result = EXCLUDED.result,
			ownership_verified = EXCLUDED.ownership_verified,
			metadata_matches = EXCLUDED.metadata_matches,
			admin_permissions_correct = EXCLUDED.admin_permissions_correct,
			details = EXCLUDED.details,
			failure_reasons = EXCLUDED.failure_reasons,
			verified_at = now()
		RETURNING id, verified_at
	`, v.ID, v.TransactionID, v.Result, v.OwnershipVerified, v.MetadataMatches,
		v.AdminPermissionsCorrect, v.Details, v.FailureReasons,
	).Scan(&v.ID, &v.VerifiedAt)
	return mapErr(err)
}

func (q *queries) GetVerificationResult(ctx context.Context, txID uuid.UUID) (*models.VerificationResult, error) {
	var v models.VerificationResult
	err := q.db.QueryRow(ctx, `
		SELECT id, transaction_id, result, ownership_verified, metadata_matches,
		       admin_permissions_correct, details, failure_reasons, verified_at
		FROM verification_results WHERE transaction_id = $1
	`, txID).Scan(&v.ID, &v.TransactionID, &v.Result, &v.OwnershipVerified, &v.MetadataMatches,
		&v.AdminPermissionsCorrect, &v.Details, &v.FailureReasons, &v.VerifiedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}
