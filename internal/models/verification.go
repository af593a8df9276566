package models

import (
	"time"

	"github.com/google/uuid"
)

// Verification outcomes
const (
	VerificationPending      = "PENDING"
	VerificationPassed       = "PASSED"
	VerificationFailed       = "FAILED"
	VerificationManualReview = "MANUAL_REVIEW"
)

// VerificationResult is the latest gate outcome for a transaction.
// Re-running verification overwrites the previous result.
type VerificationResult struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`

	Result string `json:"result"`

	OwnershipVerified       bool `json:"ownership_verified"`
	MetadataMatches         bool `json:"metadata_matches"`
	AdminPermissionsCorrect bool `json:"admin_permissions_correct"`

	Details        map[string]any `json:"details,omitempty"`
	FailureReasons []string       `json:"failure_reasons,omitempty"`

	VerifiedAt time.Time `json:"verified_at"`
}

func (v *VerificationResult) Passed() bool {
	return v.Result == VerificationPassed
}
