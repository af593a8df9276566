package models

import "testing"

func TestIsValidDisputeTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{DisputeStatusOpen, DisputeStatusInvestigating, true},
		{DisputeStatusOpen, DisputeStatusAwaitingRuling, true},
		{DisputeStatusOpen, DisputeStatusResolved, true},
		{DisputeStatusInvestigating, DisputeStatusAwaitingRuling, true},
		{DisputeStatusInvestigating, DisputeStatusResolved, true},
		{DisputeStatusAwaitingRuling, DisputeStatusResolved, true},
		{DisputeStatusResolved, DisputeStatusClosed, true},
		// Rollback after a failed fund movement
		{DisputeStatusResolved, DisputeStatusAwaitingRuling, true},

		{DisputeStatusClosed, DisputeStatusOpen, false},
		{DisputeStatusClosed, DisputeStatusResolved, false},
		{DisputeStatusResolved, DisputeStatusOpen, false},
		{DisputeStatusAwaitingRuling, DisputeStatusOpen, false},
		{"nonexistent", DisputeStatusResolved, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidDisputeTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidDisputeTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestRulingValid(t *testing.T) {
	for _, r := range []Ruling{RulingFavorSeller, RulingFavorBuyer, RulingPartialRefund, RulingNoAction} {
		if !r.Valid() {
			t.Errorf("ruling %q should be valid", r)
		}
	}
	if Ruling("SPLIT_THE_BABY").Valid() {
		t.Error("unknown ruling should be invalid")
	}
}
