package models

import "testing"

func TestIsValidTxTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{TxStatusPending, TxStatusFunded, true},
		{TxStatusFunded, TxStatusAwaitingTransfer, true},
		{TxStatusAwaitingTransfer, TxStatusVerifying, true},
		{TxStatusAwaitingTransfer, TxStatusCompleted, true},
		{TxStatusVerifying, TxStatusCompleted, true},

		// Dispute paths
		{TxStatusPending, TxStatusDisputed, true},
		{TxStatusFunded, TxStatusDisputed, true},
		{TxStatusAwaitingTransfer, TxStatusDisputed, true},
		{TxStatusVerifying, TxStatusDisputed, true},
		{TxStatusDisputed, TxStatusCompleted, true},
		{TxStatusDisputed, TxStatusRefunded, true},
		{TxStatusDisputed, TxStatusAwaitingTransfer, true},
		{TxStatusDisputed, TxStatusPending, true},

		// Refund / cancel paths
		{TxStatusPending, TxStatusCancelled, true},
		{TxStatusPending, TxStatusRefunded, true},
		{TxStatusFunded, TxStatusRefunded, true},
		{TxStatusAwaitingTransfer, TxStatusRefunded, true},
		{TxStatusVerifying, TxStatusRefunded, true},

		// Invalid transitions
		{TxStatusPending, TxStatusAwaitingTransfer, false},
		{TxStatusPending, TxStatusCompleted, false},
		{TxStatusFunded, TxStatusCompleted, false},
		{TxStatusFunded, TxStatusPending, false},
		{TxStatusCompleted, TxStatusRefunded, false},
		{TxStatusRefunded, TxStatusCompleted, false},
		{TxStatusCancelled, TxStatusFunded, false},
		{TxStatusCompleted, TxStatusDisputed, false},
		{"nonexistent", TxStatusFunded, false},
		{TxStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTxTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTxTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllTxStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		TxStatusPending, TxStatusFunded, TxStatusAwaitingTransfer,
		TxStatusVerifying, TxStatusCompleted, TxStatusRefunded,
		TxStatusDisputed, TxStatusCancelled,
	}

	for _, status := range allStatuses {
		if _, ok := ValidTxTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidTxTransitions map", status)
		}
	}
}

func TestTerminalTxStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{TxStatusCompleted, TxStatusRefunded, TxStatusCancelled}
	for _, status := range terminal {
		if !IsTerminalTxStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
		if transitions := ValidTxTransitions[status]; len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestIsValidCurrency(t *testing.T) {
	for _, c := range []string{CurrencyUSDT, CurrencyETH, CurrencyBTC} {
		if !IsValidCurrency(c) {
			t.Errorf("currency %q should be valid", c)
		}
	}
	for _, c := range []string{"", "TON", "usdt", "DOGE"} {
		if IsValidCurrency(c) {
			t.Errorf("currency %q should be invalid", c)
		}
	}
}

func TestAppendNote(t *testing.T) {
	var tx EscrowTransaction
	tx.AppendNote("first")
	tx.AppendNote("second")
	if tx.Notes != "first\nsecond" {
		t.Errorf("unexpected notes: %q", tx.Notes)
	}
}
