package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		expected   bool
	}{
		{RoleBuyer, PermCreateEscrow, true},
		{RoleBuyer, PermOpenDispute, true},
		{RoleBuyer, PermResolveDispute, false},
		{RoleBuyer, PermReleaseFunds, false},

		{RoleSeller, PermCreateListing, true},
		{RoleSeller, PermMarkTransferred, true},
		{RoleSeller, PermReleaseFunds, false},

		{RoleArbitrator, PermResolveDispute, true},
		{RoleArbitrator, PermAssignDispute, true},
		{RoleArbitrator, PermReleaseFunds, false},
		{RoleArbitrator, PermSuspendListing, false},

		{RoleAdmin, PermReleaseFunds, true},
		{RoleAdmin, PermRefundFunds, true},
		{RoleAdmin, PermResolveDispute, true},
		{RoleAdmin, PermSuspendListing, true},

		{"unknown", PermCreateEscrow, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.permission, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.permission); got != tt.expected {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.expected)
			}
		})
	}
}

// Held money never moves on a buyer's or seller's say-so alone.
func TestFundsMovementNeverGrantedToParties(t *testing.T) {
	for _, role := range []string{RoleBuyer, RoleSeller} {
		for _, perm := range []string{PermReleaseFunds, PermRefundFunds, PermResolveDispute} {
			if HasPermission(role, perm) {
				t.Errorf("role %q must not hold %q", role, perm)
			}
		}
	}
}
