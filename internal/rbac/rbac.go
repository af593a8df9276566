package rbac

// Role constants
const (
	RoleBuyer      = "buyer"
	RoleSeller     = "seller"
	RoleArbitrator = "arbitrator"
	RoleAdmin      = "admin"
)

// Permission constants
const (
	PermCreateListing   = "create_listing"
	PermManageListing   = "manage_listing"
	PermCreateEscrow    = "create_escrow"
	PermMarkTransferred = "mark_transferred"
	PermCancelEscrow    = "cancel_escrow"
	PermOpenDispute     = "open_dispute"
	PermSubmitEvidence  = "submit_evidence"
	PermAssignDispute   = "assign_dispute"
	PermResolveDispute  = "resolve_dispute"
	PermReleaseFunds    = "release_funds"
	PermRefundFunds     = "refund_funds"
	PermSuspendListing  = "suspend_listing"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleBuyer: {
		PermCreateEscrow, PermCancelEscrow, PermOpenDispute, PermSubmitEvidence,
	},
	RoleSeller: {
		PermCreateListing, PermManageListing, PermMarkTransferred,
		PermOpenDispute, PermSubmitEvidence,
	},
	RoleArbitrator: {
		PermAssignDispute, PermResolveDispute, PermSubmitEvidence,
	},
	RoleAdmin: {
		PermAssignDispute, PermResolveDispute, PermReleaseFunds, PermRefundFunds,
		PermSuspendListing, PermCancelEscrow,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
