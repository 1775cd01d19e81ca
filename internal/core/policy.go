package core

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleCampStorekeeper, RoleChef, RoleHousekeeping, RoleCampManager,
		RoleStoresManager, RoleProcurementOfficer, RoleDirector, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller as asserted by the upstream gateway.
// CampID is zero for head-office roles that are not bound to a camp.
type Principal struct {
	UserID int
	Role   Role
	CampID int
}

// Policy answers capability questions for a principal. It is evaluated once
// per request by the handlers; the workflows receive its answers, not raw
// role strings.
type Policy struct {
	p Principal
}

func NewPolicy(p Principal) Policy {
	return Policy{p: p}
}

func (pl Policy) Principal() Principal {
	return pl.p
}

// headOffice is the reviewer/depot tier that sees every camp.
func (pl Policy) headOffice() bool {
	switch pl.p.Role {
	case RoleStoresManager, RoleProcurementOfficer, RoleDirector, RoleAdmin:
		return true
	}
	return false
}

// ScopeCampFilter narrows a list filter to what the principal may see.
// Head-office roles keep the requested filter; camp roles are pinned to
// their own camp regardless of what they asked for.
func (pl Policy) ScopeCampFilter(requested int) int {
	if pl.headOffice() {
		return requested
	}
	return pl.p.CampID
}

// CanAccessCamp reports whether the principal may read data for campID.
// Camp-scoped roles see their own camp only.
func (pl Policy) CanAccessCamp(campID int) bool {
	if pl.headOffice() {
		return true
	}
	return pl.p.CampID == campID
}

// CanCreateOrder: any camp-scoped staff role, for its own camp.
func (pl Policy) CanCreateOrder(campID int) bool {
	switch pl.p.Role {
	case RoleCampStorekeeper, RoleChef, RoleHousekeeping, RoleCampManager:
		return pl.p.CampID == campID
	}
	return pl.headOffice()
}

// CanReviewOrder: approve/adjust/reject order lines at stores level.
func (pl Policy) CanReviewOrder() bool {
	switch pl.p.Role {
	case RoleStoresManager, RoleDirector, RoleAdmin:
		return true
	}
	return false
}

// CanDispatch: create dispatches and post the HO stock deductions.
func (pl Policy) CanDispatch() bool {
	switch pl.p.Role {
	case RoleStoresManager, RoleProcurementOfficer, RoleDirector, RoleAdmin:
		return true
	}
	return false
}

// CanConfirmReceipt: confirm arrival at the destination camp.
func (pl Policy) CanConfirmReceipt(campID int) bool {
	if pl.headOffice() {
		return true
	}
	switch pl.p.Role {
	case RoleCampStorekeeper, RoleCampManager:
		return pl.p.CampID == campID
	}
	return false
}

// CanIssueStock: write issue vouchers against a camp's stock.
func (pl Policy) CanIssueStock(campID int) bool {
	if pl.headOffice() {
		return true
	}
	switch pl.p.Role {
	case RoleCampStorekeeper, RoleChef, RoleHousekeeping, RoleCampManager:
		return pl.p.CampID == campID
	}
	return false
}

// CanQueryOrder: participate in an order's query thread. Camp staff may
// respond on their own camp's orders, reviewers on any.
func (pl Policy) CanQueryOrder(campID int) bool {
	if pl.CanReviewOrder() {
		return true
	}
	return pl.p.CampID == campID
}
