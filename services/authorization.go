package services

// Identity is the authenticated caller resolved by the auth middleware.
type Identity struct {
	UserID string
	Role   string
	Email  string
}

// Roles known to the checkout.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Capability is a single permission checked by command handlers.
type Capability string

const (
	CapViewAnyOrder   Capability = "view_any_order"
	CapCancelAnyOrder Capability = "cancel_any_order"
	CapPayAnyOrder    Capability = "pay_any_order"
	CapAdvanceStatus  Capability = "advance_status"
	CapDeleteOrder    Capability = "delete_order"
)

// roleCapabilities is the complete grant table; roles not listed
// (including customer) can only act on their own orders.
var roleCapabilities = map[string][]Capability{
	RoleAdmin: {CapViewAnyOrder, CapCancelAnyOrder, CapPayAnyOrder, CapAdvanceStatus, CapDeleteOrder},
}

// Can reports whether the identity's role grants c.
func (id Identity) Can(c Capability) bool {
	for _, granted := range roleCapabilities[id.Role] {
		if granted == c {
			return true
		}
	}
	return false
}

// Owns reports whether the identity is the order owner.
func (id Identity) Owns(ownerID string) bool {
	return id.UserID != "" && id.UserID == ownerID
}

// canActOn allows the owner, or anyone holding the override capability.
func (id Identity) canActOn(ownerID string, override Capability) bool {
	return id.Owns(ownerID) || id.Can(override)
}
