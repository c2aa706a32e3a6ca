// Package access holds the role and capability model used to authorize
// every catalog, cart, order and staff operation.
package access

type Role string

const (
	Manager      Role = "Manager"
	DeliveryCrew Role = "Delivery Crew"
	// Customer is the baseline every authenticated user holds. It is never stored.
	Customer Role = "Customer"
)

// StaffRoles are the roles persisted in the membership table.
var StaffRoles = []Role{Manager, DeliveryCrew}

// IsStaff reports whether r is one of StaffRoles.
func (r Role) IsStaff() bool {
	for _, staff := range StaffRoles {
		if r == staff {
			return true
		}
	}
	return false
}

type Capability string

const (
	AddMenuItem       Capability = "add_menuitem"
	ChangeMenuItem    Capability = "change_menuitem"
	DeleteMenuItem    Capability = "delete_menuitem"
	ManageCategories  Capability = "manage_categories"
	ManageStaff       Capability = "manage_staff"
	ViewAllOrders     Capability = "view_all_orders"
	ChangeOrder       Capability = "change_order"
	AssignDelivery    Capability = "assign_delivery"
	UpdateOrderStatus Capability = "update_order_status"
	DeleteOrder       Capability = "delete_order"
	UseCart           Capability = "use_cart"
	PlaceOrder        Capability = "place_order"
)

var grants = map[Role]map[Capability]bool{
	Manager: {
		AddMenuItem:       true,
		ChangeMenuItem:    true,
		DeleteMenuItem:    true,
		ManageCategories:  true,
		ManageStaff:       true,
		ViewAllOrders:     true,
		ChangeOrder:       true,
		AssignDelivery:    true,
		UpdateOrderStatus: true,
		DeleteOrder:       true,
	},
	DeliveryCrew: {
		UpdateOrderStatus: true,
	},
	Customer: {
		UseCart:    true,
		PlaceOrder: true,
	},
}

// Can reports whether role is granted capability.
func Can(role Role, capability Capability) bool {
	return grants[role][capability]
}

// Principal is the authenticated caller together with its resolved roles.
type Principal struct {
	UserID   uint
	Username string
	Roles    []Role
}

func (p Principal) Has(role Role) bool {
	if role == Customer {
		return true
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Primary picks the single role that governs order visibility and order
// updates. Manager wins over Delivery Crew for users holding both.
func (p Principal) Primary() Role {
	switch {
	case p.Has(Manager):
		return Manager
	case p.Has(DeliveryCrew):
		return DeliveryCrew
	default:
		return Customer
	}
}

// Can is true when any held role, or the customer baseline, grants capability.
func (p Principal) Can(capability Capability) bool {
	if Can(Customer, capability) {
		return true
	}
	for _, r := range p.Roles {
		if Can(r, capability) {
			return true
		}
	}
	return false
}
