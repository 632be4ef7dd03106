package model

// Role is the privilege level carried by an authenticated identity.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Customer is the contact data captured onto an order.
type Customer struct {
	ID        int64  `json:"id" db:"id"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone" db:"phone"`
	Role      Role   `json:"role" db:"role"`
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Address is a saved delivery address owned by a user.
type Address struct {
	ID         int64  `json:"id" db:"id"`
	UserID     int64  `json:"userId" db:"user_id"`
	Street     string `json:"street" db:"street"`
	City       string `json:"city" db:"city"`
	Province   string `json:"province" db:"province"`
	References string `json:"references,omitempty" db:"reference_notes"`
}

// ShippingAddress is the address snapshot stored on an order.
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	References string `json:"references,omitempty"`
}

// PickupAddress is the placeholder stored for in-store pickup orders.
var PickupAddress = ShippingAddress{
	Street:     "In-store pickup",
	City:       "To be defined",
	Province:   "To be defined",
	References: "Customer will collect the order at the store",
}

// Snapshot copies an address into an order snapshot.
func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		References: a.References,
	}
}

// Actor is whoever triggers an operation on an order.
type Actor struct {
	UserID *int64
	Role   Role
}

// IsAdmin reports whether the actor holds elevated privilege.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor is the given user.
func (a Actor) Owns(userID int64) bool {
	return a.UserID != nil && *a.UserID == userID
}
