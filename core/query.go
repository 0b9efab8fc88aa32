package core

import "fmt"

// Role identifies which side of a trade an agent takes.
type Role string

const (
	// RoleBuyer pays money and receives goods.
	RoleBuyer Role = "buyer"
	// RoleSeller supplies goods and receives money.
	RoleSeller Role = "seller"
)

// Valid reports whether the role is one of the known constants.
func (r Role) Valid() bool { return r == RoleBuyer || r == RoleSeller }

// Opposite returns the counterparty role.
func (r Role) Opposite() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// Query describes what a CFP initiator is looking for: the role the
// initiator takes and the good keys it wants to trade in that role.
type Query struct {
	Role  Role     `json:"role"`
	Goods []string `json:"goods"`
}

// Validate checks the structural constraints of a query.
func (q Query) Validate() error {
	if !q.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrMalformedMessage, string(q.Role))
	}
	if len(q.Goods) == 0 {
		return fmt.Errorf("%w: query names no goods", ErrMalformedMessage)
	}
	for _, good := range q.Goods {
		if good == "" {
			return fmt.Errorf("%w: query contains an empty good key", ErrMalformedMessage)
		}
	}
	return nil
}

// Matches reports whether a basket can serve the query from the responder's
// side: when the initiator buys, the responder must hold at least one unit of
// one of the requested goods; when the initiator sells, any responder
// qualifies since paying is constrained by money, not goods.
func (q Query) Matches(b Basket) bool {
	if q.Role == RoleSeller {
		return true
	}
	for _, good := range q.Goods {
		if b.Quantity(good) >= 1 {
			return true
		}
	}
	return false
}
