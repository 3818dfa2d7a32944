package coupon

import "fmt"

// Redeemer is any entity that can own coupons: a user, an account, a team.
// Type plays the role of a polymorphic class name and ID identifies the
// entity within that type.
type Redeemer interface {
	RedeemerType() string
	RedeemerID() string
}

// Ref is a plain Redeemer value.
type Ref struct {
	Type string
	ID   string
}

var _ Redeemer = Ref{}

// RefOf copies any Redeemer into a Ref. A nil Redeemer yields the zero Ref.
func RefOf(r Redeemer) Ref {
	if r == nil {
		return Ref{}
	}
	if ref, ok := r.(Ref); ok {
		return ref
	}
	return Ref{Type: r.RedeemerType(), ID: r.RedeemerID()}
}

// RedeemerType implements Redeemer.
func (r Ref) RedeemerType() string { return r.Type }

// RedeemerID implements Redeemer.
func (r Ref) RedeemerID() string { return r.ID }

// IsZero reports whether both parts are empty.
func (r Ref) IsZero() bool { return r.Type == "" && r.ID == "" }

func (r Ref) String() string { return fmt.Sprintf("%s:%s", r.Type, r.ID) }

// SameAs reports whether other refers to exactly the same entity.
func (r Ref) SameAs(other Redeemer) bool {
	if other == nil {
		return false
	}
	return r.Type == other.RedeemerType() && r.ID == other.RedeemerID()
}
