package enums

import "fmt"

// CartStatus tracks the lifecycle of a shopping cart. A live cart is active;
// settlement and reclamation flip the status inside their transaction right
// before the row is removed, so the terminal values never persist beyond the
// owning transaction but keep the state machine explicit in update guards.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusSettled   CartStatus = "settled"
	CartStatusReclaimed CartStatus = "reclaimed"
)

var validCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusSettled,
	CartStatusReclaimed,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
