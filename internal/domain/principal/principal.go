package principal

import "fmt"

// Principal is an authenticated identity plus its group memberships,
// supplied pre-validated by the auth layer.
type Principal struct {
	username string
	groups   []string
}

// New validates and creates a Principal.
func New(username string, groups []string) (Principal, error) {
	if username == "" {
		return Principal{}, fmt.Errorf("principal username is required")
	}
	return Principal{username: username, groups: groups}, nil
}

// Username returns the principal's user name.
func (p Principal) Username() string { return p.username }

// Groups returns the principal's group memberships.
func (p Principal) Groups() []string { return p.groups }

// CanActAs reports whether the principal may act as the given owner:
// either the owner is the principal itself or one of its groups.
func (p Principal) CanActAs(owner string) bool {
	if p.username == owner {
		return true
	}
	for _, g := range p.groups {
		if g == owner {
			return true
		}
	}
	return false
}
