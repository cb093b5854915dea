package resource

import "fmt"

// Type partitions resources into interchangeable pools. Stages declare which
// type they consume; allocation never crosses type boundaries.
type Type string

// Built-in types. TypeQuota resources count toward utilization capacity;
// the others do not.
const (
	TypeQuota   Type = "quota"
	TypeSupport Type = "support"
	TypeReview  Type = "review"
)

// TypeSet is the registry of resource types a pool accepts. New types are
// added at configuration time; allocation call sites only ever see registered
// values.
type TypeSet struct {
	known map[Type]struct{}
}

// NewTypeSet returns a registry pre-populated with the built-in types.
func NewTypeSet() *TypeSet {
	s := &TypeSet{known: make(map[Type]struct{})}
	s.Register(TypeQuota)
	s.Register(TypeSupport)
	s.Register(TypeReview)
	return s
}

// Register adds a type to the registry. Registering an existing type is a
// no-op.
func (s *TypeSet) Register(t Type) {
	s.known[t] = struct{}{}
}

// Known reports whether t has been registered.
func (s *TypeSet) Known(t Type) bool {
	_, ok := s.known[t]
	return ok
}

// Validate returns ErrUnknownType for an unregistered type.
func (s *TypeSet) Validate(t Type) error {
	if !s.Known(t) {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return nil
}
