package discount

import (
	"strings"

	"github.com/go-faster/errors"
)

// Provider resolves stored policy identifiers to policies.
type Provider interface {
	Policy(t Type) (Policy, error)
}

// Registry is the default Provider. Identifiers are matched
// case-insensitively.
type Registry struct {
	policies map[Type]Policy
}

var _ Provider = (*Registry)(nil)

// NewRegistry returns a Registry knowing every built-in policy.
func NewRegistry() *Registry {
	return &Registry{
		policies: map[Type]Policy{
			FixedAmount: {typ: FixedAmount},
			Percentage:  {typ: Percentage},
		},
	}
}

// Policy returns the policy registered for t, or ErrUnknownType.
func (r *Registry) Policy(t Type) (Policy, error) {
	p, ok := r.policies[Type(strings.ToUpper(string(t)))]
	if !ok {
		return Policy{}, errors.Wrapf(ErrUnknownType, "%q", t)
	}
	return p, nil
}
