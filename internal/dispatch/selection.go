package dispatch

import (
	"fmt"

	"relaunch/internal/types"
)

// SelectionPolicy picks the single representative recipient of a
// single-mode run from the eligible recipients, in input order.
type SelectionPolicy interface {
	Select(eligible []types.Recipient) (types.Recipient, bool)
}

// PreferWithProject picks the first recipient with a project, falling back
// to the first eligible recipient.
type PreferWithProject struct{}

func (PreferWithProject) Select(eligible []types.Recipient) (types.Recipient, bool) {
	for _, r := range eligible {
		if r.HasProject() {
			return r, true
		}
	}
	return FirstEligible{}.Select(eligible)
}

// FirstEligible picks the first eligible recipient.
type FirstEligible struct{}

func (FirstEligible) Select(eligible []types.Recipient) (types.Recipient, bool) {
	if len(eligible) == 0 {
		return types.Recipient{}, false
	}
	return eligible[0], true
}

// ParseSelectionPolicy maps a DISPATCH_SELECTION value to a policy.
func ParseSelectionPolicy(name string) (SelectionPolicy, error) {
	switch name {
	case "", "prefer_project":
		return PreferWithProject{}, nil
	case "first":
		return FirstEligible{}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", name)
	}
}

// EligibleRecipients keeps recipients with a non-empty email and name,
// preserving order.
func EligibleRecipients(all []types.Recipient) []types.Recipient {
	out := make([]types.Recipient, 0, len(all))
	for _, r := range all {
		if r.Eligible() {
			out = append(out, r)
		}
	}
	return out
}
