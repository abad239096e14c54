package lifecycle

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
)

// ErrInvalidTransition is returned when a request cannot move to the
// target status from its current one.
var ErrInvalidTransition = errors.New("invalid request transition")

// RequestTransitions lists the statuses a request may move to from each
// effective status. In-Progress is never written; it is derived from an
// Approved request with a linked task.
var RequestTransitions = map[string][]string{
	string(domain.RequestPending):    {string(domain.RequestApproved), string(domain.RequestRejected)},
	string(domain.RequestApproved):   {string(domain.RequestInProgress), string(domain.RequestFulfilled)},
	string(domain.RequestInProgress): {string(domain.RequestFulfilled)},
	string(domain.RequestRejected):   {},
	string(domain.RequestFulfilled):  {},
}

// ValidateTransition checks whether transitioning from current to target is
// allowed according to the given transition map.
func ValidateTransition(transitions map[string][]string, current, target string) error {
	allowed, ok := transitions[current]
	if !ok {
		return errors.Wrapf(ErrInvalidTransition, "unknown current state %q", current)
	}
	if slices.Contains(allowed, target) {
		return nil
	}
	return errors.Wrapf(ErrInvalidTransition, "transition from %q to %q is not allowed", current, target)
}

func validateRequest(r domain.Request, target domain.RequestStatus) error {
	return ValidateTransition(RequestTransitions, string(r.EffectiveStatus()), string(target))
}
