package dispatch

import "errors"

var (
	// ErrNotFound covers unknown or foreign-tenant call ids. Clients treat it
	// as "session ended" and return to idle.
	ErrNotFound = errors.New("dispatch: call request not found")

	// ErrAlreadyClaimed is the lost-claim outcome: another dispatcher won the
	// race. The authoritative record accompanies it so the caller can resume
	// polling against current state.
	ErrAlreadyClaimed = errors.New("dispatch: call already claimed")

	// ErrStateChanged means a guarded update found the request in a state the
	// operation does not apply to.
	ErrStateChanged = errors.New("dispatch: call state changed")

	// ErrDuplicateActive is returned by stores when an insert would violate
	// the one-active-request-per-requester rule.
	ErrDuplicateActive = errors.New("dispatch: requester already has an active call")

	// ErrUnavailable means the tenant's availability window denies creation.
	ErrUnavailable = errors.New("dispatch: tenant not available")

	// ErrTenantBusy means the tenant's concurrent active call cap is reached.
	ErrTenantBusy = errors.New("dispatch: tenant active call limit reached")

	// ErrProvisioning means the video bridge could not allocate a room; the
	// request stays waiting and any dispatcher may retry the claim.
	ErrProvisioning = errors.New("dispatch: room provisioning failed")

	ErrForbidden       = errors.New("dispatch: caller may not act on this call")
	ErrInvalidArgument = errors.New("dispatch: invalid argument")
)
