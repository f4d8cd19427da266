package optimistic

import "errors"

var (
	// ErrMutationRejected means the backend refused or failed the plan
	// change. The speculative state has been rolled back; the previous
	// plan remains active and the request can be retried.
	ErrMutationRejected = errors.New("optimistic: plan change rejected, previous plan restored")

	// ErrChangeInProgress means another plan change is in flight and the
	// queue is full. Try again once the current change settles.
	ErrChangeInProgress = errors.New("optimistic: a plan change is already in progress, try again")
)
