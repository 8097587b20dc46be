package evidence

import "errors"

var (
	// ErrNotFound is returned when an evidence lookup fails.
	ErrNotFound = errors.New("evidence not found")

	// ErrApplicationNotFound is returned when the parent application of a
	// submission or review does not exist.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrApplicationNotActive is returned when evidence is submitted or
	// reviewed outside the active phase of the engagement.
	ErrApplicationNotActive = errors.New("application is not active")

	// ErrUnknownParty is returned when a verdict is recorded for a party
	// the application does not have.
	ErrUnknownParty = errors.New("application has no such reviewing party")

	// ErrInvalidVerdict is returned when a review carries a verdict outside
	// the recordable set.
	ErrInvalidVerdict = errors.New("invalid review verdict")
)
