package applications

import "errors"

var (
	// ErrNotFound is returned when an application lookup fails.
	ErrNotFound = errors.New("application not found")

	// ErrConflict is returned when a status write finds the stored state
	// changed since it was loaded.
	ErrConflict = errors.New("application state changed concurrently")

	// ErrOpportunityNotFound is returned when an application targets a
	// posting that does not exist.
	ErrOpportunityNotFound = errors.New("opportunity not found")

	// ErrOpportunityNotOpen is returned when a student applies to a posting
	// that is not accepting applications.
	ErrOpportunityNotOpen = errors.New("opportunity is not open for applications")

	// ErrDuplicateApplication is returned when the student already applied
	// to the opportunity.
	ErrDuplicateApplication = errors.New("student already applied to this opportunity")

	// ErrFeedbackNotReady is returned when feedback is recorded before the
	// engagement completed.
	ErrFeedbackNotReady = errors.New("feedback requires a completed engagement")

	// ErrFeedbackAlreadyRecorded is returned when feedback was already
	// recorded for the application.
	ErrFeedbackAlreadyRecorded = errors.New("feedback already recorded")

	// ErrForbidden is returned when the access policy denies applying or
	// recording feedback.
	ErrForbidden = errors.New("actor may not perform this application action")
)
