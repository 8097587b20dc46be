// Package applications manages a student's engagement with an opportunity
// from submission through certification. Every lifecycle change runs
// through the workflow engine under the application's row lock and records
// a ledger event; completion is additionally gated on the application's
// evidence being reviewed and accepted.
package applications

import (
	"time"

	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/workflow"
)

// Status is an application's lifecycle state.
type Status string

const (
	StatusApplied     Status = "APPLIED"
	StatusShortlisted Status = "SHORTLISTED"
	StatusAccepted    Status = "ACCEPTED"
	StatusActive      Status = "ACTIVE"
	StatusCompleted   Status = "COMPLETED"
	StatusCertified   Status = "CERTIFIED"
	StatusRejected    Status = "REJECTED"
	StatusTerminated  Status = "TERMINATED"
)

// Ledger event types recorded on the application chain.
const (
	EventApplied          = "application.applied"
	EventShortlisted      = "application.shortlisted"
	EventAccepted         = "application.accepted"
	EventStarted          = "application.started"
	EventCompleted        = "application.completed"
	EventCertified        = "application.certified"
	EventRejected         = "application.rejected"
	EventTerminated       = "application.terminated"
	EventFeedbackRecorded = "application.feedback_recorded"
)

// Application is one student's engagement with an opportunity. EmployerID
// and InstitutionID are snapshotted from the opportunity at apply time, so
// later edits to the posting cannot change who reviews this engagement.
type Application struct {
	ID                 string
	OpportunityID      string
	StudentID          string
	EmployerID         *string
	InstitutionID      *string
	Status             Status
	FeedbackRating     *int
	FeedbackComments   *string
	FeedbackRecordedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Application) EntityID() string {
	return a.ID
}

func (a *Application) CurrentState() Status {
	return a.Status
}

func (a *Application) HasEmployer() bool {
	return a.EmployerID != nil
}

func (a *Application) HasInstitution() bool {
	return a.InstitutionID != nil
}

// Definition declares the engagement lifecycle. REJECTED, TERMINATED, and
// CERTIFIED are terminal; termination stays available through every working
// state.
func Definition() workflow.Definition[Status] {
	return workflow.Definition[Status]{
		EntityType: ledger.EntityApplication,
		Transitions: map[Status][]Status{
			StatusApplied:     {StatusShortlisted, StatusRejected, StatusTerminated},
			StatusShortlisted: {StatusAccepted, StatusRejected, StatusTerminated},
			StatusAccepted:    {StatusActive, StatusTerminated},
			StatusActive:      {StatusCompleted, StatusTerminated},
			StatusCompleted:   {StatusCertified},
		},
		EventTypes: map[Status]string{
			StatusShortlisted: EventShortlisted,
			StatusAccepted:    EventAccepted,
			StatusActive:      EventStarted,
			StatusCompleted:   EventCompleted,
			StatusCertified:   EventCertified,
			StatusRejected:    EventRejected,
			StatusTerminated:  EventTerminated,
		},
	}
}
