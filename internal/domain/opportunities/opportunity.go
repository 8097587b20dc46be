// Package opportunities manages internship postings and their publication
// lifecycle. A posting is owned by the employer or institution that created
// it (or both), starts as a draft, and moves between open and closed through
// the workflow engine, leaving a ledger event for every change.
package opportunities

import (
	"time"

	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/workflow"
)

// Status is an opportunity's lifecycle state.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Ledger event types recorded on the opportunity chain. Reopening a closed
// posting records EventOpened again.
const (
	EventCreated = "opportunity.created"
	EventOpened  = "opportunity.opened"
	EventClosed  = "opportunity.closed"
)

// Opportunity is one internship posting. At least one of EmployerID and
// InstitutionID is always set; applications snapshot both at apply time.
type Opportunity struct {
	ID            string
	EmployerID    *string
	InstitutionID *string
	Title         string
	Description   string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o *Opportunity) EntityID() string {
	return o.ID
}

func (o *Opportunity) CurrentState() Status {
	return o.Status
}

func (o *Opportunity) HasEmployer() bool {
	return o.EmployerID != nil
}

func (o *Opportunity) HasInstitution() bool {
	return o.InstitutionID != nil
}

// Definition declares the posting lifecycle. Drafts are published once;
// open postings close and may reopen.
func Definition() workflow.Definition[Status] {
	return workflow.Definition[Status]{
		EntityType: ledger.EntityOpportunity,
		Transitions: map[Status][]Status{
			StatusDraft:  {StatusOpen},
			StatusOpen:   {StatusClosed},
			StatusClosed: {StatusOpen},
		},
		EventTypes: map[Status]string{
			StatusOpen:   EventOpened,
			StatusClosed: EventClosed,
		},
	}
}
