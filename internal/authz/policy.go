// Package authz decides which actors may perform placement operations.
// Services take these predicates at construction time and consult them
// after acquiring row locks, so every decision sees current entity state.
package authz

import (
	"context"

	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
	"github.com/praktika-foundation/server/internal/workflow"
)

// Policy is the default role policy. Admins may do everything; employers and
// institutions act only on entities that name them as a party; students act
// only on their own applications.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

var (
	_ applications.Access                                                 = (*Policy)(nil)
	_ opportunities.CreateAuthorizer                                      = (*Policy)(nil).CanCreateOpportunity
	_ workflow.Authorizer[opportunities.Status, *opportunities.Opportunity] = (*Policy)(nil).CanManageOpportunity
	_ evidence.Authorizer                                                 = (*Policy)(nil).CanActOnEvidence
)

// CanCreateOpportunity allows an actor to create a posting only for a party
// they belong to.
func (p *Policy) CanCreateOpportunity(_ context.Context, actor workflow.Actor, employerID, institutionID *string) bool {
	switch NormalizeRole(actor.Role) {
	case RoleAdmin:
		return true
	case RoleEmployer:
		return matches(employerID, actor.ID)
	case RoleInstitution:
		return matches(institutionID, actor.ID)
	default:
		return false
	}
}

// CanManageOpportunity gates publish, close and reopen. Any named party may
// manage the posting's lifecycle.
func (p *Policy) CanManageOpportunity(_ context.Context, actor workflow.Actor, opp *opportunities.Opportunity, _ opportunities.Status) bool {
	switch NormalizeRole(actor.Role) {
	case RoleAdmin:
		return true
	case RoleEmployer:
		return matches(opp.EmployerID, actor.ID)
	case RoleInstitution:
		return matches(opp.InstitutionID, actor.ID)
	default:
		return false
	}
}

// CanApply limits applying to students. The applicant always becomes the
// application's student party.
func (p *Policy) CanApply(_ context.Context, actor workflow.Actor, _ *opportunities.Opportunity) bool {
	return NormalizeRole(actor.Role) == RoleStudent && actor.ID != ""
}

// CanTransition gates application transitions by target state. Screening
// decisions belong to the employer; when a posting has no employer party the
// institution screens instead. Running an engagement is shared between the
// parties, and certification is the institution's alone.
func (p *Policy) CanTransition(_ context.Context, actor workflow.Actor, app *applications.Application, target applications.Status) bool {
	role := NormalizeRole(actor.Role)
	if role == RoleAdmin {
		return true
	}
	employerOwns := role == RoleEmployer && matches(app.EmployerID, actor.ID)
	institutionOwns := role == RoleInstitution && matches(app.InstitutionID, actor.ID)

	switch target {
	case applications.StatusShortlisted, applications.StatusAccepted, applications.StatusRejected:
		if app.EmployerID == nil {
			return institutionOwns
		}
		return employerOwns
	case applications.StatusActive, applications.StatusCompleted, applications.StatusTerminated:
		return employerOwns || institutionOwns
	case applications.StatusCertified:
		return institutionOwns
	default:
		return false
	}
}

// CanRecordFeedback lets the student behind the application rate the
// engagement once it has completed.
func (p *Policy) CanRecordFeedback(_ context.Context, actor workflow.Actor, app *applications.Application) bool {
	role := NormalizeRole(actor.Role)
	if role == RoleAdmin {
		return true
	}
	return role == RoleStudent && actor.ID != "" && app.StudentID == actor.ID
}

// CanActOnEvidence gates evidence submission and review. Students submit on
// their own applications; each review slot belongs to the matching party.
func (p *Policy) CanActOnEvidence(_ context.Context, actor workflow.Actor, app evidence.ApplicationContext, action evidence.Action) bool {
	role := NormalizeRole(actor.Role)
	if role == RoleAdmin {
		return true
	}
	switch action {
	case evidence.ActionSubmit:
		return role == RoleStudent && actor.ID != "" && app.StudentID == actor.ID
	case evidence.ActionReviewEmployer:
		return role == RoleEmployer && matches(app.EmployerID, actor.ID)
	case evidence.ActionReviewInstitution:
		return role == RoleInstitution && matches(app.InstitutionID, actor.ID)
	default:
		return false
	}
}

func matches(partyID *string, actorID string) bool {
	return partyID != nil && actorID != "" && *partyID == actorID
}
