package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/praktika-foundation/server/internal/authz"
	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
	"github.com/praktika-foundation/server/internal/workflow"
)

// Services bundles the domain services the seeder drives. It takes the
// real services, not repositories, so every seeded row passes the same
// authorization, guards, and ledger recording as live traffic.
type Services struct {
	Opportunities *opportunities.Service
	Applications  *applications.Service
	Evidence      *evidence.Service
}

// Summary counts what one apply created.
type Summary struct {
	Opportunities int
	Applications  int
	Evidence      int
}

// Seeder applies fixtures against a running stack.
type Seeder struct {
	services Services
	logger   zerolog.Logger
}

func NewSeeder(services Services, logger zerolog.Logger) *Seeder {
	return &Seeder{
		services: services,
		logger:   logger.With().Str("component", "seed").Logger(),
	}
}

// Apply creates every fixture entity by walking the canonical path to
// its target state: postings are created and published, students apply,
// screenings and starts happen in order, evidence lands while the
// engagement is ACTIVE, and postings close last so applications can get
// in first. IDs are minted fresh on every run, so applying the same
// file twice yields two independent data sets.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	created := make(map[string]*opportunities.Opportunity, len(fx.Opportunities))

	for _, o := range fx.Opportunities {
		opp, err := s.seedOpportunity(ctx, o)
		if err != nil {
			return sum, err
		}
		created[o.Key] = opp
		sum.Opportunities++
	}

	for _, a := range fx.Applications {
		opp, ok := created[a.Opportunity]
		if !ok {
			return sum, fmt.Errorf("application for %q: unknown opportunity key", a.Opportunity)
		}
		o := fixtureFor(fx, a.Opportunity)
		evidenceCount, err := s.seedApplication(ctx, o, a, opp.ID)
		if err != nil {
			return sum, err
		}
		sum.Applications++
		sum.Evidence += evidenceCount
	}

	// Closing waits until every application is in, because Apply
	// requires an OPEN posting.
	for _, o := range fx.Opportunities {
		if opportunities.Status(o.Status) != opportunities.StatusClosed {
			continue
		}
		if _, err := s.services.Opportunities.Close(ctx, partyActor(o), created[o.Key].ID); err != nil {
			return sum, fmt.Errorf("close opportunity %q: %w", o.Key, err)
		}
	}

	s.logger.Info().
		Int("opportunities", sum.Opportunities).
		Int("applications", sum.Applications).
		Int("evidence", sum.Evidence).
		Msg("fixture applied")
	return sum, nil
}

func (s *Seeder) seedOpportunity(ctx context.Context, o OpportunityFixture) (*opportunities.Opportunity, error) {
	actor := partyActor(o)
	opp, err := s.services.Opportunities.Create(ctx, actor, opportunities.CreateOpportunityParams{
		Title:         o.Title,
		Description:   o.Description,
		EmployerID:    optional(o.EmployerID),
		InstitutionID: optional(o.InstitutionID),
	})
	if err != nil {
		return nil, fmt.Errorf("create opportunity %q: %w", o.Key, err)
	}
	if opportunities.Status(o.Status) != opportunities.StatusDraft {
		if opp, err = s.services.Opportunities.Publish(ctx, actor, opp.ID); err != nil {
			return nil, fmt.Errorf("publish opportunity %q: %w", o.Key, err)
		}
	}
	s.logger.Debug().Str("key", o.Key).Str("id", opp.ID).Msg("opportunity seeded")
	return opp, nil
}

func (s *Seeder) seedApplication(ctx context.Context, o OpportunityFixture, a ApplicationFixture, opportunityID string) (int, error) {
	student := workflow.Actor{ID: a.StudentID, Role: string(authz.RoleStudent)}
	app, err := s.services.Applications.Apply(ctx, student, applications.ApplyParams{OpportunityID: opportunityID})
	if err != nil {
		return 0, fmt.Errorf("apply for %q as %s: %w", a.Opportunity, a.StudentID, err)
	}

	evidenceCount := 0
	for _, step := range progressionPath(applications.Status(a.Status)) {
		// Evidence has to land while the engagement is ACTIVE, before
		// the completion guard tallies it.
		if step == applications.StatusCompleted {
			n, err := s.seedEvidence(ctx, o, a, app.ID, student)
			if err != nil {
				return evidenceCount, err
			}
			evidenceCount += n
		}
		if app, err = s.advance(ctx, o, a, app.ID, step); err != nil {
			return evidenceCount, fmt.Errorf("advance %q to %s: %w", a.Opportunity, step, err)
		}
	}
	if applications.Status(a.Status) == applications.StatusActive {
		n, err := s.seedEvidence(ctx, o, a, app.ID, student)
		if err != nil {
			return evidenceCount, err
		}
		evidenceCount += n
	}

	if a.Feedback != nil {
		_, err := s.services.Applications.RecordFeedback(ctx, student, app.ID, applications.FeedbackParams{
			Rating:   a.Feedback.Rating,
			Comments: a.Feedback.Comments,
		})
		if err != nil {
			return evidenceCount, fmt.Errorf("record feedback for %q: %w", a.Opportunity, err)
		}
	}

	s.logger.Debug().Str("opportunity", a.Opportunity).Str("student", a.StudentID).Str("status", a.Status).Msg("application seeded")
	return evidenceCount, nil
}

// advance performs one transition as the party the authorization rules
// expect: screening and running steps by the employer, falling to the
// institution when the posting has none, and certification always by
// the institution.
func (s *Seeder) advance(ctx context.Context, o OpportunityFixture, a ApplicationFixture, id string, target applications.Status) (*applications.Application, error) {
	switch target {
	case applications.StatusShortlisted:
		return s.services.Applications.Shortlist(ctx, partyActor(o), id)
	case applications.StatusAccepted:
		return s.services.Applications.Accept(ctx, partyActor(o), id)
	case applications.StatusRejected:
		return s.services.Applications.Reject(ctx, partyActor(o), id)
	case applications.StatusActive:
		return s.services.Applications.Start(ctx, partyActor(o), id)
	case applications.StatusCompleted:
		return s.services.Applications.Complete(ctx, partyActor(o), id)
	case applications.StatusCertified:
		actor := workflow.Actor{ID: o.InstitutionID, Role: string(authz.RoleInstitution)}
		return s.services.Applications.Certify(ctx, actor, id)
	case applications.StatusTerminated:
		return s.services.Applications.Terminate(ctx, partyActor(o), id, a.TerminationReason)
	default:
		return nil, fmt.Errorf("no seed transition to %s", target)
	}
}

func (s *Seeder) seedEvidence(ctx context.Context, o OpportunityFixture, a ApplicationFixture, applicationID string, student workflow.Actor) (int, error) {
	count := 0
	for _, ev := range a.Evidence {
		rec, err := s.services.Evidence.Submit(ctx, student, evidence.SubmitParams{
			ApplicationID: applicationID,
			Title:         ev.Title,
			AttachmentURL: ev.AttachmentURL,
		})
		if err != nil {
			return count, fmt.Errorf("submit evidence %q for %q: %w", ev.Title, a.Opportunity, err)
		}
		if ev.EmployerVerdict != "" {
			actor := workflow.Actor{ID: o.EmployerID, Role: string(authz.RoleEmployer)}
			if _, err := s.services.Evidence.ReviewByEmployer(ctx, actor, rec.ID, evidence.Verdict(ev.EmployerVerdict)); err != nil {
				return count, fmt.Errorf("employer review of %q for %q: %w", ev.Title, a.Opportunity, err)
			}
		}
		if ev.InstitutionVerdict != "" {
			actor := workflow.Actor{ID: o.InstitutionID, Role: string(authz.RoleInstitution)}
			if _, err := s.services.Evidence.ReviewByInstitution(ctx, actor, rec.ID, evidence.Verdict(ev.InstitutionVerdict)); err != nil {
				return count, fmt.Errorf("institution review of %q for %q: %w", ev.Title, a.Opportunity, err)
			}
		}
		count++
	}
	return count, nil
}

// progressionPath lists the transitions from APPLIED to target, in
// order. Rejection and termination are single hops; everything else
// climbs the ladder and stops at the target.
func progressionPath(target applications.Status) []applications.Status {
	switch target {
	case applications.StatusApplied:
		return nil
	case applications.StatusRejected:
		return []applications.Status{applications.StatusRejected}
	case applications.StatusTerminated:
		return []applications.Status{applications.StatusTerminated}
	}
	ladder := []applications.Status{
		applications.StatusShortlisted,
		applications.StatusAccepted,
		applications.StatusActive,
		applications.StatusCompleted,
		applications.StatusCertified,
	}
	var path []applications.Status
	for _, s := range ladder {
		path = append(path, s)
		if s == target {
			break
		}
	}
	return path
}

// partyActor picks the acting party for posting-side operations:
// the employer when the posting has one, otherwise the institution.
func partyActor(o OpportunityFixture) workflow.Actor {
	if o.EmployerID != "" {
		return workflow.Actor{ID: o.EmployerID, Role: string(authz.RoleEmployer)}
	}
	return workflow.Actor{ID: o.InstitutionID, Role: string(authz.RoleInstitution)}
}

func fixtureFor(fx *Fixture, key string) OpportunityFixture {
	for _, o := range fx.Opportunities {
		if o.Key == key {
			return o
		}
	}
	return OpportunityFixture{}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
