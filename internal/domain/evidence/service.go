package evidence

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/praktika-foundation/server/internal/domain/ids"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/metrics"
	"github.com/praktika-foundation/server/internal/sanitize"
	"github.com/praktika-foundation/server/internal/validation"
	"github.com/praktika-foundation/server/internal/workflow"
)

// Ledger event types recorded on the evidence chain.
const (
	EventSubmitted = "evidence.submitted"
	EventReviewed  = "evidence.reviewed"
)

// applicationActive is the only application state that accepts submissions
// and reviews.
const applicationActive = "ACTIVE"

// Action names a policy-checked evidence operation.
type Action string

const (
	ActionSubmit            Action = "evidence.submit"
	ActionReviewEmployer    Action = "evidence.review.employer"
	ActionReviewInstitution Action = "evidence.review.institution"
)

// Authorizer reports whether the actor may perform the action on evidence
// belonging to the given application. Supplied by the access control layer.
type Authorizer func(ctx context.Context, actor workflow.Actor, app ApplicationContext, action Action) bool

// ForbiddenError is returned when the access policy denies an evidence
// action.
type ForbiddenError struct {
	Action        Action
	ApplicationID string
	ActorID       string
	Role          string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %q (role %q) denied %s on application %s", e.ActorID, e.Role, e.Action, e.ApplicationID)
}

// Service handles evidence submission and review. Every mutation locks the
// parent application row first, so review outcomes can never race a
// completion check reading evidence state, and records a ledger event on
// the evidence chain in the same transaction.
type Service struct {
	repo     Repository
	can      Authorizer
	logger   zerolog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, can Authorizer, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		can:      can,
		logger:   logger.With().Str("component", "evidence").Logger(),
		validate: validator.New(),
	}
}

// SubmitParams describes one artifact submission.
type SubmitParams struct {
	ApplicationID string `validate:"required"`
	Title         string `validate:"required,max=200"`
	AttachmentURL string `validate:"omitempty,max=2000"`
}

// Submit stores a new evidence record in SUBMITTED state on an active
// application and records evidence.submitted on its chain.
func (s *Service) Submit(ctx context.Context, actor workflow.Actor, params SubmitParams) (*Evidence, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}
	if err := validation.ValidateURL(params.AttachmentURL, "attachment_url", false); err != nil {
		return nil, err
	}
	title := sanitize.Text(params.Title)

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate evidence id: %w", err)
	}

	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	app, err := txRepo.GetApplicationContextForUpdate(ctx, params.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != applicationActive {
		return nil, ErrApplicationNotActive
	}
	if !s.can(ctx, actor, *app, ActionSubmit) {
		return nil, ForbiddenError{Action: ActionSubmit, ApplicationID: app.ID, ActorID: actor.ID, Role: actor.Role}
	}

	create := CreateParams{
		ID:            id,
		ApplicationID: app.ID,
		Title:         title,
		Status:        Aggregate(nil, nil, app.HasEmployer(), app.HasInstitution()),
	}
	if params.AttachmentURL != "" {
		create.AttachmentURL = &params.AttachmentURL
	}

	ev, err := txRepo.Create(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("create evidence: %w", err)
	}

	payload := map[string]any{
		"application_id": app.ID,
		"title":          ev.Title,
	}
	if ev.AttachmentURL != nil {
		payload["attachment_url"] = *ev.AttachmentURL
	}
	err = txRepo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityEvidence,
		EntityID:   ev.ID,
		EventType:  EventSubmitted,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("record submission event: %w", err)
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().
		Str("evidence_id", ev.ID).
		Str("application_id", ev.ApplicationID).
		Str("actor_id", actor.ID).
		Msg("evidence submitted")
	return ev, nil
}

// ReviewByEmployer records the employer's verdict and re-derives the
// evidence status.
func (s *Service) ReviewByEmployer(ctx context.Context, actor workflow.Actor, evidenceID string, verdict Verdict) (*Evidence, error) {
	return s.review(ctx, actor, evidenceID, PartyEmployer, verdict)
}

// ReviewByInstitution records the institution's verdict and re-derives the
// evidence status.
func (s *Service) ReviewByInstitution(ctx context.Context, actor workflow.Actor, evidenceID string, verdict Verdict) (*Evidence, error) {
	return s.review(ctx, actor, evidenceID, PartyInstitution, verdict)
}

func (s *Service) review(ctx context.Context, actor workflow.Actor, evidenceID string, party Party, verdict Verdict) (*Evidence, error) {
	if !ValidVerdict(verdict) {
		return nil, ErrInvalidVerdict
	}

	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	ev, err := txRepo.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	// Application lock first, then the evidence row. Completion checks take
	// the same application lock, so a verdict and a completion can never
	// interleave.
	app, err := txRepo.GetApplicationContextForUpdate(ctx, ev.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != applicationActive {
		return nil, ErrApplicationNotActive
	}

	action := ActionReviewEmployer
	if party == PartyInstitution {
		action = ActionReviewInstitution
	}
	if !s.can(ctx, actor, *app, action) {
		return nil, ForbiddenError{Action: action, ApplicationID: app.ID, ActorID: actor.ID, Role: actor.Role}
	}

	ev, err = txRepo.GetForUpdate(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	employer, institution := ev.EmployerVerdict, ev.InstitutionVerdict
	switch party {
	case PartyEmployer:
		if !app.HasEmployer() {
			return nil, ErrUnknownParty
		}
		employer = &verdict
	case PartyInstitution:
		if !app.HasInstitution() {
			return nil, ErrUnknownParty
		}
		institution = &verdict
	default:
		return nil, ErrUnknownParty
	}

	status := Aggregate(employer, institution, app.HasEmployer(), app.HasInstitution())
	updated, err := txRepo.SetVerdicts(ctx, ev.ID, employer, institution, status)
	if err != nil {
		return nil, fmt.Errorf("set verdicts: %w", err)
	}

	err = txRepo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityEvidence,
		EntityID:   updated.ID,
		EventType:  EventReviewed,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload: map[string]any{
			"application_id": updated.ApplicationID,
			"party":          string(party),
			"verdict":        string(verdict),
			"status":         string(updated.Status),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record review event: %w", err)
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	metrics.EvidenceReviewsTotal.WithLabelValues(string(party), string(verdict)).Inc()
	s.logger.Info().
		Str("evidence_id", updated.ID).
		Str("application_id", updated.ApplicationID).
		Str("party", string(party)).
		Str("verdict", string(verdict)).
		Str("status", string(updated.Status)).
		Msg("evidence reviewed")
	return updated, nil
}

// Get returns one evidence record.
func (s *Service) Get(ctx context.Context, id string) (*Evidence, error) {
	return s.repo.Get(ctx, id)
}

// ListByApplication returns an application's evidence, oldest first.
func (s *Service) ListByApplication(ctx context.Context, applicationID string) ([]Evidence, error) {
	return s.repo.ListByApplication(ctx, applicationID)
}
