package applications

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ids"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
	"github.com/praktika-foundation/server/internal/sanitize"
	"github.com/praktika-foundation/server/internal/workflow"
)

// Access supplies the permission predicates the service consults. Supplied
// by the access control layer; the service only asks, it never decides.
type Access interface {
	// CanTransition gates workflow transitions. It receives the locked
	// entity and the requested target state.
	CanTransition(ctx context.Context, actor workflow.Actor, app *Application, target Status) bool
	// CanApply gates creating an application against an open posting.
	CanApply(ctx context.Context, actor workflow.Actor, opp *opportunities.Opportunity) bool
	// CanRecordFeedback gates recording the final rating.
	CanRecordFeedback(ctx context.Context, actor workflow.Actor, app *Application) bool
}

// Service manages engagements. Every mutation takes the application's row
// lock, runs inside one transaction, and records a ledger event on the
// application chain before committing.
type Service struct {
	repo     Repository
	access   Access
	engine   *workflow.Engine[Status, *Application]
	logger   zerolog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, access Access, logger zerolog.Logger) (*Service, error) {
	guards := map[Status][]workflow.Guard[Status, *Application]{
		StatusCompleted: {CompletionGuard},
	}
	engine, err := workflow.NewEngine(Definition(), access.CanTransition, guards)
	if err != nil {
		return nil, fmt.Errorf("build application workflow: %w", err)
	}
	return &Service{
		repo:     repo,
		access:   access,
		engine:   engine,
		logger:   logger.With().Str("component", "applications").Logger(),
		validate: validator.New(),
	}, nil
}

// ApplyParams describes a student's submission against a posting.
type ApplyParams struct {
	OpportunityID string `validate:"required"`
}

// Apply creates an engagement in APPLIED for the acting student and records
// application.applied as the genesis of its chain. The posting must be
// OPEN; it stays share-locked until commit so it cannot close mid-apply.
func (s *Service) Apply(ctx context.Context, actor workflow.Actor, params ApplyParams) (*Application, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid application: %w", err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate application id: %w", err)
	}

	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	opp, err := txRepo.GetOpportunityForShare(ctx, params.OpportunityID)
	if err != nil {
		return nil, err
	}
	if opp.Status != opportunities.StatusOpen {
		return nil, ErrOpportunityNotOpen
	}
	if !s.access.CanApply(ctx, actor, opp) {
		return nil, ErrForbidden
	}

	app, err := txRepo.Create(ctx, CreateParams{
		ID:            id,
		OpportunityID: opp.ID,
		StudentID:     actor.ID,
		EmployerID:    opp.EmployerID,
		InstitutionID: opp.InstitutionID,
		Status:        StatusApplied,
	})
	if err != nil {
		return nil, err
	}

	err = txRepo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityApplication,
		EntityID:   app.ID,
		EventType:  EventApplied,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload: map[string]any{
			"opportunity_id": app.OpportunityID,
			"student_id":     app.StudentID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record application event: %w", err)
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().
		Str("application_id", app.ID).
		Str("opportunity_id", app.OpportunityID).
		Str("student_id", app.StudentID).
		Msg("application submitted")
	return app, nil
}

// Shortlist moves an application to SHORTLISTED.
func (s *Service) Shortlist(ctx context.Context, actor workflow.Actor, id string) (*Application, error) {
	return s.transition(ctx, actor, id, StatusShortlisted, nil)
}

// Accept moves a shortlisted application to ACCEPTED.
func (s *Service) Accept(ctx context.Context, actor workflow.Actor, id string) (*Application, error) {
	return s.transition(ctx, actor, id, StatusAccepted, nil)
}

// Reject closes an application as REJECTED. Terminal.
func (s *Service) Reject(ctx context.Context, actor workflow.Actor, id string) (*Application, error) {
	return s.transition(ctx, actor, id, StatusRejected, nil)
}

// Start moves an accepted application to ACTIVE; evidence can be submitted
// from here on.
func (s *Service) Start(ctx context.Context, actor workflow.Actor, id string) (*Application, error) {
	return s.transition(ctx, actor, id, StatusActive, nil)
}

// Complete moves an active engagement to COMPLETED, provided its evidence
// is settled and accepted.
func (s *Service) Complete(ctx context.Context, actor workflow.Actor, id string) (*Application, error) {
	return s.transition(ctx, actor, id, StatusCompleted, nil)
}

// Certify finalizes a completed engagement. Terminal.
func (s *Service) Certify(ctx context.Context, actor workflow.Actor, id string) (*Application, error) {
	return s.transition(ctx, actor, id, StatusCertified, nil)
}

// Terminate aborts the engagement from any working state. Terminal. The
// optional reason is kept in the ledger event, not on the row.
func (s *Service) Terminate(ctx context.Context, actor workflow.Actor, id string, reason string) (*Application, error) {
	var extra map[string]any
	if reason != "" {
		extra = map[string]any{"reason": sanitize.Text(reason)}
	}
	return s.transition(ctx, actor, id, StatusTerminated, extra)
}

func (s *Service) transition(ctx context.Context, actor workflow.Actor, id string, target Status, extra map[string]any) (*Application, error) {
	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	app, err := s.engine.Transition(ctx, appEnv{repo: txRepo}, id, target, actor, extra)
	if err != nil {
		return nil, err
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().
		Str("application_id", app.ID).
		Str("status", string(app.Status)).
		Str("actor_id", actor.ID).
		Msg("application transitioned")
	return app, nil
}

// FeedbackParams carries the student's final rating of the engagement.
type FeedbackParams struct {
	Rating   int    `validate:"required,min=1,max=5"`
	Comments string `validate:"max=4000"`
}

// RecordFeedback stores the one-time rating on a completed or certified
// engagement and records application.feedback_recorded on its chain.
func (s *Service) RecordFeedback(ctx context.Context, actor workflow.Actor, id string, params FeedbackParams) (*Application, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid feedback: %w", err)
	}

	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	app, err := txRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != StatusCompleted && app.Status != StatusCertified {
		return nil, ErrFeedbackNotReady
	}
	if app.FeedbackRecordedAt != nil {
		return nil, ErrFeedbackAlreadyRecorded
	}
	if !s.access.CanRecordFeedback(ctx, actor, app) {
		return nil, ErrForbidden
	}

	var comments *string
	if params.Comments != "" {
		clean := sanitize.Text(params.Comments)
		comments = &clean
	}
	recordedAt := time.Now().UTC()

	updated, err := txRepo.SetFeedback(ctx, id, params.Rating, comments, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("set feedback: %w", err)
	}

	payload := map[string]any{"rating": params.Rating}
	if comments != nil {
		payload["comments"] = *comments
	}
	err = txRepo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityApplication,
		EntityID:   updated.ID,
		EventType:  EventFeedbackRecorded,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("record feedback event: %w", err)
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().
		Str("application_id", updated.ID).
		Int("rating", params.Rating).
		Str("actor_id", actor.ID).
		Msg("feedback recorded")
	return updated, nil
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, id string) (*Application, error) {
	return s.repo.Get(ctx, id)
}

// ListByOpportunity returns a posting's applications, oldest first.
func (s *Service) ListByOpportunity(ctx context.Context, opportunityID string) ([]Application, error) {
	return s.repo.ListByOpportunity(ctx, opportunityID)
}

// History returns the application's appended ledger chain.
func (s *Service) History(ctx context.Context, id string) ([]ledger.Event, error) {
	return s.repo.History(ctx, id)
}

// appEnv binds the workflow engine to one transaction-scoped repository and
// widens it with the evidence read the completion guard upgrades to.
type appEnv struct {
	repo Repository
}

var (
	_ workflow.Env[Status, *Application] = appEnv{}
	_ EvidenceReader                     = appEnv{}
)

func (e appEnv) Lock(ctx context.Context, id string) (*Application, error) {
	return e.repo.GetForUpdate(ctx, id)
}

func (e appEnv) Persist(ctx context.Context, app *Application, to Status) (*Application, error) {
	return e.repo.UpdateStatus(ctx, app.ID, app.Status, to)
}

func (e appEnv) Record(ctx context.Context, app *Application, eventType string, actor workflow.Actor, payload map[string]any) error {
	return e.repo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityApplication,
		EntityID:   app.ID,
		EventType:  eventType,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload:    payload,
	})
}

func (e appEnv) EvidenceTally(ctx context.Context, applicationID string) (evidence.Tally, error) {
	return e.repo.EvidenceTally(ctx, applicationID)
}
