package opportunities

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/praktika-foundation/server/internal/domain/ids"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/sanitize"
	"github.com/praktika-foundation/server/internal/workflow"
)

// CreateAuthorizer reports whether the actor may create a posting owned by
// the given parties. Supplied by the access control layer.
type CreateAuthorizer func(ctx context.Context, actor workflow.Actor, employerID, institutionID *string) bool

// Service manages postings. Lifecycle changes go through the workflow
// engine inside a single transaction per call, so the status write and its
// ledger event commit together.
type Service struct {
	repo      Repository
	engine    *workflow.Engine[Status, *Opportunity]
	canCreate CreateAuthorizer
	logger    zerolog.Logger
	validate  *validator.Validate
}

func NewService(repo Repository, can workflow.Authorizer[Status, *Opportunity], canCreate CreateAuthorizer, logger zerolog.Logger) (*Service, error) {
	engine, err := workflow.NewEngine(Definition(), can, nil)
	if err != nil {
		return nil, fmt.Errorf("build opportunity workflow: %w", err)
	}
	return &Service{
		repo:      repo,
		engine:    engine,
		canCreate: canCreate,
		logger:    logger.With().Str("component", "opportunities").Logger(),
		validate:  validator.New(),
	}, nil
}

// CreateOpportunityParams describes a new posting.
type CreateOpportunityParams struct {
	Title         string `validate:"required,max=200"`
	Description   string `validate:"max=10000"`
	EmployerID    *string
	InstitutionID *string
}

// Create stores a posting in DRAFT and records opportunity.created as the
// genesis of its chain.
func (s *Service) Create(ctx context.Context, actor workflow.Actor, params CreateOpportunityParams) (*Opportunity, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid opportunity: %w", err)
	}
	if params.EmployerID == nil && params.InstitutionID == nil {
		return nil, ErrNoOwningParty
	}
	if !s.canCreate(ctx, actor, params.EmployerID, params.InstitutionID) {
		return nil, ErrForbidden
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate opportunity id: %w", err)
	}

	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	opp, err := txRepo.Create(ctx, CreateParams{
		ID:            id,
		EmployerID:    params.EmployerID,
		InstitutionID: params.InstitutionID,
		Title:         sanitize.Text(params.Title),
		Description:   sanitize.HTML(params.Description),
		Status:        StatusDraft,
	})
	if err != nil {
		return nil, fmt.Errorf("create opportunity: %w", err)
	}

	payload := map[string]any{
		"title":  opp.Title,
		"status": string(opp.Status),
	}
	if opp.EmployerID != nil {
		payload["employer_id"] = *opp.EmployerID
	}
	if opp.InstitutionID != nil {
		payload["institution_id"] = *opp.InstitutionID
	}
	err = txRepo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityOpportunity,
		EntityID:   opp.ID,
		EventType:  EventCreated,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("record creation event: %w", err)
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().
		Str("opportunity_id", opp.ID).
		Str("actor_id", actor.ID).
		Msg("opportunity created")
	return opp, nil
}

// Publish moves a draft posting to OPEN.
func (s *Service) Publish(ctx context.Context, actor workflow.Actor, id string) (*Opportunity, error) {
	return s.transition(ctx, actor, id, StatusOpen)
}

// Close stops an open posting from taking applications.
func (s *Service) Close(ctx context.Context, actor workflow.Actor, id string) (*Opportunity, error) {
	return s.transition(ctx, actor, id, StatusClosed)
}

// Reopen makes a closed posting accept applications again.
func (s *Service) Reopen(ctx context.Context, actor workflow.Actor, id string) (*Opportunity, error) {
	return s.transition(ctx, actor, id, StatusOpen)
}

func (s *Service) transition(ctx context.Context, actor workflow.Actor, id string, target Status) (*Opportunity, error) {
	txRepo, committer, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	opp, err := s.engine.Transition(ctx, txEnv{repo: txRepo}, id, target, actor, nil)
	if err != nil {
		return nil, err
	}

	if err := committer.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info().
		Str("opportunity_id", opp.ID).
		Str("status", string(opp.Status)).
		Str("actor_id", actor.ID).
		Msg("opportunity transitioned")
	return opp, nil
}

// Get returns one posting.
func (s *Service) Get(ctx context.Context, id string) (*Opportunity, error) {
	return s.repo.Get(ctx, id)
}

// List returns postings, newest first.
func (s *Service) List(ctx context.Context, params ListParams) ([]Opportunity, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}
	return s.repo.List(ctx, params)
}

// txEnv binds the workflow engine to one transaction-scoped repository.
type txEnv struct {
	repo Repository
}

var _ workflow.Env[Status, *Opportunity] = txEnv{}

func (e txEnv) Lock(ctx context.Context, id string) (*Opportunity, error) {
	return e.repo.GetForUpdate(ctx, id)
}

func (e txEnv) Persist(ctx context.Context, o *Opportunity, to Status) (*Opportunity, error) {
	return e.repo.UpdateStatus(ctx, o.ID, o.Status, to)
}

func (e txEnv) Record(ctx context.Context, o *Opportunity, eventType string, actor workflow.Actor, payload map[string]any) error {
	return e.repo.RecordEvent(ctx, ledger.RecordInput{
		EntityType: ledger.EntityOpportunity,
		EntityID:   o.ID,
		EventType:  eventType,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Payload:    payload,
	})
}
