// Package workflow implements a typed state machine engine shared by the
// opportunity and application lifecycles. A Definition declares the legal
// transitions and the ledger event recorded when each state is entered; an
// Engine executes transitions against a transaction-scoped Env, checking
// reachability, actor authority, and guard conditions in that order.
package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/praktika-foundation/server/internal/metrics"
)

const tracerName = "github.com/praktika-foundation/server/internal/workflow"

// State is the constraint for workflow state enums.
type State interface{ ~string }

// Actor identifies who requested a transition. The core does not
// authenticate actors; the outer layer does and passes the result through.
type Actor struct {
	ID   string
	Role string
}

// Entity is implemented by anything driven through a workflow.
type Entity[S State] interface {
	EntityID() string
	CurrentState() S
}

// Env supplies the transaction-scoped collaborators a transition needs.
// Implementations are bound to a single database transaction, so everything
// an Engine does through one Env commits or rolls back together.
type Env[S State, E Entity[S]] interface {
	// Lock loads the entity and takes an exclusive row lock held for the
	// remainder of the transaction.
	Lock(ctx context.Context, id string) (E, error)
	// Persist writes the new state and returns the updated entity. It must
	// fail if the stored state no longer matches the loaded one.
	Persist(ctx context.Context, e E, to S) (E, error)
	// Record enqueues a ledger event in the same transaction.
	Record(ctx context.Context, e E, eventType string, actor Actor, payload map[string]any) error
}

// Authorizer reports whether the actor may move the entity to target.
type Authorizer[S State, E Entity[S]] func(ctx context.Context, actor Actor, e E, target S) bool

// Guard is a precondition checked after reachability and authority. Guards
// receive the engine's Env and may upgrade it to a wider entity-specific
// interface for transaction-scoped reads, the way http handlers upgrade a
// ResponseWriter to http.Flusher.
type Guard[S State, E Entity[S]] func(ctx context.Context, env Env[S, E], e E) error

// Definition is the declarative shape of one state machine.
type Definition[S State] struct {
	// EntityType tags ledger events and errors, e.g. "application".
	EntityType string
	// Transitions maps each state to the states reachable from it. A state
	// with no entry is terminal.
	Transitions map[S][]S
	// EventTypes maps each reachable target state to the ledger event type
	// recorded when the state is entered.
	EventTypes map[S]string
}

// Allowed reports whether to is directly reachable from from.
func (d Definition[S]) Allowed(from, to S) bool {
	for _, s := range d.Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (d Definition[S]) Terminal(s S) bool {
	return len(d.Transitions[s]) == 0
}

// EventType returns the ledger event type recorded on entering to.
func (d Definition[S]) EventType(to S) string {
	return d.EventTypes[to]
}

// Engine executes transitions for one entity kind. Construct it once, at
// service construction time, and share it; it holds no mutable state.
type Engine[S State, E Entity[S]] struct {
	def    Definition[S]
	can    Authorizer[S, E]
	guards map[S][]Guard[S, E]
	tracer trace.Tracer
}

// NewEngine validates the definition and builds an engine. Every reachable
// target state must have an event type, so a transition can never succeed
// without leaving a ledger trace.
func NewEngine[S State, E Entity[S]](def Definition[S], can Authorizer[S, E], guards map[S][]Guard[S, E]) (*Engine[S, E], error) {
	if def.EntityType == "" {
		return nil, fmt.Errorf("workflow: definition has no entity type")
	}
	if can == nil {
		return nil, fmt.Errorf("workflow %s: authorizer is required", def.EntityType)
	}
	for from, targets := range def.Transitions {
		for _, to := range targets {
			if def.EventTypes[to] == "" {
				return nil, fmt.Errorf("workflow %s: transition %s -> %s has no event type", def.EntityType, from, to)
			}
		}
	}
	return &Engine[S, E]{def: def, can: can, guards: guards, tracer: otel.Tracer(tracerName)}, nil
}

// Definition returns the engine's immutable definition.
func (en *Engine[S, E]) Definition() Definition[S] {
	return en.def
}

// Transition moves the entity identified by id to target. Steps, each
// short-circuiting on failure: lock and load; path validation; authority
// check; guard conditions for the target state; persist under the held row
// lock; record the ledger event with from_state/to_state merged over any
// caller-supplied extra payload fields.
//
// A failed transition performs no mutation and records no event. Two
// concurrent transitions on the same entity serialize on the row lock;
// the loser re-reads the winner's state and fails path validation.
func (en *Engine[S, E]) Transition(ctx context.Context, env Env[S, E], id string, target S, actor Actor, extra map[string]any) (E, error) {
	ctx, span := en.tracer.Start(ctx, en.def.EntityType+".transition",
		trace.WithAttributes(
			attribute.String("entity_id", id),
			attribute.String("target", string(target)),
		))
	defer span.End()

	updated, err := en.execute(ctx, env, id, target, actor, extra)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return updated, err
}

func (en *Engine[S, E]) execute(ctx context.Context, env Env[S, E], id string, target S, actor Actor, extra map[string]any) (E, error) {
	var zero E

	e, err := env.Lock(ctx, id)
	if err != nil {
		return zero, err
	}
	from := e.CurrentState()

	if !en.def.Allowed(from, target) {
		metrics.WorkflowRejectionsTotal.WithLabelValues(en.def.EntityType, "invalid_transition").Inc()
		return zero, InvalidTransitionError{
			EntityType: en.def.EntityType,
			EntityID:   id,
			From:       string(from),
			To:         string(target),
		}
	}

	if !en.can(ctx, actor, e, target) {
		metrics.WorkflowRejectionsTotal.WithLabelValues(en.def.EntityType, "unauthorized").Inc()
		return zero, UnauthorizedError{
			EntityType: en.def.EntityType,
			EntityID:   id,
			ActorID:    actor.ID,
			Role:       actor.Role,
			Target:     string(target),
		}
	}

	for _, guard := range en.guards[target] {
		if err := guard(ctx, env, e); err != nil {
			metrics.WorkflowRejectionsTotal.WithLabelValues(en.def.EntityType, "guard_failed").Inc()
			return zero, err
		}
	}

	updated, err := env.Persist(ctx, e, target)
	if err != nil {
		return zero, fmt.Errorf("persist %s %s: %w", en.def.EntityType, id, err)
	}

	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload["from_state"] = string(from)
	payload["to_state"] = string(target)

	if err := env.Record(ctx, updated, en.def.EventTypes[target], actor, payload); err != nil {
		return zero, fmt.Errorf("record %s event for %s: %w", en.def.EntityType, id, err)
	}

	metrics.WorkflowTransitionsTotal.WithLabelValues(en.def.EntityType, string(from), string(target)).Inc()
	return updated, nil
}
