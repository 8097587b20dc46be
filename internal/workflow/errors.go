package workflow

import "fmt"

// InvalidTransitionError reports a target state that is not reachable from
// the entity's current state. Never retried; if the entity changed under a
// concurrent caller, the caller must re-read and decide again.
type InvalidTransitionError struct {
	EntityType string
	EntityID   string
	From       string
	To         string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: invalid transition %s -> %s", e.EntityType, e.EntityID, e.From, e.To)
}

// UnauthorizedError reports an actor without authority for the requested
// transition.
type UnauthorizedError struct {
	EntityType string
	EntityID   string
	ActorID    string
	Role       string
	Target     string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("%s %s: actor %q (role %q) may not transition to %s", e.EntityType, e.EntityID, e.ActorID, e.Role, e.Target)
}

// GuardViolationError reports an unmet domain precondition on an otherwise
// legal, authorized transition. Reason is human-readable and safe to surface.
type GuardViolationError struct {
	EntityType string
	EntityID   string
	Target     string
	Reason     string
}

func (e GuardViolationError) Error() string {
	return fmt.Sprintf("%s %s: cannot transition to %s: %s", e.EntityType, e.EntityID, e.Target, e.Reason)
}
