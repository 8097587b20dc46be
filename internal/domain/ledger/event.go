// Package ledger implements the append-only, hash-chained event ledger that
// records every business-significant mutation per entity. Each event embeds
// the digest of its predecessor on the same chain, so a retroactive edit to
// any stored event is detectable by replay.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity type tags. A chain is the ordered set of events sharing
// (EntityType, EntityID).
const (
	EntityOpportunity = "opportunity"
	EntityApplication = "application"
	EntityEvidence    = "evidence"
)

// Event is one immutable ledger record. Rows are written once, receive a
// single hash backfill in the same transaction, and are never updated or
// deleted afterwards. The JSON form is the outbox transport between Record
// and the append worker; Payload travels base64-encoded so the canonical
// bytes survive the trip exactly.
type Event struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	// Seq is the 1-based position in the entity's chain, assigned at record
	// time in commit order.
	Seq       int64   `json:"seq"`
	EventType string  `json:"event_type"`
	ActorID   *string `json:"actor_id,omitempty"`
	ActorRole *string `json:"actor_role,omitempty"`
	// Payload holds the canonical JSON bytes produced by CanonicalJSON.
	// Hashes digest these exact bytes, so the store must return them
	// unmodified.
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
	// PreviousHash is the hash of the previous event on the chain, nil at
	// genesis (Seq 1).
	PreviousHash *string `json:"previous_hash,omitempty"`
	// Hash is nil between insert and backfill inside the append
	// transaction; committed rows always carry it.
	Hash       *string   `json:"hash,omitempty"`
	AppendedAt time.Time `json:"appended_at"`
}

// RecordInput describes one event to record. ActorID and ActorRole are
// empty for system-initiated mutations (seeding, maintenance).
type RecordInput struct {
	EntityType string
	EntityID   string
	EventType  string
	ActorID    string
	ActorRole  string
	Payload    map[string]any
}

// NewEvent assembles the immutable record queued for append. The caller
// supplies the chain position it obtained under the per-entity sequence
// lock. OccurredAt is truncated to microseconds so the value read back from
// the store reproduces the exact hash input.
func NewEvent(in RecordInput, seq int64, now time.Time) (Event, error) {
	if in.EntityType == "" {
		return Event{}, fmt.Errorf("ledger event: entity type is required")
	}
	if in.EntityID == "" {
		return Event{}, fmt.Errorf("ledger event: entity id is required")
	}
	if in.EventType == "" {
		return Event{}, fmt.Errorf("ledger event: event type is required")
	}
	if seq < 1 {
		return Event{}, fmt.Errorf("ledger event: seq %d out of range", seq)
	}

	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return Event{}, fmt.Errorf("ledger event payload: %w", err)
	}

	ev := Event{
		ID:         uuid.NewString(),
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		Seq:        seq,
		EventType:  in.EventType,
		Payload:    canonical,
		OccurredAt: now.UTC().Truncate(time.Microsecond),
	}
	if in.ActorID != "" {
		ev.ActorID = &in.ActorID
	}
	if in.ActorRole != "" {
		ev.ActorRole = &in.ActorRole
	}
	return ev, nil
}

// ComputeHash digests the event's chained fields: id, previous hash, event
// type, actor id, actor role, entity id, entity type, canonical payload,
// and the RFC3339Nano UTC timestamp, concatenated in that fixed order.
// Nil fields contribute nothing. The layout is part of the ledger contract;
// changing it invalidates every stored chain.
func (ev Event) ComputeHash() string {
	var b bytes.Buffer
	b.WriteString(ev.ID)
	if ev.PreviousHash != nil {
		b.WriteString(*ev.PreviousHash)
	}
	b.WriteString(ev.EventType)
	if ev.ActorID != nil {
		b.WriteString(*ev.ActorID)
	}
	if ev.ActorRole != nil {
		b.WriteString(*ev.ActorRole)
	}
	b.WriteString(ev.EntityID)
	b.WriteString(ev.EntityType)
	b.Write(ev.Payload)
	b.WriteString(ev.OccurredAt.UTC().Format(time.RFC3339Nano))

	sum := sha256.Sum256(b.Bytes())
	return hex.EncodeToString(sum[:])
}
