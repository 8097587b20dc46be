// Package audit emits the integrity alerts operators page on: a stored
// chain failing replay, or the append pipeline giving up on an event.
// Alerts go through the normal log stream as structured entries so existing
// shipping picks them up.
package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Alert kinds.
const (
	// KindChainCorruption means a stored chain failed integrity replay.
	KindChainCorruption = "chain_corruption"
	// KindAppendExhausted means an append job ran out of retries and its
	// event is not on its chain.
	KindAppendExhausted = "append_exhausted"
)

// Alert is one integrity incident.
type Alert struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Seq        int64     `json:"seq,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Logger writes integrity alerts as structured log entries.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger returns a logger emitting on the global zerolog output.
func NewLogger() *Logger {
	return NewLoggerWithZerolog(log.Logger)
}

// NewLoggerWithZerolog returns a logger emitting on the given zerolog
// instance. Tests pass a buffer-backed logger.
func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Log emits one alert. The timestamp is filled in when the caller left it
// zero.
func (l *Logger) Log(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	l.logger.Error().Interface("audit", alert).Msg("ledger integrity alert")
}

// ChainCorruption reports a chain that failed replay. Seq is the first
// failing position, zero when the whole chain is implicated.
func (l *Logger) ChainCorruption(entityType, entityID string, seq int64, detail string) {
	l.Log(Alert{
		Kind:       KindChainCorruption,
		EntityType: entityType,
		EntityID:   entityID,
		Seq:        seq,
		Detail:     detail,
	})
}

// AppendExhausted reports an event the queue gave up appending.
func (l *Logger) AppendExhausted(entityType, entityID string, seq int64, detail string) {
	l.Log(Alert{
		Kind:       KindAppendExhausted,
		EntityType: entityType,
		EntityID:   entityID,
		Seq:        seq,
		Detail:     detail,
	})
}
