package ledger

// Append job routing. Record inserts one AppendArgs job per event in the
// business transaction; the append worker drains them on the dedicated
// ledger queue. The kind and queue names are part of the recording
// contract, so they live here rather than with the worker.
const (
	AppendJobKind = "ledger_append"
	AppendQueue   = "ledger"
)

// AppendArgs is the outbox message carrying one recorded event to the
// append worker. The event is complete except for its chain link and hash,
// which the worker computes against the chain head at append time.
type AppendArgs struct {
	Event Event `json:"event"`
}

func (AppendArgs) Kind() string { return AppendJobKind }
