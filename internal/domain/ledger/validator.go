package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/praktika-foundation/server/internal/domain/ledger"

// Validator replays stored chains and verifies their integrity without
// writing anything. It recomputes every event hash from the stored fields
// and walks the predecessor links, so any retroactive edit surfaces as a
// failed check.
type Validator struct {
	repo Repository
}

func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// EventCheck is the verdict for one event in a chain replay.
type EventCheck struct {
	EventID   string
	Seq       int64
	EventType string
	// HashOK reports whether the stored hash matches its recomputation.
	HashOK bool
	// LinkOK reports whether the event sits at the expected position and
	// points at its predecessor's hash.
	LinkOK bool
}

// ChainReport is the outcome of replaying one chain.
type ChainReport struct {
	EntityType string
	EntityID   string
	IsValid    bool
	EventCount int
	// AssignedSeq is the highest position handed out for the entity.
	// Positions beyond EventCount are still in flight with the append
	// worker, not corruption.
	AssignedSeq int64
	Events      []EventCheck
}

// Pending counts positions assigned but not yet appended.
func (r ChainReport) Pending() int64 {
	pending := r.AssignedSeq - int64(r.EventCount)
	if pending < 0 {
		return 0
	}
	return pending
}

// Failures returns the checks that did not pass.
func (r ChainReport) Failures() []EventCheck {
	var out []EventCheck
	for _, c := range r.Events {
		if !c.HashOK || !c.LinkOK {
			out = append(out, c)
		}
	}
	return out
}

// ValidateChain replays one chain. An empty chain is valid. The report is
// complete even when checks fail; callers inspect IsValid and Failures.
func (v *Validator) ValidateChain(ctx context.Context, entityType, entityID string) (ChainReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger.validate_chain",
		trace.WithAttributes(
			attribute.String("entity_type", entityType),
			attribute.String("entity_id", entityID),
		))
	defer span.End()

	report := ChainReport{EntityType: entityType, EntityID: entityID, IsValid: true}

	events, err := v.repo.Chain(ctx, entityType, entityID)
	if err != nil {
		return ChainReport{}, fmt.Errorf("load chain %s/%s: %w", entityType, entityID, err)
	}
	assigned, err := v.repo.AssignedSeq(ctx, entityType, entityID)
	if err != nil {
		return ChainReport{}, fmt.Errorf("load chain counter %s/%s: %w", entityType, entityID, err)
	}
	report.EventCount = len(events)
	report.AssignedSeq = assigned

	// More appended events than assigned positions means the sequence
	// counter was rewound.
	if int64(len(events)) > assigned {
		report.IsValid = false
	}

	var prevHash *string
	for i, ev := range events {
		check := EventCheck{EventID: ev.ID, Seq: ev.Seq, EventType: ev.EventType, HashOK: true, LinkOK: true}

		if ev.Seq != int64(i+1) {
			check.LinkOK = false
		}
		if i == 0 {
			if ev.PreviousHash != nil {
				check.LinkOK = false
			}
		} else if ev.PreviousHash == nil || prevHash == nil || *ev.PreviousHash != *prevHash {
			check.LinkOK = false
		}
		if ev.Hash == nil || *ev.Hash != ev.ComputeHash() {
			check.HashOK = false
		}

		if !check.HashOK || !check.LinkOK {
			report.IsValid = false
		}
		prevHash = ev.Hash
		report.Events = append(report.Events, check)
	}
	if !report.IsValid {
		span.SetStatus(codes.Error, "chain corrupt")
	}
	return report, nil
}

// SweepOptions bound a full-ledger validation pass so it stays polite to
// the shared database.
type SweepOptions struct {
	// Concurrency caps parallel chain replays. Defaults to 4.
	Concurrency int
	// ChainsPerSecond throttles how fast chains are picked up. Zero means
	// no throttle.
	ChainsPerSecond float64
}

// SweepReport summarizes a full validation pass.
type SweepReport struct {
	Chains  int
	Pending int64
	// Corrupted holds the reports of chains that failed replay, ordered by
	// entity for stable output.
	Corrupted []ChainReport
}

// ValidateAll replays every chain known to the sequence table.
func (v *Validator) ValidateAll(ctx context.Context, opts SweepOptions) (SweepReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger.validate_all")
	defer span.End()

	refs, err := v.repo.Entities(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list chains: %w", err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	var limiter *rate.Limiter
	if opts.ChainsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ChainsPerSecond), 1)
	}

	var mu sync.Mutex
	report := SweepReport{Chains: len(refs)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ref := range refs {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			cr, err := v.ValidateChain(gctx, ref.EntityType, ref.EntityID)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Pending += cr.Pending()
			if !cr.IsValid {
				report.Corrupted = append(report.Corrupted, cr)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepReport{}, err
	}

	sort.Slice(report.Corrupted, func(i, j int) bool {
		if report.Corrupted[i].EntityType != report.Corrupted[j].EntityType {
			return report.Corrupted[i].EntityType < report.Corrupted[j].EntityType
		}
		return report.Corrupted[i].EntityID < report.Corrupted[j].EntityID
	})
	span.SetAttributes(
		attribute.Int("chains", report.Chains),
		attribute.Int("corrupted", len(report.Corrupted)),
	)
	return report, nil
}
