// Package graph turns raw extracted events and candidate relationships into
// the final validated pathway graph. Candidates with dangling endpoints or
// backward level transitions are dropped; the survivors are scored and each
// gets exactly one evidence record.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/toxindex/aopex/aop"
)

// Scorer produces an evidence strength for one validated edge. It is called
// once per surviving relationship, in candidate order.
type Scorer func(ctx context.Context, source, target *aop.KeyEvent) (aop.RelationshipStrength, error)

// defaultStrength is substituted when scoring fails; scoring failures are
// per-relationship, never run-fatal.
const defaultStrength = 0.5

// Assembly is the assembled graph for one document run. Slices hold
// first-touch insertion order so downstream reports are deterministic.
type Assembly struct {
	KeyEvents     []aop.KeyEvent
	Relationships []aop.Relationship
	Evidence      []aop.EvidenceRecord

	// InvalidTransitions counts candidates dropped by the level rule.
	InvalidTransitions int
	// DanglingDropped counts candidates referencing unknown event ids.
	DanglingDropped int
	// DroppedEvents counts extracted events that survived no relationship
	// and therefore do not appear in KeyEvents.
	DroppedEvents int
}

// Assembler builds one Assembly per document run.
type Assembler struct {
	reference    string
	pmid         string
	sourcePrefix string
	score        Scorer
}

// NewAssembler creates an assembler for one document. reference and pmid are
// copied onto evidence records; sourcePrefix forms the evidence source tag
// ("OPENALEX" yields "OPENALEX:<reference>").
func NewAssembler(reference, pmid, sourcePrefix string, score Scorer) *Assembler {
	return &Assembler{reference: reference, pmid: pmid, sourcePrefix: sourcePrefix, score: score}
}

// Assemble filters, scores, and assembles the candidate edges. An event
// appears in the output iff it participates in at least one surviving
// relationship. The only error returned is context cancellation during
// scoring; all other scoring failures degrade to the default strength.
func (a *Assembler) Assemble(ctx context.Context, events []aop.KeyEvent, candidates []aop.RawRelationship) (*Assembly, error) {
	eventsByID := make(map[string]*aop.KeyEvent, len(events))
	for i := range events {
		eventsByID[events[i].ID] = &events[i]
	}

	out := &Assembly{}
	seenEvents := make(map[string]bool, len(events))

	for _, rel := range candidates {
		source, okSrc := eventsByID[rel.SourceEventID]
		target, okTgt := eventsByID[rel.TargetEventID]
		if !okSrc || !okTgt {
			// Dangling reference: discarded, not an error.
			out.DanglingDropped++
			continue
		}

		valid, reason := aop.ValidateTransition(source, target)
		if !valid {
			out.InvalidTransitions++
			slog.Warn("dropping relationship",
				"reason", reason,
				"source", source.Name, "source_level", source.BiologicalLevel,
				"target", target.Name, "target_level", target.BiologicalLevel)
			continue
		}
		if aop.IsLargeJump(reason) {
			slog.Info("level jump", "reason", reason, "source", source.Name, "target", target.Name)
		}

		// Idempotent insertion: an event already present stays a single
		// entry no matter how many relationships touch it.
		for _, ev := range []*aop.KeyEvent{source, target} {
			if !seenEvents[ev.ID] {
				seenEvents[ev.ID] = true
				out.KeyEvents = append(out.KeyEvents, *ev)
			}
		}

		strength, err := a.scoreEdge(ctx, source, target)
		if err != nil {
			return nil, err
		}

		relID := uuid.NewString()
		out.Relationships = append(out.Relationships, aop.Relationship{
			RelationshipID:        relID,
			SourceEventID:         rel.SourceEventID,
			TargetEventID:         rel.TargetEventID,
			RelationshipType:      aop.RelationshipLeadsTo,
			EvidenceStrength:      strength.StrengthScore,
			EvidenceJustification: strength.Justification,
			PMID:                  a.pmid,
		})
		out.Evidence = append(out.Evidence, aop.EvidenceRecord{
			EvidenceID:     uuid.NewString(),
			RelationshipID: relID,
			SourceID:       fmt.Sprintf("%s:%s", a.sourcePrefix, a.reference),
			Reference:      a.reference,
			PMID:           a.pmid,
		})
	}

	out.DroppedEvents = len(events) - len(out.KeyEvents)

	if out.InvalidTransitions > 0 {
		slog.Info("filtered backward transitions", "count", out.InvalidTransitions)
	}

	return out, nil
}

// scoreEdge calls the scorer and substitutes the default strength on
// failure. Context cancellation propagates so an external deadline aborts
// the run instead of silently defaulting every remaining edge.
func (a *Assembler) scoreEdge(ctx context.Context, source, target *aop.KeyEvent) (aop.RelationshipStrength, error) {
	if a.score == nil {
		return aop.RelationshipStrength{StrengthScore: defaultStrength}, nil
	}

	strength, err := a.score(ctx, source, target)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return aop.RelationshipStrength{}, err
		}
		slog.Warn("scoring failed, using default strength",
			"source", source.Name, "target", target.Name, "error", err)
		return aop.RelationshipStrength{StrengthScore: defaultStrength}, nil
	}
	return strength, nil
}
