package aop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RelationshipLeadsTo is the only relationship type the pipeline produces.
const RelationshipLeadsTo = "leads_to"

// RawRelationship is a candidate causal edge as returned by the LLM, before
// transition validation and scoring. It references two extracted events by
// their generated ids.
type RawRelationship struct {
	SourceEventID string `json:"source_event_id"`
	TargetEventID string `json:"target_event_id"`
}

// NewRawRelationship builds a candidate edge, rejecting empty endpoints and
// self-loops at construction.
func NewRawRelationship(sourceID, targetID string) (RawRelationship, error) {
	r := RawRelationship{SourceEventID: sourceID, TargetEventID: targetID}
	if err := r.Validate(); err != nil {
		return RawRelationship{}, err
	}
	return r, nil
}

// Validate enforces the structural invariants of a candidate edge: both
// endpoint ids non-empty and distinct.
func (r RawRelationship) Validate() error {
	if strings.TrimSpace(r.SourceEventID) == "" || strings.TrimSpace(r.TargetEventID) == "" {
		return fmt.Errorf("relationship has empty endpoint id")
	}
	if r.SourceEventID == r.TargetEventID {
		return fmt.Errorf("self-loops not allowed: %s", r.SourceEventID)
	}
	return nil
}

// UnmarshalJSON decodes a candidate edge and rejects structurally invalid
// ones immediately, so a self-loop in LLM output fails the stage the same
// way any other malformed response does.
func (r *RawRelationship) UnmarshalJSON(data []byte) error {
	type alias RawRelationship
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = RawRelationship(a)
	return r.Validate()
}

// Relationship is a validated, scored causal edge in the final graph.
type Relationship struct {
	RelationshipID        string  `json:"relationship_id"`
	SourceEventID         string  `json:"source_event_id"`
	TargetEventID         string  `json:"target_event_id"`
	RelationshipType      string  `json:"relationship_type"`
	EvidenceStrength      float64 `json:"evidence_strength"`
	EvidenceJustification string  `json:"evidence_justification"`
	PMID                  string  `json:"pmid,omitempty"`
}

// EvidenceRecord ties one piece of document provenance to a relationship.
// Assembly produces exactly one evidence record per relationship.
type EvidenceRecord struct {
	EvidenceID     string `json:"evidence_id"`
	RelationshipID string `json:"relationship_id"`
	SourceID       string `json:"source_id"`
	Reference      string `json:"reference"`
	PMID           string `json:"pmid,omitempty"`
}

// RelationshipStrength is the LLM's evidence assessment for one edge.
type RelationshipStrength struct {
	StrengthScore float64 `json:"strength_score"`
	Justification string  `json:"justification"`
}

// Validate checks that the score lies in [0,1].
func (s RelationshipStrength) Validate() error {
	if s.StrengthScore < 0 || s.StrengthScore > 1 {
		return fmt.Errorf("strength score %v outside [0,1]", s.StrengthScore)
	}
	return nil
}
