// Package aop defines the typed records of an Adverse Outcome Pathway:
// key events, causal relationships between them, and the evidence attached
// to each relationship. It also owns the biological level hierarchy and the
// transition rule that relationships may only move up that hierarchy.
package aop

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType classifies a key event's position in the pathway.
type EventType string

const (
	// EventMIE is the Molecular Initiating Event, the first molecular
	// interaction in a pathway. Exactly one is expected per pathway.
	EventMIE EventType = "MIE"
	// EventKE is an intermediate Key Event at any biological level.
	EventKE EventType = "KE"
	// EventAO is the Adverse Outcome, the final harmful endpoint.
	// Exactly one is expected per pathway.
	EventAO EventType = "AO"
)

// Valid reports whether t is one of the three known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventMIE, EventKE, EventAO:
		return true
	}
	return false
}

// KeyEvent is one measurable biological change extracted from a document.
// Names follow the "[Direction] of [Entity] in [Location]" convention; the
// format is enforced by the extraction prompt, not by this type.
type KeyEvent struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	EventType       EventType       `json:"event_type"`
	BiologicalLevel BiologicalLevel `json:"biological_level"`
	Organ           string          `json:"organ,omitempty"`

	// Provenance, copied from the source document identifier.
	Reference string `json:"reference,omitempty"`
	PMID      string `json:"pmid,omitempty"`
}

// Normalize canonicalises the enum-valued fields in place: event types are
// uppercased and biological levels lowercased, mirroring how LLM output is
// accepted case-insensitively.
func (e *KeyEvent) Normalize() {
	e.EventType = EventType(strings.ToUpper(strings.TrimSpace(string(e.EventType))))
	e.BiologicalLevel = BiologicalLevel(strings.ToLower(strings.TrimSpace(string(e.BiologicalLevel))))
}

// UnmarshalJSON decodes a key event and normalizes its enum fields, so any
// casing produced by the LLM ("mie", "Molecular") parses to canonical form.
func (e *KeyEvent) UnmarshalJSON(data []byte) error {
	type alias KeyEvent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = KeyEvent(a)
	e.Normalize()
	return nil
}

// Validate checks the fields an extracted event must carry.
func (e *KeyEvent) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("key event has empty name")
	}
	if !e.EventType.Valid() {
		return fmt.Errorf("key event %q: unknown event type %q", e.Name, e.EventType)
	}
	return nil
}
