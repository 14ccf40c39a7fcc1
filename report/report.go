// Package report renders a markdown summary of an extracted adverse
// outcome pathway: event counts, evidence tallies, and an example
// pathway walked from a molecular initiating event to an adverse
// outcome.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/toxindex/aopex/aop"
)

const justificationLimit = 200

// Generate produces a markdown report for the extracted graph. The
// output is deterministic for a given input ordering.
func Generate(keyEvents []aop.KeyEvent, relationships []aop.Relationship, evidence []aop.EvidenceRecord, topic string) string {
	eventsByID := make(map[string]*aop.KeyEvent, len(keyEvents))
	for i := range keyEvents {
		eventsByID[keyEvents[i].ID] = &keyEvents[i]
	}

	evidenceByRelationship := make(map[string]int)
	for _, ev := range evidence {
		if ev.RelationshipID != "" {
			evidenceByRelationship[ev.RelationshipID]++
		}
	}

	// Tally evidence per event through its relationships. An edge's
	// evidence counts toward both endpoints.
	evidenceCountByEvent := make(map[string]int)
	var touchedEvents []string
	touch := func(id string, n int) {
		if id == "" {
			return
		}
		if _, ok := evidenceCountByEvent[id]; !ok {
			touchedEvents = append(touchedEvents, id)
		}
		evidenceCountByEvent[id] += n
	}
	for _, rel := range relationships {
		n := evidenceByRelationship[rel.RelationshipID]
		touch(rel.SourceEventID, n)
		touch(rel.TargetEventID, n)
	}

	typeCounts := make(map[aop.EventType]int)
	levelCounts := make(map[string]int)
	for _, e := range keyEvents {
		typeCounts[e.EventType]++
		level := string(e.BiologicalLevel)
		if level == "" {
			level = "unknown"
		}
		levelCounts[level]++
	}

	pathway := findExamplePathway(keyEvents, relationships, eventsByID)

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Key Event Extraction Report: %s", topic)
	line("")
	line("## Summary Statistics")
	line("")
	line("- **Total Key Events**: %d", len(keyEvents))
	line("  - MIE (Molecular Initiating Events): %d", typeCounts[aop.EventMIE])
	line("  - KE (Key Events): %d", typeCounts[aop.EventKE])
	line("  - AO (Adverse Outcomes): %d", typeCounts[aop.EventAO])
	line("")
	line("- **Total Relationships**: %d", len(relationships))
	line("")
	line("- **Total Evidence Records**: %d", len(evidence))
	line("")
	line("## Events by Biological Level")
	line("")

	levels := make([]string, 0, len(levelCounts))
	for level := range levelCounts {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	for _, level := range levels {
		line("- **%s**: %d", capitalize(level), levelCounts[level])
	}

	line("")
	line("## Evidence Count per Key Event")
	line("")

	if len(touchedEvents) > 0 {
		ranked := make([]string, len(touchedEvents))
		copy(ranked, touchedEvents)
		sort.SliceStable(ranked, func(i, j int) bool {
			return evidenceCountByEvent[ranked[i]] > evidenceCountByEvent[ranked[j]]
		})
		if len(ranked) > 10 {
			ranked = ranked[:10]
		}
		for _, id := range ranked {
			if e, ok := eventsByID[id]; ok {
				line("- **%s**: %d evidence record(s)", e.Name, evidenceCountByEvent[id])
			}
		}
	} else {
		line("- No evidence records found")
	}

	line("")
	line("## Example AOP Pathway")
	line("")

	if len(pathway) > 0 {
		line("The following is an example pathway extracted from the document:")
		line("")
		for i, id := range pathway {
			e, ok := eventsByID[id]
			if !ok {
				continue
			}
			arrow := ""
			if i < len(pathway)-1 {
				arrow = " → "
			}
			line("%d. **%s** [%s] (%s)%s", i+1, e.Name, e.EventType, e.BiologicalLevel, arrow)
		}
		line("")
		line("**Pathway Details:**")
		for i := 0; i < len(pathway)-1; i++ {
			rel := findRelationship(relationships, pathway[i], pathway[i+1])
			if rel == nil {
				continue
			}
			line("- Step %d → %d: Evidence strength = %.2f", i+1, i+2, rel.EvidenceStrength)
			if rel.EvidenceJustification != "" {
				line("  *%s*", truncate(rel.EvidenceJustification, justificationLimit))
			}
		}
	} else {
		line("No complete pathway found in the extracted data.")
	}

	return strings.TrimRight(b.String(), "\n")
}

// findExamplePathway walks depth-first from each MIE in order until
// some chain reaches an AO. The visited set is shared across the whole
// search from one MIE, so cycles and rejoined branches are skipped
// rather than re-explored. If no MIE reaches an AO the first
// relationship's endpoints stand in as a two-step path.
func findExamplePathway(keyEvents []aop.KeyEvent, relationships []aop.Relationship, eventsByID map[string]*aop.KeyEvent) []string {
	adjacency := make(map[string][]string)
	for _, rel := range relationships {
		if rel.SourceEventID != "" && rel.TargetEventID != "" {
			adjacency[rel.SourceEventID] = append(adjacency[rel.SourceEventID], rel.TargetEventID)
		}
	}

	var dfs func(id string, visited map[string]bool) []string
	dfs = func(id string, visited map[string]bool) []string {
		if visited[id] {
			return nil
		}
		visited[id] = true
		e, ok := eventsByID[id]
		if !ok {
			return nil
		}
		if e.EventType == aop.EventAO {
			return []string{id}
		}
		for _, next := range adjacency[id] {
			if path := dfs(next, visited); path != nil {
				return append([]string{id}, path...)
			}
		}
		return nil
	}

	for _, e := range keyEvents {
		if e.EventType != aop.EventMIE {
			continue
		}
		if path := dfs(e.ID, make(map[string]bool)); path != nil {
			return path
		}
	}

	if len(relationships) > 0 {
		first := relationships[0]
		var path []string
		if first.SourceEventID != "" {
			path = append(path, first.SourceEventID)
		}
		if first.TargetEventID != "" {
			path = append(path, first.TargetEventID)
		}
		return path
	}
	return nil
}

func findRelationship(relationships []aop.Relationship, sourceID, targetID string) *aop.Relationship {
	for i := range relationships {
		if relationships[i].SourceEventID == sourceID && relationships[i].TargetEventID == targetID {
			return &relationships[i]
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// truncate limits s to limit characters, not bytes, so a boundary that
// lands mid-rune cannot emit invalid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
