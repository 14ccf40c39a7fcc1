// Package export writes extracted pathway graphs to CSV files and a
// combined XLSX workbook for downstream analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/toxindex/aopex/aop"
)

var (
	eventHeader        = []string{"id", "name", "description", "event_type", "biological_level", "organ", "reference", "pmid"}
	relationshipHeader = []string{"relationship_id", "source_event_id", "target_event_id", "relationship_type", "evidence_strength", "evidence_justification", "pmid"}
	evidenceHeader     = []string{"evidence_id", "relationship_id", "source_id", "reference", "pmid"}
)

func eventRow(e aop.KeyEvent) []string {
	return []string{e.ID, e.Name, e.Description, string(e.EventType), string(e.BiologicalLevel), e.Organ, e.Reference, e.PMID}
}

func relationshipRow(r aop.Relationship) []string {
	return []string{r.RelationshipID, r.SourceEventID, r.TargetEventID, r.RelationshipType, strconv.FormatFloat(r.EvidenceStrength, 'f', -1, 64), r.EvidenceJustification, r.PMID}
}

func evidenceRow(v aop.EvidenceRecord) []string {
	return []string{v.EvidenceID, v.RelationshipID, v.SourceID, v.Reference, v.PMID}
}

// WriteCSVs writes KE_<stem>.csv, Relationships_<stem>.csv and
// Evidence_<stem>.csv under dir and returns the paths written.
func WriteCSVs(dir, stem string, events []aop.KeyEvent, relationships []aop.Relationship, evidence []aop.EvidenceRecord) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	eventRows := make([][]string, 0, len(events))
	for _, e := range events {
		eventRows = append(eventRows, eventRow(e))
	}
	relRows := make([][]string, 0, len(relationships))
	for _, r := range relationships {
		relRows = append(relRows, relationshipRow(r))
	}
	evRows := make([][]string, 0, len(evidence))
	for _, v := range evidence {
		evRows = append(evRows, evidenceRow(v))
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{fmt.Sprintf("KE_%s.csv", stem), eventHeader, eventRows},
		{fmt.Sprintf("Relationships_%s.csv", stem), relationshipHeader, relRows},
		{fmt.Sprintf("Evidence_%s.csv", stem), evidenceHeader, evRows},
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		if err := writeCSV(path, file.header, file.rows); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}
