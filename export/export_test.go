package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/toxindex/aopex/aop"
)

func sampleData() ([]aop.KeyEvent, []aop.Relationship, []aop.EvidenceRecord) {
	events := []aop.KeyEvent{
		{ID: "e1", Name: "Activation of AhR", Description: "Receptor binding", EventType: aop.EventMIE, BiologicalLevel: aop.LevelMolecular, Organ: "liver", Reference: "W1", PMID: "W1"},
		{ID: "e2", Name: "Reduced fertility", EventType: aop.EventAO, BiologicalLevel: aop.LevelOrganism, Reference: "W1", PMID: "W1"},
	}
	relationships := []aop.Relationship{
		{RelationshipID: "r1", SourceEventID: "e1", TargetEventID: "e2", RelationshipType: aop.RelationshipLeadsTo, EvidenceStrength: 0.75, EvidenceJustification: "shown in vivo", PMID: "W1"},
	}
	evidence := []aop.EvidenceRecord{
		{EvidenceID: "v1", RelationshipID: "r1", SourceID: "OPENALEX:W1", Reference: "W1", PMID: "W1"},
	}
	return events, relationships, evidence
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return rows
}

func TestWriteCSVs(t *testing.T) {
	dir := t.TempDir()
	events, rels, evidence := sampleData()

	paths, err := WriteCSVs(dir, "paper1", events, rels, evidence)
	if err != nil {
		t.Fatalf("WriteCSVs: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %d, want 3", len(paths))
	}

	wantNames := []string{"KE_paper1.csv", "Relationships_paper1.csv", "Evidence_paper1.csv"}
	for i, want := range wantNames {
		if got := filepath.Base(paths[i]); got != want {
			t.Errorf("path %d = %s, want %s", i, got, want)
		}
	}

	rows := readCSV(t, paths[0])
	if len(rows) != 3 {
		t.Fatalf("event rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[0][4] != "biological_level" {
		t.Errorf("unexpected event header: %v", rows[0])
	}
	if rows[1][1] != "Activation of AhR" || rows[1][3] != "MIE" {
		t.Errorf("unexpected event row: %v", rows[1])
	}

	relRows := readCSV(t, paths[1])
	if relRows[1][4] != "0.75" {
		t.Errorf("evidence strength = %q, want 0.75", relRows[1][4])
	}

	evRows := readCSV(t, paths[2])
	if evRows[1][2] != "OPENALEX:W1" {
		t.Errorf("source id = %q, want OPENALEX:W1", evRows[1][2])
	}
}

func TestWriteCSVsEmptyTables(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteCSVs(dir, "empty", nil, nil, nil)
	if err != nil {
		t.Fatalf("WriteCSVs: %v", err)
	}
	for _, p := range paths {
		rows := readCSV(t, p)
		if len(rows) != 1 {
			t.Errorf("%s rows = %d, want header only", filepath.Base(p), len(rows))
		}
	}
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	events, rels, evidence := sampleData()

	path, err := WriteWorkbook(dir, "paper1", events, rels, evidence)
	if err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	if filepath.Base(path) != "AOP_paper1.xlsx" {
		t.Errorf("workbook path = %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Key Events", "Relationships", "Evidence"}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i, name := range want {
		if sheets[i] != name {
			t.Errorf("sheet %d = %s, want %s", i, sheets[i], name)
		}
	}

	rows, err := f.GetRows("Key Events")
	if err != nil {
		t.Fatalf("reading Key Events: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Key Events rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "Activation of AhR" {
		t.Errorf("unexpected first event row: %v", rows[1])
	}
}
