package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/toxindex/aopex/aop"
)

const (
	sheetEvents        = "Key Events"
	sheetRelationships = "Relationships"
	sheetEvidence      = "Evidence"
)

// WriteWorkbook writes AOP_<stem>.xlsx under dir with one sheet per
// table and returns the path written.
func WriteWorkbook(dir, stem string, events []aop.KeyEvent, relationships []aop.Relationship, evidence []aop.EvidenceRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

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

	sheets := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{sheetEvents, eventHeader, eventRows},
		{sheetRelationships, relationshipHeader, relRows},
		{sheetEvidence, evidenceHeader, evRows},
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				return "", fmt.Errorf("renaming sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return "", fmt.Errorf("adding sheet %s: %w", sheet.name, err)
			}
		}
		if err := writeSheet(f, sheet.name, sheet.header, sheet.rows); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("AOP_%s.xlsx", stem))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	write := func(rowIdx int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := write(1, header); err != nil {
		return fmt.Errorf("writing header to %s: %w", sheet, err)
	}
	for i, r := range rows {
		if err := write(i+2, r); err != nil {
			return fmt.Errorf("writing row to %s: %w", sheet, err)
		}
	}
	return nil
}
