package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"leandash/internal/core"
)

// RowError reports one rejected import row. Line numbers are 1-based and
// count the header.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportReport summarizes a CSV import: rows are processed one at a time
// and a bad row never rolls back the ones already written.
type ImportReport struct {
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors"`
}

var importHeader = []string{"date", "target", "value", "comment"}

// ErrBadHeader is returned when the CSV header is not date,target,value
// with an optional trailing comment column.
var ErrBadHeader = errors.New("csv header must be date,target,value[,comment]")

// ImportEntries reads a CSV export and upserts one entry per row through
// the usual edit path, so bounds, rounding and mirror publishing all apply.
func (s *ChartService) ImportEntries(ctx context.Context, chartID int64, horizon core.Horizon, r io.Reader) (ImportReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportReport{}, fmt.Errorf("read csv header: %w", err)
	}
	if !headerMatches(header) {
		return ImportReport{}, ErrBadHeader
	}

	var report ImportReport
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}

		entry, err := parseImportRow(record)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}

		if _, err := s.UpdateEntry(ctx, chartID, horizon, entry); err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		report.Imported++
	}

	slog.InfoContext(ctx, "CSV import finished",
		"chart_id", chartID,
		"horizon", horizon,
		"imported", report.Imported,
		"rejected", len(report.Errors))

	return report, nil
}

// headerMatches accepts date,target,value with or without the trailing
// comment column, mirroring what parseImportRow tolerates per row.
func headerMatches(header []string) bool {
	if len(header) != len(importHeader) && len(header) != len(importHeader)-1 {
		return false
	}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(col), importHeader[i]) {
			return false
		}
	}
	return true
}

func parseImportRow(record []string) (core.ChartEntry, error) {
	if len(record) < 3 {
		return core.ChartEntry{}, fmt.Errorf("expected at least 3 columns, got %d", len(record))
	}

	target, err := core.CoerceNumber(record[1])
	if err != nil {
		return core.ChartEntry{}, fmt.Errorf("target: %w", err)
	}
	value, err := core.CoerceNumber(record[2])
	if err != nil {
		return core.ChartEntry{}, fmt.Errorf("value: %w", err)
	}

	entry := core.ChartEntry{
		Date:   strings.TrimSpace(record[0]),
		Target: target,
		Value:  value,
	}
	if len(record) > 3 {
		entry.Comment = record[3]
	}
	return entry, nil
}
