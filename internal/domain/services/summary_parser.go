package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

const (
	sectionPrefix    = "## "
	headerPrefix     = "## Contig_id"
	categoryDelim    = " -"
	maxSummaryLineKB = 1024
)

// SummaryParser reads the global phage signal CSV produced by VirSorter
type SummaryParser struct{}

// NewSummaryParser creates a new summary parser
func NewSummaryParser() *SummaryParser {
	return &SummaryParser{}
}

// ParseFile parses the summary file at path
func (p *SummaryParser) ParseFile(path string) ([]*entities.SummaryRecord, error) {
	//nolint:gosec // G304: path is the tool's output file inside the run directory
	f, err := os.Open(path)
	if err != nil {
		return nil, &entities.MalformedSummaryError{Path: path, Reason: "cannot open file", Err: err}
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	records, err := p.Parse(f)
	if err != nil {
		var malformed *entities.MalformedSummaryError
		if errors.As(err, &malformed) {
			malformed.Path = path
		}
		return nil, err
	}
	return records, nil
}

// Parse reads summary records from r.
// Rows are grouped under the most recent "## " section marker and keep file order.
func (p *SummaryParser) Parse(r io.Reader) ([]*entities.SummaryRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSummaryLineKB*1024)

	var records []*entities.SummaryRecord
	seen := make(map[string]int)
	category := ""
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, headerPrefix):
			continue
		case strings.HasPrefix(line, sectionPrefix):
			category = parseCategory(line)
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < len(entities.SummarySchema) {
			return nil, &entities.MalformedSummaryError{
				Line:   lineNo,
				Reason: fmt.Sprintf("expected %d fields, got %d: %q", len(entities.SummarySchema), len(fields), line),
			}
		}

		id := strings.TrimSpace(fields[0])
		if id == "" {
			return nil, &entities.MalformedSummaryError{Line: lineNo, Reason: "empty contig identifier"}
		}
		if first, dup := seen[id]; dup {
			return nil, &entities.MalformedSummaryError{
				Line:   lineNo,
				Reason: fmt.Sprintf("duplicate contig identifier %q (first seen on line %d)", id, first),
			}
		}
		seen[id] = lineNo

		values := make([]string, len(entities.SummarySchema))
		for i := range values {
			values[i] = strings.TrimSpace(fields[i])
		}

		records = append(records, &entities.SummaryRecord{
			ID:       id,
			Category: category,
			Fields:   values,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, &entities.MalformedSummaryError{Line: lineNo + 1, Reason: "read failed", Err: err}
	}

	return records, nil
}

// parseCategory extracts the section name between "## " and the next " -"
func parseCategory(line string) string {
	name := strings.TrimPrefix(line, sectionPrefix)
	if idx := strings.Index(name, categoryDelim); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}
