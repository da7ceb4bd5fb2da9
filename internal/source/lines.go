package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Lines reads identifiers from the first column of a plain text or CSV file.
// Blank lines, '#' comments and a Header line are skipped.
type Lines struct {
	path string
}

// NewLines creates a Lines source.
func NewLines(path string) *Lines {
	return &Lines{path: path}
}

// Extract implements Source.
func (l *Lines) Extract(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", l.path, err)
	}
	defer f.Close()
	return parseLines(f)
}

func parseLines(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var ids []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing record list: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff"))
		if id == "" || id == Header {
			continue
		}
		ids = append(ids, id)
	}
}
