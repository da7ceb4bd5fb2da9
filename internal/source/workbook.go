package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook reads identifiers from every sheet of an Excel workbook. Under
// each Header cell it collects the non-empty cells of that column that use a
// black font and carry no fill; highlighted rows are how operators mark cases
// to leave alone.
type Workbook struct {
	path   string
	logger *zap.Logger
}

// NewWorkbook creates a Workbook source.
func NewWorkbook(path string, logger *zap.Logger) *Workbook {
	return &Workbook{path: path, logger: logger.Named("source").With(zap.String("path", path))}
}

type headerCell struct {
	row, col int
}

// Extract implements Source.
func (w *Workbook) Extract(ctx context.Context) ([]string, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("error reading workbook %s: %w", w.path, err)
	}
	defer f.Close()

	styles := newStyleCache(f)
	var ids []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("error reading sheet %q: %w", sheet, err)
		}

		headers := findHeaders(rows)
		if len(headers) == 0 {
			w.logger.Warn("'eMedical No.' field not found in sheet", zap.String("sheet", sheet))
			continue
		}

		for _, h := range headers {
			for r := h.row + 1; r < len(rows); r++ {
				if h.col >= len(rows[r]) {
					continue
				}
				value := strings.TrimSpace(rows[r][h.col])
				if value == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(h.col+1, r+1)
				if err != nil {
					return nil, err
				}
				plain, err := styles.plain(sheet, cell)
				if err != nil {
					return nil, fmt.Errorf("error reading style of %s!%s: %w", sheet, cell, err)
				}
				if !plain {
					w.logger.Debug("Skipping highlighted cell", zap.String("sheet", sheet), zap.String("cell", cell), zap.String("value", value))
					continue
				}
				ids = append(ids, value)
			}
		}
	}

	if len(ids) == 0 {
		w.logger.Warn("No valid eMedical No. read")
	}
	return ids, nil
}

func findHeaders(rows [][]string) []headerCell {
	var out []headerCell
	for r, row := range rows {
		for c, v := range row {
			if strings.TrimSpace(v) == Header {
				out = append(out, headerCell{row: r, col: c})
			}
		}
	}
	return out
}

// styleCache memoizes the plain/highlighted decision per style index.
type styleCache struct {
	f     *excelize.File
	known map[int]bool
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, known: make(map[int]bool)}
}

func (s *styleCache) plain(sheet, cell string) (bool, error) {
	idx, err := s.f.GetCellStyle(sheet, cell)
	if err != nil {
		return false, err
	}
	if v, ok := s.known[idx]; ok {
		return v, nil
	}
	style, err := s.f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	v := isBlackFont(style.Font) && isUnfilled(style.Fill)
	s.known[idx] = v
	return v, nil
}

// isBlackFont accepts the default font, explicit black and the dark text theme color.
func isBlackFont(font *excelize.Font) bool {
	if font == nil {
		return true
	}
	switch strings.ToUpper(font.Color) {
	case "000000", "FF000000":
		return true
	case "":
		if font.ColorTheme != nil {
			return *font.ColorTheme == 1
		}
		// 8 is black in the legacy palette, 0 means no index was set.
		return font.ColorIndexed == 0 || font.ColorIndexed == 8
	default:
		return false
	}
}

func isUnfilled(fill excelize.Fill) bool {
	if fill.Type == "" || fill.Pattern == 0 {
		return true
	}
	for _, c := range fill.Color {
		switch strings.ToUpper(c) {
		case "", "00000000", "FFFFFFFF", "FFFFFF":
		default:
			return false
		}
	}
	return true
}
