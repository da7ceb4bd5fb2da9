// Package source reads the batch of eMedical case identifiers an operator
// wants processed.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Header is the column title identifiers are listed under.
const Header = "eMedical No."

// Source yields identifiers in file order, duplicates included.
type Source interface {
	Extract(ctx context.Context) ([]string, error)
}

// Open picks a Source for path by extension: .xlsx and .xlsm are read as
// workbooks, anything else as one identifier per line. A leading ~ is expanded.
func Open(path string, logger *zap.Logger) (Source, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %s: %w", path, err)
	}
	if _, err := os.Stat(expanded); err != nil {
		return nil, fmt.Errorf("record source %s: %w", expanded, err)
	}

	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".xlsx", ".xlsm":
		return NewWorkbook(expanded, logger), nil
	default:
		return NewLines(expanded), nil
	}
}
