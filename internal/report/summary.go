package report

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/emedauto/internal/casework"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// openOutput returns stdout for "" or "-", otherwise creates the file at path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}

// WriteSummary encodes s as indented JSON to path. An empty path or "-"
// writes to stdout.
func WriteSummary(path string, s casework.Summary) error {
	w, err := openOutput(path)
	if err != nil {
		return err
	}
	if err := EncodeSummary(w, s); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// EncodeSummary writes s as indented JSON followed by a newline.
func EncodeSummary(w io.Writer, s casework.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}
