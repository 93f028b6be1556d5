package output

import (
	"fmt"
	"io"

	"github.com/dshills/patchwaste/internal/report"
)

// JSONWriter outputs the full report as JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, r *report.Report) error {
	data, err := report.Marshal(*r)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
