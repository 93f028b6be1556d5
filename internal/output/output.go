package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/patchwaste/internal/report"
)

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, r *report.Report) error
}

// Artifact selections accepted by --format.
const (
	FormatJSON  = "json"
	FormatJUnit = "junit"
	FormatSARIF = "sarif"
	FormatAll   = "all"
)

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "junit":
		return &JUnitWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type artifact struct {
	name   string
	format string
}

// Artifacts returns the file names written for an artifact selection.
func Artifacts(selection string) ([]string, error) {
	as, err := artifactsFor(selection)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.name
	}
	return names, nil
}

func artifactsFor(selection string) ([]artifact, error) {
	jsonMD := []artifact{{"report.json", "json"}, {"report.md", "markdown"}}
	junit := artifact{"report.xml", "junit"}
	sarif := artifact{"report.sarif", "sarif"}
	switch selection {
	case FormatJSON, "":
		return jsonMD, nil
	case FormatJUnit:
		return []artifact{junit}, nil
	case FormatSARIF:
		return []artifact{sarif}, nil
	case FormatAll:
		return append(jsonMD, junit, sarif), nil
	default:
		return nil, fmt.Errorf("unsupported --format %q (want json, junit, sarif or all)", selection)
	}
}

// WriteToDir writes the artifacts for selection into dir, creating it if
// needed, and returns the written paths.
func WriteToDir(dir string, r *report.Report, selection string) ([]string, error) {
	as, err := artifactsFor(selection)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	var written []string
	for _, a := range as {
		path := filepath.Join(dir, a.name)
		if err := WriteReport(r, a.format, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteReport writes the report to the specified output (file path or stdout).
// A file that fails to close is reported, since its contents may be lost.
func WriteReport(r *report.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}
	if outPath == "" {
		return writer.Write(os.Stdout, r)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writer.Write(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outPath, err)
	}
	return nil
}

// MachineLine is the single stdout line scripts parse.
func MachineLine(r *report.Report) string {
	return fmt.Sprintf("new_bytes=%d changed_content_bytes=%d waste_ratio=%.3f",
		r.Metrics.NewBytes, r.Metrics.ChangedContentBytes, r.Metrics.WasteRatio)
}
