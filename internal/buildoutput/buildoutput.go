package buildoutput

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/dshills/patchwaste/internal/parser"
)

// DefaultMaxTotalBytes caps how many log bytes a directory scan reads.
const DefaultMaxTotalBytes int64 = 50 * 1024 * 1024

var depotIDRe = regexp.MustCompile(`\d{5,}`)

// Source is one log file selected for analysis.
type Source struct {
	Path  string
	Depot string
	Size  int64
}

// Scanner walks BuildOutput directories.
type Scanner struct {
	MaxTotalBytes int64
	Log           logger.FieldLogger
}

// Scan lists the log sources under root using a default scanner.
func Scan(root string, maxTotalBytes int64) ([]Source, error) {
	return (&Scanner{MaxTotalBytes: maxTotalBytes}).Scan(root)
}

// Scan returns root itself when it is a file. A directory is walked for
// *.log and *.txt files in lexical order; the walk stops before the
// cumulative size would exceed the byte cap. Symlinks are not followed.
func (s *Scanner) Scan(root string) ([]Source, error) {
	log := s.logger()
	limit := s.MaxTotalBytes
	if limit <= 0 {
		limit = DefaultMaxTotalBytes
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if !info.IsDir() {
		if info.Size() > limit {
			return nil, fmt.Errorf("input %s is %d bytes, over the %d byte scan limit", root, info.Size(), limit)
		}
		return []Source{{Path: root, Depot: DepotID(root), Size: info.Size()}}, nil
	}

	var (
		sources []Source
		total   int64
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || !isLogFile(path) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if total+fi.Size() > limit {
			log.WithFields(logger.Fields{"path": path, "scanned_bytes": total, "limit": limit}).
				Warn("byte cap reached; remaining logs are not scanned")
			return fs.SkipAll
		}
		total += fi.Size()
		src := Source{Path: path, Depot: DepotID(path), Size: fi.Size()}
		log.WithFields(logger.Fields{"path": path, "depot": src.Depot, "bytes": src.Size}).Debug("selected log")
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no .log or .txt files found under %s", root)
	}
	return sources, nil
}

func (s *Scanner) logger() logger.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	l := logger.New()
	l.SetOutput(io.Discard)
	return l
}

func isLogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".txt":
		return true
	}
	return false
}

// DepotID returns the first run of five or more digits in the file stem,
// falling back to the parent directory name, or "" when neither has one.
func DepotID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if id := depotIDRe.FindString(stem); id != "" {
		return id
	}
	return depotIDRe.FindString(filepath.Base(filepath.Dir(path)))
}

// Loaded is the result of parsing every source.
type Loaded struct {
	Manifest parser.BuildManifest
	Depots   map[string]parser.BuildManifest
}

// Load parses each source and merges the manifests. Warnings are prefixed
// with the path of the log they came from. Strict mode requires counters
// across the whole set rather than in every file.
func Load(sources []Source, mode parser.Mode) (Loaded, error) {
	all := make([]parser.BuildManifest, 0, len(sources))
	byDepot := map[string][]parser.BuildManifest{}
	for _, src := range sources {
		m, err := parseFile(src.Path, mode)
		if err != nil {
			return Loaded{}, fmt.Errorf("%s: %w", src.Path, err)
		}
		for i, w := range m.Warnings {
			m.Warnings[i] = src.Path + ": " + w
		}
		all = append(all, m)
		if src.Depot != "" {
			byDepot[src.Depot] = append(byDepot[src.Depot], m)
		}
	}

	merged, err := parser.Merge(all...)
	if err != nil {
		return Loaded{}, err
	}
	merged.Mode = mode
	if mode == parser.ModeStrict && !merged.HasCounters() {
		return Loaded{}, &parser.ParseError{Kind: parser.ErrorNoCounters}
	}

	out := Loaded{Manifest: merged}
	if len(byDepot) > 0 {
		ids := make([]string, 0, len(byDepot))
		for id := range byDepot {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out.Depots = make(map[string]parser.BuildManifest, len(ids))
		for _, id := range ids {
			dm, err := parser.Merge(byDepot[id]...)
			if err != nil {
				return Loaded{}, fmt.Errorf("depot %s: %w", id, err)
			}
			dm.Mode = mode
			out.Depots[id] = dm
		}
	}
	return out, nil
}

func parseFile(path string, mode parser.Mode) (parser.BuildManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return parser.BuildManifest{}, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	return parser.ParseFragment(f, mode)
}
