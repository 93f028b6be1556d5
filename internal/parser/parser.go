package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/patchwaste/internal/redact"
)

const maxLineBytes = 16 * 1024 * 1024

var (
	entryKeywordRe = regexp.MustCompile(`(?i)^\s*(FILE|CHUNK|PACK)\s`)
	entryRe        = regexp.MustCompile(`(?i)^\s*(FILE|CHUNK|PACK)\s+(.+?)\s+new_bytes\s*=\s*(\S+)(?:\s+changed_content_bytes\s*=\s*(\S+))?\s*$`)

	offenderKeywordRe = regexp.MustCompile(`(?i)^\s*TOP_OFFENDER\b`)
	offenderRe        = regexp.MustCompile(`(?i)^\s*TOP_OFFENDER\s*=\s*(.+?)\s*:\s*(\S+)\s*$`)

	counterRe = regexp.MustCompile(`(?i)\b(PREDICTED_UPDATE_BYTES|CHANGED_CONTENT_BYTES)\s*=\s*(\S+)`)
	prettyRe  = regexp.MustCompile(`(?i)predicted update size\s*:\s*(\S+)\s*bytes`)
)

// outcome is the classifier's verdict for a single line.
type outcome int

const (
	outcomeBlank outcome = iota
	outcomeRecord
	outcomeCounter
	outcomeUnrecognized
	outcomeMalformed
)

type counterUpdate struct {
	predicted *uint64
	changed   *uint64
	// pretty counters only fill predicted when nothing set it before.
	pretty bool
}

type lineResult struct {
	outcome outcome
	record  ChangeRecord
	counter counterUpdate
	reason  string
}

// Parse parses log text already held in memory.
func Parse(text string, mode Mode) (BuildManifest, error) {
	return ParseReader(strings.NewReader(text), mode)
}

// ParseReader parses a log line by line. In ModeStrict the first
// unrecognized or malformed line aborts with a *ParseError; in
// ModeBestEffort such lines become warnings on the returned manifest.
// Secrets quoted from the log are redacted in both.
func ParseReader(r io.Reader, mode Mode) (BuildManifest, error) {
	m, err := ParseFragment(r, mode)
	if err != nil {
		return BuildManifest{}, err
	}
	if mode == ModeStrict && !m.HasCounters() {
		return BuildManifest{}, &ParseError{Kind: ErrorNoCounters}
	}
	return m, nil
}

// ParseFragment is ParseReader for one of several logs that are merged
// afterwards. It applies the same line rules but leaves the counter
// requirement to the caller.
func ParseFragment(r io.Reader, mode Mode) (BuildManifest, error) {
	if !mode.Valid() {
		return BuildManifest{}, fmt.Errorf("unknown parse mode %q", mode)
	}

	m := BuildManifest{Mode: mode}
	var declared Counters
	sawCounter := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		res := classify(line, lineNo)

		switch res.outcome {
		case outcomeBlank:
		case outcomeRecord:
			m.Records = append(m.Records, res.record)
		case outcomeCounter:
			sawCounter = true
			applyCounter(&declared, res.counter)
		case outcomeUnrecognized, outcomeMalformed:
			// Reasons quote log text, which may echo credentials.
			reason := redact.Secrets(res.reason)
			if res.outcome == outcomeUnrecognized {
				reason = fmt.Sprintf("unrecognized line %q", excerpt(redact.Secrets(line)))
			}
			if mode == ModeStrict {
				return BuildManifest{}, &ParseError{Kind: ErrorMalformed, Line: lineNo, Reason: reason}
			}
			m.Warnings = append(m.Warnings, fmt.Sprintf("line %d: %s", lineNo, reason))
		}
	}
	if err := sc.Err(); err != nil {
		return BuildManifest{}, fmt.Errorf("reading log after line %d: %w", lineNo, err)
	}

	if sawCounter {
		m.Declared = &declared
	}
	return m, nil
}

func applyCounter(dst *Counters, u counterUpdate) {
	if u.pretty {
		if dst.PredictedUpdateBytes == nil {
			dst.PredictedUpdateBytes = u.predicted
		}
		return
	}
	if u.predicted != nil {
		dst.PredictedUpdateBytes = u.predicted
	}
	if u.changed != nil {
		dst.ChangedContentBytes = u.changed
	}
}

// classify recognizes one line. It never consults the parse mode.
func classify(line string, lineNo int) lineResult {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return lineResult{outcome: outcomeBlank}
	}

	if entryKeywordRe.MatchString(line) {
		return classifyEntry(line, lineNo)
	}
	if offenderKeywordRe.MatchString(line) {
		return classifyOffender(line, lineNo)
	}
	if matches := counterRe.FindAllStringSubmatch(line, -1); matches != nil {
		var u counterUpdate
		for _, mt := range matches {
			n, err := parseCount(strings.TrimRight(mt[2], ",;"))
			if err != nil {
				return malformed("%s: %v", strings.ToUpper(mt[1]), err)
			}
			if strings.EqualFold(mt[1], "PREDICTED_UPDATE_BYTES") {
				u.predicted = &n
			} else {
				u.changed = &n
			}
		}
		return lineResult{outcome: outcomeCounter, counter: u}
	}
	if mt := prettyRe.FindStringSubmatch(line); mt != nil {
		n, err := parseCount(mt[1])
		if err != nil {
			return malformed("predicted update size: %v", err)
		}
		return lineResult{outcome: outcomeCounter, counter: counterUpdate{predicted: &n, pretty: true}}
	}
	return lineResult{outcome: outcomeUnrecognized}
}

func classifyEntry(line string, lineNo int) lineResult {
	mt := entryRe.FindStringSubmatch(line)
	if mt == nil {
		return malformed("entry line does not match \"<FILE|CHUNK|PACK> <path> new_bytes=<n> [changed_content_bytes=<n>]\"")
	}
	path := unquote(mt[2])
	if path == "" {
		return malformed("entry line has an empty path")
	}
	newBytes, err := parseCount(mt[3])
	if err != nil {
		return malformed("new_bytes for %s: %v", path, err)
	}

	rec := ChangeRecord{
		Path:     path,
		Kind:     entryKind(mt[1]),
		NewBytes: newBytes,
		Line:     lineNo,
	}
	if mt[4] == "" {
		rec.ChangedContentBytes = newBytes
		rec.Estimated = true
		return lineResult{outcome: outcomeRecord, record: rec}
	}
	changed, err := parseCount(mt[4])
	if err != nil {
		return malformed("changed_content_bytes for %s: %v", path, err)
	}
	if changed > newBytes {
		return malformed("changed_content_bytes %d exceeds new_bytes %d for %s", changed, newBytes, path)
	}
	rec.ChangedContentBytes = changed
	return lineResult{outcome: outcomeRecord, record: rec}
}

func classifyOffender(line string, lineNo int) lineResult {
	mt := offenderRe.FindStringSubmatch(line)
	if mt == nil {
		return malformed("TOP_OFFENDER line does not match \"TOP_OFFENDER = <path>: <bytes>\"")
	}
	path := unquote(mt[1])
	if path == "" {
		return malformed("TOP_OFFENDER line has an empty path")
	}
	n, err := parseCount(mt[2])
	if err != nil {
		return malformed("TOP_OFFENDER bytes for %s: %v", path, err)
	}
	return lineResult{outcome: outcomeRecord, record: ChangeRecord{
		Path:                path,
		Kind:                KindFile,
		NewBytes:            n,
		ChangedContentBytes: n,
		Estimated:           true,
		Line:                lineNo,
	}}
}

func entryKind(keyword string) Kind {
	switch strings.ToUpper(keyword) {
	case "CHUNK":
		return KindChunk
	case "PACK":
		return KindPackedContainer
	default:
		return KindFile
	}
}

// parseCount parses a non-negative byte count that may use "_" or ","
// as digit separators.
func parseCount(raw string) (uint64, error) {
	if raw == "" || raw[0] < '0' || raw[0] > '9' {
		return 0, fmt.Errorf("invalid byte count %q", raw)
	}
	clean := strings.NewReplacer("_", "", ",", "").Replace(raw)
	n, err := strconv.ParseUint(clean, 10, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, fmt.Errorf("byte count %q does not fit in 64 bits", raw)
		}
		return 0, fmt.Errorf("invalid byte count %q", raw)
	}
	return n, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func malformed(format string, args ...interface{}) lineResult {
	return lineResult{outcome: outcomeMalformed, reason: fmt.Sprintf(format, args...)}
}

func excerpt(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 80 {
		return line[:77] + "..."
	}
	return line
}
