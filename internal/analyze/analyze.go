package analyze

import (
	"fmt"
	"io"
	"os"

	logger "github.com/sirupsen/logrus"

	"github.com/dshills/patchwaste/internal/baseline"
	"github.com/dshills/patchwaste/internal/buildoutput"
	"github.com/dshills/patchwaste/internal/findings"
	"github.com/dshills/patchwaste/internal/metrics"
	"github.com/dshills/patchwaste/internal/parser"
	"github.com/dshills/patchwaste/internal/report"
)

// Options controls one analysis run.
type Options struct {
	Strict bool
	// BaselinePath is read when Baseline is nil. Empty means no baseline.
	BaselinePath string
	Baseline     *report.Partial
	BudgetRatio  *float64
	DepotBudgets map[string]float64
	// MaxTotalBytes caps directory scans; zero uses the default.
	MaxTotalBytes int64
	BuildMetadata *report.BuildMetadata
}

// Result is a finished run.
type Result struct {
	Report  report.Report
	Verdict baseline.Verdict
	GateErr *baseline.GateError
}

// Analyzer holds the collaborators of the pipeline. It keeps no per-run
// state and may be shared.
type Analyzer struct {
	engine *findings.Engine
	log    logger.FieldLogger
}

// New returns an analyzer. A nil engine evaluates every rule; a nil log
// discards output.
func New(engine *findings.Engine, log logger.FieldLogger) *Analyzer {
	if engine == nil {
		engine, _ = findings.NewEngine(nil)
	}
	if log == nil {
		l := logger.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Analyzer{engine: engine, log: log}
}

// AnalyzeText analyzes log text that is already in memory.
func (a *Analyzer) AnalyzeText(inputPath, text string, opts Options) (Result, error) {
	m, err := parser.Parse(text, parser.ModeFor(opts.Strict))
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", inputPath, err)
	}
	return a.run(inputPath, m, nil, nil, opts)
}

// AnalyzePath analyzes a single log file or a BuildOutput directory.
func (a *Analyzer) AnalyzePath(path string, opts Options) (Result, error) {
	scanner := &buildoutput.Scanner{MaxTotalBytes: opts.MaxTotalBytes, Log: a.log}
	sources, err := scanner.Scan(path)
	if err != nil {
		return Result{}, err
	}
	loaded, err := buildoutput.Load(sources, parser.ModeFor(opts.Strict))
	if err != nil {
		return Result{}, err
	}
	a.log.WithFields(logger.Fields{
		"sources": len(sources),
		"records": len(loaded.Manifest.Records),
		"depots":  len(loaded.Depots),
	}).Debug("parsed build output")

	srcs := make([]report.Source, len(sources))
	for i, s := range sources {
		srcs[i] = report.Source{Path: s.Path, Depot: s.Depot, Bytes: s.Size}
	}
	return a.run(path, loaded.Manifest, loaded.Depots, srcs, opts)
}

func (a *Analyzer) run(inputPath string, m parser.BuildManifest, depots map[string]parser.BuildManifest, sources []report.Source, opts Options) (Result, error) {
	snap, err := metrics.Compute(m)
	if err != nil {
		return Result{}, fmt.Errorf("computing metrics: %w", err)
	}
	perDepot, err := metrics.ComputeByDepot(depots)
	if err != nil {
		return Result{}, fmt.Errorf("computing depot metrics: %w", err)
	}
	for _, w := range m.Warnings {
		a.log.Warn(w)
	}

	fs := a.engine.Evaluate(m, snap)
	a.log.WithFields(logger.Fields{
		"new_bytes":   snap.NewBytes,
		"waste_ratio": snap.WasteRatio,
		"confidence":  snap.Confidence.Overall,
		"findings":    len(fs),
	}).Debug("computed metrics")

	r := report.New(report.Input{
		InputPath:     inputPath,
		Manifest:      m,
		Metrics:       snap,
		Findings:      fs,
		Sources:       sources,
		DepotMetrics:  perDepot,
		BuildMetadata: opts.BuildMetadata,
	})

	budget := baseline.Budget{
		Ratio:                 opts.BudgetRatio,
		Depots:                opts.DepotBudgets,
		RequireHighConfidence: opts.Strict,
	}
	base, gerr := a.loadBaseline(opts)
	var outcome baseline.Outcome
	if gerr != nil {
		outcome = baseline.Outcome{Verdict: baseline.VerdictError, Reason: gerr.Error(), Err: gerr}
	} else {
		outcome = baseline.Evaluate(r, base, budget)
	}
	if outcome.Err != nil {
		a.log.WithField("kind", outcome.Err.Kind).Warn(outcome.Err.Error())
	}

	return Result{
		Report:  baseline.Attach(r, outcome, opts.BaselinePath, budget),
		Verdict: outcome.Verdict,
		GateErr: outcome.Err,
	}, nil
}

func (a *Analyzer) loadBaseline(opts Options) (*report.Partial, *baseline.GateError) {
	if opts.Baseline != nil {
		return opts.Baseline, nil
	}
	if opts.BaselinePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(opts.BaselinePath)
	if err != nil {
		return nil, baseline.MalformedBaseline(opts.BaselinePath, err)
	}
	p, err := report.ParsePartial(data)
	if err != nil {
		return nil, baseline.MalformedBaseline(opts.BaselinePath, err)
	}
	a.log.WithField("path", opts.BaselinePath).Debug("loaded baseline")
	return &p, nil
}
