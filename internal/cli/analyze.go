package cli

import (
	"fmt"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/patchwaste/internal/analyze"
	"github.com/dshills/patchwaste/internal/buildmeta"
	"github.com/dshills/patchwaste/internal/output"
)

// Analyze flags
var (
	flagInput       string
	flagBaseline    string
	flagBudgetRatio string
	flagStrict      bool
	flagOut         string
	flagFormat      string
	flagSHA         string
	flagBranch      string
	flagBuildID     string
)

func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagInput, "input", "", "Preview log file or BuildOutput directory (required)")
	cmd.Flags().StringVar(&flagBaseline, "baseline", "", "Baseline report.json to compare against")
	cmd.Flags().StringVar(&flagBudgetRatio, "budget-ratio", "", "Fail when new_bytes exceeds baseline new_bytes times this ratio")
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "Reject malformed lines and estimated counters")
	cmd.Flags().StringVar(&flagOut, "out", "", "Directory for report artifacts")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Artifacts to write (json, junit, sarif, all)")
	cmd.Flags().StringVar(&flagSHA, "sha", "", "Commit SHA recorded in the report")
	cmd.Flags().StringVar(&flagBranch, "branch", "", "Branch recorded in the report")
	cmd.Flags().StringVar(&flagBuildID, "build-id", "", "CI build id recorded in the report")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagBudgetRatio != "" {
		m["budget_ratio"] = flagBudgetRatio
	}
	if flagStrict {
		m["strict"] = "true"
	}
	if flagOut != "" {
		m["out"] = flagOut
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	return m
}

func runAnalyze(cmd *cobra.Command) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	app, err := injectApp(Settings{
		ConfigPath: flagConfig,
		Overrides:  buildOverrides(),
		Debug:      debugEnabled(),
		LogOutput:  stderr,
	})
	if err != nil {
		fail(stderr, "%v", err)
		return
	}
	cfg := app.Config
	if cfg.Source != "" {
		app.Log.WithField("path", cfg.Source).Debug("loaded config")
	}

	opts := analyze.Options{
		Strict:        cfg.Strict,
		BaselinePath:  flagBaseline,
		BudgetRatio:   cfg.BudgetRatio,
		DepotBudgets:  cfg.DepotBudgets,
		MaxTotalBytes: cfg.MaxTotalBytesScanned,
		BuildMetadata: buildmeta.Resolve(".", buildmeta.Flags{
			SHA:     flagSHA,
			Branch:  flagBranch,
			BuildID: flagBuildID,
		}),
	}

	res, err := app.Analyzer.AnalyzePath(flagInput, opts)
	if err != nil {
		fail(stderr, "%v", err)
		return
	}

	written, err := output.WriteToDir(cfg.Out, &res.Report, cfg.Format)
	if err != nil {
		fail(stderr, "writing reports: %v", err)
		return
	}
	app.Log.WithFields(logger.Fields{"dir": cfg.Out, "files": written}).Debug("wrote reports")

	fmt.Fprintln(stdout, output.MachineLine(&res.Report))
	if err := (&output.TextWriter{}).Write(stderr, &res.Report); err != nil {
		fail(stderr, "writing summary: %v", err)
		return
	}

	exitCode = exitFor(res.Verdict)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a preview-patch log and write reports",
	Long: `Analyze parses a preview-patch log (or every .log/.txt file of a BuildOutput
directory), computes delta efficiency and waste, emits findings, and optionally
compares new_bytes against a baseline report under a budget ratio.

One machine-readable line goes to stdout; the human summary goes to stderr.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runAnalyze(cmd)
	},
}

func init() {
	addAnalyzeFlags(analyzeCmd)
	_ = analyzeCmd.MarkFlagRequired("input")
}
