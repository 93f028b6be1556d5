package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/patchwaste/internal/baseline"
	"github.com/dshills/patchwaste/internal/report"
)

const version = "0.3.0"

// Exit codes.
const (
	ExitPass  = 0
	ExitError = 1
	ExitFail  = 2
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "patchwaste",
	Short: "Preview-patch waste analyzer",
	Long: `patchwaste reads the preview-patch log of a game build, measures how many
of the bytes players would download carry changed content, explains the waste
and gates CI on a byte budget relative to a baseline report.`,
	SilenceUsage: true,
}

// Run executes the root command and returns an exit code.
func Run() int {
	exitCode = ExitPass
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitPass

func exitFor(v baseline.Verdict) int {
	switch v {
	case baseline.VerdictFail:
		return ExitFail
	case baseline.VerdictError:
		return ExitError
	default:
		return ExitPass
	}
}

// debugEnabled reports whether -v or PATCHWASTE_DEBUG asked for debug logs.
func debugEnabled() bool {
	if flagVerbose {
		return true
	}
	v, err := strconv.ParseBool(os.Getenv("PATCHWASTE_DEBUG"))
	return err == nil && v
}

func fail(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
	exitCode = ExitError
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print patchwaste version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "patchwaste version %s (report schema %s)\n", version, report.ReportVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default: ./patchwaste.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
