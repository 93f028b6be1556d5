package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/patchwaste/internal/config"
	"github.com/dshills/patchwaste/internal/findings"
)

var flagRulesJSON bool

type ruleRow struct {
	findings.RuleInfo
	Enabled bool `json:"enabled"`
}

func ruleRows(disabled []string) []ruleRow {
	off := make(map[string]bool, len(disabled))
	for _, c := range disabled {
		off[c] = true
	}
	var rows []ruleRow
	for _, r := range findings.Catalog() {
		rows = append(rows, ruleRow{RuleInfo: r, Enabled: !off[r.Code]})
	}
	return rows
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the finding rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			return err
		}
		rows := ruleRows(cfg.DisabledRules)

		w := cmd.OutOrStdout()
		if flagRulesJSON {
			data, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
			return nil
		}
		for _, r := range rows {
			state := ""
			if !r.Enabled {
				state = " (disabled)"
			}
			fmt.Fprintf(w, "%-24s %s%s\n", r.Code, r.Description, state)
		}
		return nil
	},
}

func init() {
	rulesCmd.Flags().BoolVar(&flagRulesJSON, "json", false, "Print rules as JSON")
}
