package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
)

var evaluatorsCmd = &cobra.Command{
	Use:   "evaluators",
	Short: "List the available evaluators and their signatures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		infos := evaluator.Evaluators()

		out := cmd.OutOrStdout()
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCATEGORY\tSIGNATURES\tDESCRIPTION")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Category, strings.Join(info.Signatures, " "), info.Description)
		}
		return w.Flush()
	},
}

func init() {
	evaluatorsCmd.Flags().String("format", "text", "output format: text or json")
}
