package main

import (
	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr/pkg/types"
)

var evalCmd = &cobra.Command{
	Use:   "eval <query>",
	Short: "Evaluate one query and print its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		pairs, _ := cmd.Flags().GetStringArray("bind")

		bindings, err := parseBindings(pairs)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		node, err := rt.eval.Compile(args[0])
		if err != nil {
			return err
		}
		seq, err := rt.eval.ExecuteWithBindings(ctx, node, bindings)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		n := 0
		for r, err := range seq.Records() {
			if err != nil {
				return err
			}
			if err := writeRecords(out, []*types.Record{r}, format); err != nil {
				return err
			}
			n++
			if limit > 0 && n >= limit {
				break
			}
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().Int("limit", 0, "stop after this many records")
	evalCmd.Flags().String("format", "text", "output format: text or json")
	evalCmd.Flags().StringArray("bind", nil, "variable binding name=value, repeatable")
}
