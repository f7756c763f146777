package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [query...]",
	Short: "Check that queries compile and datasets match their schema",
	Long: `Parses and binds every query argument without running it. With --data,
also validates dataset files against the configured JSON schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("data")
		if len(args) == 0 && len(files) == 0 {
			return errors.New("nothing to validate")
		}

		out := cmd.OutOrStdout()
		failed := 0

		ev := evaluator.New()
		for _, q := range args {
			if _, err := ev.Compile(q); err != nil {
				failed++
				fmt.Fprintf(out, "FAIL\t%s\t%v\n", q, err)
				continue
			}
			fmt.Fprintf(out, "OK\t%s\n", q)
		}

		if len(files) > 0 {
			ds, err := datasetLoader(cfg)
			if err != nil {
				return err
			}
			for _, path := range files {
				records, err := ds.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL\t%s\t%v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "OK\t%s\t%d records\n", path, len(records))
			}
		}

		if failed > 0 {
			return errors.Errorf("%d checks failed", failed)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringArray("data", nil, "dataset file to validate, repeatable")
}
