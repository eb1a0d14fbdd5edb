package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Ramsey-B/clover/pkg/formula"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newFormulasCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "formulas [prefix]",
		Short: "List the functions formulas can call",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := formula.Catalog()
			if len(args) == 1 {
				prefix := strings.ToUpper(args[0])
				catalog = lo.Filter(catalog, func(d formula.Definition, _ int) bool {
					return strings.HasPrefix(strings.ToUpper(d.Key), prefix)
				})
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), catalog)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FUNCTION\tRETURNS\tDESCRIPTION")
			for _, d := range catalog {
				fmt.Fprintf(w, "%s(%s)\t%s\t%s\n", d.Key, signature(d.InputRules), d.OutputType, d.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalogue as JSON")
	return cmd
}

func signature(rules models.InputRules) string {
	return strings.Join(lo.Map(rules, func(r models.InputRule, _ int) string {
		switch {
		case r.Variadic:
			return r.Name + "..."
		case r.Optional:
			return "[" + r.Name + "]"
		}
		return r.Name
	}), ", ")
}
