package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amiyaDev/perfguard/internal/rules"
)

func newRulesCmd() *cobra.Command {
	var group string
	var dumpYAML bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the built-in rule catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dumpYAML {
				_, err := cmd.OutOrStdout().Write(rules.BuiltinYAML())
				return err
			}

			all, err := rules.Builtin()
			if err != nil {
				return err
			}

			selected := all
			if group != "" {
				groups := rules.Groups(all)
				rs, ok := groups[group]
				if !ok {
					names := make([]string, 0, len(groups))
					for name := range groups {
						names = append(names, name)
					}
					sort.Strings(names)
					return fmt.Errorf("unknown group %q (known: %v)", group, names)
				}
				selected = rs
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tCATEGORY\tKIND\tTHRESHOLD")
			for _, r := range selected {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n", r.ID, r.BaseSeverity, r.Category, r.Kind(), r.ConfidenceThreshold)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "only list rules in this group (CRITICAL_ONLY, PERFORMANCE, UX, STABILITY, MEMORY, HINTS)")
	cmd.Flags().BoolVar(&dumpYAML, "yaml", false, "print the catalogue as YAML")

	return cmd
}
