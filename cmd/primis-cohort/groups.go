package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func groupsCmd() *cobra.Command {
	var showRows bool

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List the groups in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			set, err := a.loader.Load(a.config.Vaccines.Products)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if showRows {
				for _, t := range set.Order() {
					fmt.Fprintf(out, "%s\n\n", t)
				}
				return nil
			}

			tw := tablewriter.NewWriter(out)
			tw.SetHeader([]string{"#", "Group", "Description", "Depends on", "Formula"})
			tw.SetAutoWrapText(false)
			for i, t := range set.Order() {
				tw.Append([]string{
					fmt.Sprint(i + 1),
					t.Name(),
					t.Description(),
					strings.Join(set.Dependencies(t.Name()), ", "),
					t.Formula().String(),
				})
			}
			tw.Render()
			fmt.Fprintf(out, "\nVaccine products: %s\n", strings.Join(a.config.Vaccines.Products, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showRows, "rows", false, "print every decision table row")
	return cmd
}
