package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/primis-cohort/internal/store"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored transform runs",
	}
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsExportCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := store.NewSQLiteStore(a.config.Store.Path, a.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetHeader([]string{"ID", "Created", "Evaluator", "Source", "In", "Filtered", "Out", "Products"})
			for _, r := range runs {
				tw.Append([]string{
					r.ID,
					r.CreatedAt.Format(time.RFC3339),
					r.Evaluator,
					r.Source,
					fmt.Sprint(r.RecordsIn),
					fmt.Sprint(r.Filtered),
					fmt.Sprint(r.RecordsOut),
					strings.Join(r.Products, ","),
				})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	return cmd
}

func runsExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run and its cohort as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := store.NewSQLiteStore(a.config.Store.Path, a.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			id := args[0]
			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				if output == "" {
					output = filepath.Join(a.config.Store.ExportDir, id+".json")
				}
				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return fmt.Errorf("failed to create directory: %w", err)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := repo.ExportJSON(cmd.Context(), id, w); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s\n", id, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default <store.export_dir>/<run-id>.json)")
	return cmd
}
