package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/internal/rules"
	"github.com/primis-cohort/internal/source"
	"github.com/primis-cohort/internal/store"
)

func transformCmd() *cobra.Command {
	var (
		input     string
		parquet   string
		evaluator string
		noStore   bool
	)

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Classify an extracted population",
		Long: `Reads extraction output from CSV, derives bands, group flags and priority
waves, stores the run in SQLite and optionally writes the cohort to parquet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if evaluator == "" {
				evaluator = "walk"
				if a.config.Pipeline.Bulk {
					evaluator = "bulk"
				}
			}
			if evaluator != "walk" && evaluator != "bulk" {
				return fmt.Errorf("unknown evaluator %q (want walk or bulk)", evaluator)
			}

			tr, err := a.transformer()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var src domain.RecordSource = source.NewCSVFile(input, a.logger).
				WithOptionalColumns(rules.ProductColumns(a.config.Vaccines.Products)...)
			records, err := src.Read(ctx)
			if err != nil {
				return err
			}

			var cohort *domain.Cohort
			if evaluator == "bulk" {
				cohort, err = tr.TransformBulk(ctx, records)
			} else {
				cohort, err = tr.Transform(ctx, records)
			}
			if err != nil {
				return err
			}

			run := &domain.Run{
				Source:    input,
				Evaluator: evaluator,
				Products:  a.config.Vaccines.Products,
				RecordsIn: len(records),
			}
			if !noStore {
				var repo domain.RunRepository
				repo, err = store.NewSQLiteStore(a.config.Store.Path, a.logger)
				if err != nil {
					return err
				}
				defer repo.Close()
				if err := repo.SaveRun(ctx, run, cohort); err != nil {
					return err
				}
			}

			if parquet != "" {
				if err := writeParquet(cmd, parquet, cohort); err != nil {
					return err
				}
				a.logger.WithFields(logrus.Fields{"file": parquet, "records": cohort.Len()}).Info("Wrote parquet")
			}

			printSummary(cmd, run, cohort)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "extraction output CSV")
	cmd.Flags().StringVar(&parquet, "parquet", "", "also write the cohort to this parquet file")
	cmd.Flags().StringVar(&evaluator, "evaluator", "", "walk or bulk (default from pipeline.bulk)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the run")
	cmd.MarkFlagRequired("input")
	return cmd
}

func writeParquet(cmd *cobra.Command, path string, cohort *domain.Cohort) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	pw, err := source.NewParquetWriter(path)
	if err != nil {
		return err
	}
	var w domain.CohortWriter = pw
	if err := w.WriteCohort(cmd.Context(), cohort); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func printSummary(cmd *cobra.Command, run *domain.Run, cohort *domain.Cohort) {
	out := cmd.OutOrStdout()
	if run.ID != "" {
		fmt.Fprintf(out, "Run %s\n", run.ID)
	}
	fmt.Fprintf(out, "Records in: %d, filtered: %d, classified: %d\n\n",
		run.RecordsIn, cohort.Filtered, cohort.Len())

	tw := tablewriter.NewWriter(out)
	tw.SetHeader([]string{"Group", "Selected"})
	counts := cohort.GroupCounts()
	for _, g := range cohort.Groups {
		tw.Append([]string{g, fmt.Sprint(counts[g])})
	}
	tw.Render()

	waves := cohort.WaveCounts()
	ids := make([]int, 0, len(waves))
	for w := range waves {
		ids = append(ids, w)
	}
	sort.Ints(ids)

	fmt.Fprintln(out)
	tw = tablewriter.NewWriter(out)
	tw.SetHeader([]string{"Wave", "Patients"})
	for _, w := range ids {
		tw.Append([]string{fmt.Sprint(w), fmt.Sprint(waves[w])})
	}
	tw.Render()
}
