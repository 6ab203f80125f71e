package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/primis-cohort/internal/source"
	"github.com/primis-cohort/internal/synth"
)

func synthCmd() *cobra.Command {
	seed := synth.DefaultSeedConfig()
	var output string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic extraction CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			seed.Products = a.config.Vaccines.Products
			gen := synth.NewDataGenerator(seed)
			dates, values := gen.Columns()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := source.WriteCSV(w, dates, values, gen.Generate()); err != nil {
				return err
			}
			a.logger.WithFields(logrus.Fields{
				"records": seed.Records,
				"seed":    seed.Seed,
				"output":  output,
			}).Info("Generated synthetic population")
			return nil
		},
	}

	cmd.Flags().IntVarP(&seed.Records, "records", "n", seed.Records, "number of patients")
	cmd.Flags().Int64Var(&seed.Seed, "seed", seed.Seed, "random seed")
	cmd.Flags().Float64Var(&seed.ProductRate, "product-rate", seed.ProductRate, "share of doses with a product-specific record")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
