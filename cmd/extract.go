// File: cmd/extract.go
package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/casework"
	"github.com/xkilldash9x/emedauto/internal/source"
)

// newExtractCmd lists the identifiers a run would process without logging in.
func newExtractCmd(state *app) *cobra.Command {
	var workbook string

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the eMedical numbers a run would process, with their country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := state.logger()
			ids, err := readRecords(cmd.Context(), workbook, logger)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			unknown := 0
			for _, id := range ids {
				country := casework.Classify(id)
				if country == casework.CountryUnknown {
					unknown++
				}
				fmt.Fprintf(tw, "%s\t%s\n", id, country)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			logger.Info("Extraction complete", zap.Int("records", len(ids)), zap.Int("unknown_country", unknown))
			return nil
		},
	}

	extractCmd.Flags().StringVarP(&workbook, "workbook", "w", "", "Excel workbook or text file listing eMedical numbers")
	_ = extractCmd.MarkFlagRequired("workbook")
	return extractCmd
}

func readRecords(ctx context.Context, path string, logger *zap.Logger) ([]string, error) {
	src, err := source.Open(path, logger)
	if err != nil {
		return nil, err
	}
	ids, err := src.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return ids, nil
}
