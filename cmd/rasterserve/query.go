package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rasterq/rasterq/internal/footprint"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one GetData call against a sample raster and print its shape",
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addSampleRasterFlags(queryCmd)
	queryCmd.Flags().Float64("query-ox", 0, "query footprint origin X")
	queryCmd.Flags().Float64("query-oy", 0, "query footprint origin Y")
	queryCmd.Flags().Int("query-rows", 256, "query footprint height in pixels")
	queryCmd.Flags().Int("query-cols", 256, "query footprint width in pixels")
	queryCmd.Flags().Int("band", -1, "band index, -1 for every channel")
}

func runQuery(cmd *cobra.Command, args []string) error {
	opened, err := openSampleDataset(cmd)
	if err != nil {
		return err
	}
	defer opened.ds.Close()

	ox, _ := cmd.Flags().GetFloat64("query-ox")
	oy, _ := cmd.Flags().GetFloat64("query-oy")
	rows, _ := cmd.Flags().GetInt("query-rows")
	cols, _ := cmd.Flags().GetInt("query-cols")
	band, _ := cmd.Flags().GetInt("band")
	pixelSize, _ := cmd.Flags().GetFloat64("pixel-size")

	fp := footprint.New(ox, oy, pixelSize, -pixelSize, rows, cols)

	arr, err := opened.raster.GetData(fp, band)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	fmt.Printf("shape: rows=%d cols=%d bands=%d\n", arr.Rows, arr.Cols, arr.Bands)
	if len(arr.Data) > 0 {
		fmt.Printf("first pixel: %v\n", arr.Data[:arr.Bands])
	}
	return nil
}
