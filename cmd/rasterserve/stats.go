package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rasterq/rasterq/internal/footprint"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Stream a footprint grid through IterData and report the resulting tile/byte counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addSampleRasterFlags(statsCmd)
	statsCmd.Flags().Int("tile-count", 4, "number of adjacent production tiles to request, left to right")
	statsCmd.Flags().Int("stats-max-queue-size", 2, "max in-flight production tiles for this command's own query")
}

func runStats(cmd *cobra.Command, args []string) error {
	opened, err := openSampleDataset(cmd)
	if err != nil {
		return err
	}
	defer opened.ds.Close()

	tileCount, _ := cmd.Flags().GetInt("tile-count")
	maxQueueSize, _ := cmd.Flags().GetInt("stats-max-queue-size")
	tileRows, _ := cmd.Flags().GetInt("tile-rows")
	tileCols, _ := cmd.Flags().GetInt("tile-cols")
	pixelSize, _ := cmd.Flags().GetFloat64("pixel-size")
	originX, _ := cmd.Flags().GetFloat64("origin-x")
	originY, _ := cmd.Flags().GetFloat64("origin-y")

	fps := make([]footprint.Footprint, tileCount)
	for i := range fps {
		ox := originX + float64(i*tileCols)*pixelSize
		fps[i] = footprint.New(ox, originY, pixelSize, -pixelSize, tileRows, tileCols)
	}

	it, err := opened.raster.IterData(fps, -1, maxQueueSize)
	if err != nil {
		return fmt.Errorf("stats: starting iterator: %w", err)
	}

	for {
		_, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		if !ok {
			break
		}
	}

	snap := opened.ds.Stats().Snapshot()
	return json.NewEncoder(os.Stdout).Encode(snap)
}
