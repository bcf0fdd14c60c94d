package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/metrics"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
	"github.com/rasterq/rasterq/rasterq"
)

// addSampleRasterFlags registers the flags every subcommand that opens a
// raster shares: the sample raster this binary demonstrates the scheduler
// against is described entirely on the command line, since ingesting a
// real GeoTIFF/COG source is out of scope here (internal/rasterio.Backend
// is the interface a production deployment would implement against its
// own source format).
func addSampleRasterFlags(cmd *cobra.Command) {
	cmd.Flags().String("uid", "sample", "raster identity")
	cmd.Flags().String("dtype", "float64", "raster dtype: uint8, uint16, float32, float64")
	cmd.Flags().Int("channels", 1, "channel count")
	cmd.Flags().Float64("origin-x", 0, "footprint origin X")
	cmd.Flags().Float64("origin-y", 0, "footprint origin Y")
	cmd.Flags().Float64("pixel-size", 1, "pixel size (Y is negated, north-up)")
	cmd.Flags().Int("rows", 1024, "raster height in pixels")
	cmd.Flags().Int("cols", 1024, "raster width in pixels")
	cmd.Flags().Int("tile-rows", 256, "cache tile height in pixels")
	cmd.Flags().Int("tile-cols", 256, "cache tile width in pixels")
	cmd.Flags().Float64("dst-nodata", -9999, "fill value for pixels outside the raster's footprint")
}

type openedDataset struct {
	ds     *rasterq.Dataset
	raster *rasterq.Raster
}

// openSampleDataset builds a Dataset from cfg, opens one non-recipe raster
// described by cmd's sample-raster flags backed directly by a FileBackend
// rooted at cfg.CacheDir (spec.md §3: a non-recipe raster's cache tiles
// are its source data), and wires metrics/stats reporting.
func openSampleDataset(cmd *cobra.Command) (*openedDataset, error) {
	backend, err := rasterio.NewFileBackend(rasterio.FileBackendConfig{Dir: cfg.CacheDir, Format: cfg.CacheFormat})
	if err != nil {
		return nil, fmt.Errorf("opening cache backend: %w", err)
	}

	uid, _ := cmd.Flags().GetString("uid")
	dtypeStr, _ := cmd.Flags().GetString("dtype")
	channels, _ := cmd.Flags().GetInt("channels")
	originX, _ := cmd.Flags().GetFloat64("origin-x")
	originY, _ := cmd.Flags().GetFloat64("origin-y")
	pixelSize, _ := cmd.Flags().GetFloat64("pixel-size")
	rows, _ := cmd.Flags().GetInt("rows")
	cols, _ := cmd.Flags().GetInt("cols")
	tileRows, _ := cmd.Flags().GetInt("tile-rows")
	tileCols, _ := cmd.Flags().GetInt("tile-cols")
	dstNoData, _ := cmd.Flags().GetFloat64("dst-nodata")

	dtype, err := sample.ParseDType(dtypeStr)
	if err != nil {
		return nil, err
	}

	fp := footprint.New(originX, originY, pixelSize, -pixelSize, rows, cols)

	store := cache.NewStore(cfg.HotCacheSize)
	if cfg.StateDBPath != "" {
		if err := store.OpenPersistence(cfg.StateDBPath); err != nil {
			return nil, fmt.Errorf("opening cache state db: %w", err)
		}
	}
	ds := rasterq.New(logger, store)

	reg := metrics.NewRegistry()
	ds.SetMetrics(reg)
	ds.SetStats(query.NewStats())

	ioPool := poolroom.NewThreadPool(cfg.IOWorkers)
	resamplePool := poolroom.NewThreadPool(cfg.ResampleWorkers)

	r, err := ds.OpenRaster(rasterq.RasterConfig{
		UID:          uid,
		DType:        dtype,
		ChannelCount: channels,
		Footprint:    fp,
		TileRows:     tileRows,
		TileCols:     tileCols,
		Backend:      backend,
		IOPool:       ioPool,
		ResamplePool: resamplePool,
		DstNoData:    dstNoData,
	})
	if err != nil {
		_ = ds.Close()
		return nil, fmt.Errorf("opening raster %q: %w", uid, err)
	}

	return &openedDataset{ds: ds, raster: r}, nil
}
