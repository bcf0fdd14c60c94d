package rasterq

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
)

func openTestBackend(t *testing.T) *rasterio.FileBackend {
	t.Helper()
	backend, err := rasterio.NewFileBackend(rasterio.FileBackendConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	return backend
}

func TestGetDataRoundTripsThroughBackend(t *testing.T) {
	backend := openTestBackend(t)
	fp := footprint.New(0, 0, 1, -1, 4, 4)
	key := rasterio.CacheKey{RasterUID: "r1", TileIndex: 0}
	require.NoError(t, backend.Write(key, sample.Full(4, 4, 1, sample.DTypeUint8, 42)))

	d := New(zerolog.Nop(), cache.NewStore(8))
	defer d.Close()

	rh, err := d.OpenRaster(RasterConfig{
		UID: "r1", DType: sample.DTypeUint8, ChannelCount: 1,
		Footprint: fp, TileRows: 4, TileCols: 4, Backend: backend,
	})
	require.NoError(t, err)

	arr, err := rh.GetData(fp, -1)
	require.NoError(t, err)
	require.Equal(t, float64(42), arr.At(0, 0, 0))
}

func TestGetDataRejectsOutOfRangeBand(t *testing.T) {
	backend := openTestBackend(t)
	d := New(zerolog.Nop(), cache.NewStore(8))
	defer d.Close()

	rh, err := d.OpenRaster(RasterConfig{
		UID: "r1", DType: sample.DTypeUint8, ChannelCount: 1,
		Footprint: footprint.New(0, 0, 1, -1, 4, 4), TileRows: 4, TileCols: 4, Backend: backend,
	})
	require.NoError(t, err)

	_, err = rh.GetData(footprint.New(0, 0, 1, -1, 4, 4), 3)
	require.Error(t, err)
}

func TestOpenRasterRejectsDuplicateUID(t *testing.T) {
	backend := openTestBackend(t)
	d := New(zerolog.Nop(), cache.NewStore(8))
	defer d.Close()

	cfg := RasterConfig{
		UID: "r1", DType: sample.DTypeUint8, ChannelCount: 1,
		Footprint: footprint.New(0, 0, 1, -1, 4, 4), TileRows: 4, TileCols: 4, Backend: backend,
	}
	_, err := d.OpenRaster(cfg)
	require.NoError(t, err)

	_, err = d.OpenRaster(cfg)
	require.Error(t, err)
}

func TestIterDataCancel(t *testing.T) {
	backend := openTestBackend(t)
	fp := footprint.New(0, 0, 1, -1, 4, 4)
	d := New(zerolog.Nop(), cache.NewStore(8))
	defer d.Close()

	rh, err := d.OpenRaster(RasterConfig{
		UID: "r1", DType: sample.DTypeUint8, ChannelCount: 1,
		Footprint: fp, TileRows: 4, TileCols: 4, Backend: backend,
	})
	require.NoError(t, err)

	it, err := rh.IterData([]footprint.Footprint{fp}, -1, 2)
	require.NoError(t, err)
	it.Cancel()

	done := make(chan bool, 1)
	go func() {
		_, ok, _ := it.Next()
		done <- ok
	}()

	select {
	case ok := <-done:
		require.False(t, ok, "expected no further arrays after Cancel")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the iterator to close after Cancel")
	}
}
