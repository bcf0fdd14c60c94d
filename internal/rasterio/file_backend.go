package rasterio

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gen2brain/webp"

	"github.com/rasterq/rasterq/internal/sample"
)

// persisted is the on-disk encoding of a raw cache tile: gob'd header plus
// row-major float64 pixel data. Grounded in the teacher's pmtiles directory
// format (a small typed header followed by payload), generalized from a
// binary struct layout to gob for the arbitrary (rows,cols,bands,dtype)
// shape a recipe raster's dtype can take.
type persisted struct {
	Rows, Cols, Bands int
	DType             sample.DType
	Data              []float64
}

// FileBackendConfig configures a local-filesystem cache-tile backend.
type FileBackendConfig struct {
	// Dir is the root directory cache tiles are stored under.
	Dir string
	// Format is recorded via DriverName/OpenOptions for diagnostics; tiles
	// are always written "raw". Reads transparently accept WebP-encoded
	// tiles regardless of this setting (see decodeTile).
	Format string
}

// FileBackend is a local-filesystem Backend. Writes go to a temp file in the
// same directory followed by an atomic rename, mirroring the teacher's
// pmtiles.Writer temp-file discipline so a crash mid-write never leaves a
// torn cache file for a subsequent `ready` read to observe.
type FileBackend struct {
	dir    string
	format string
}

// NewFileBackend creates (if needed) cfg.Dir and returns a backend rooted there.
func NewFileBackend(cfg FileBackendConfig) (*FileBackend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("rasterio: empty cache directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("rasterio: creating cache dir: %w", err)
	}
	format := cfg.Format
	if format == "" {
		format = "raw"
	}
	return &FileBackend{dir: cfg.Dir, format: format}, nil
}

func (b *FileBackend) pathFor(key CacheKey) string {
	return filepath.Join(b.dir, fmt.Sprintf("%016x.tile", key.Hash()))
}

// Write persists arr as the full cache tile for key. Tiles are always
// written in the "raw" gob encoding: the pack's only attested use of
// gen2brain/webp is decoding (see internal/encode/decode.go in the
// teacher), so this backend only reads WebP, never produces it — see
// DESIGN.md.
func (b *FileBackend) Write(key CacheKey, arr *sample.Array) error {
	path := b.pathFor(key)
	tmp, err := os.CreateTemp(b.dir, "rasterq-tile-*.tmp")
	if err != nil {
		return fmt.Errorf("rasterio: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	writeErr := gob.NewEncoder(tmp).Encode(persisted{
		Rows: arr.Rows, Cols: arr.Cols, Bands: arr.Bands, DType: arr.DType, Data: arr.Data,
	})
	closeErr := tmp.Close()
	if writeErr != nil {
		return fmt.Errorf("rasterio: encoding tile: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("rasterio: closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rasterio: finalizing tile: %w", err)
	}
	return nil
}

// Read opens the cache file for key and extracts the sub-array covering win.
func (b *FileBackend) Read(key CacheKey, win Window) (*sample.Array, error) {
	path := b.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rasterio: reading %s: %w", path, err)
	}

	full, err := decodeTile(data)
	if err != nil {
		return nil, fmt.Errorf("rasterio: decoding %s: %w", path, err)
	}

	r0, r1 := win.Rows.Start, win.Rows.Stop
	c0, c1 := win.Cols.Start, win.Cols.Stop
	if r0 < 0 || c0 < 0 || r1 > full.Rows || c1 > full.Cols {
		return nil, fmt.Errorf("rasterio: window %+v out of bounds for tile shape (%d,%d)", win, full.Rows, full.Cols)
	}
	return full.Slice(r0, r1, c0, c1), nil
}

// Delete removes the cache file for key, if present.
func (b *FileBackend) Delete(key CacheKey) error {
	err := os.Remove(b.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rasterio: deleting tile: %w", err)
	}
	return nil
}

func (b *FileBackend) DriverName() string { return "file/" + b.format }

func (b *FileBackend) OpenOptions() map[string]string {
	return map[string]string{"format": b.format}
}

func (b *FileBackend) Path() string { return b.dir }

// --- encoding helpers ---

func decodeTile(data []byte) (*sample.Array, error) {
	if len(data) >= 4 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' {
		return decodeWebP(data)
	}
	var p persisted
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	return &sample.Array{Rows: p.Rows, Cols: p.Cols, Bands: p.Bands, DType: p.DType, Data: p.Data}, nil
}

// decodeWebP decodes a WebP-encoded cache tile (e.g. one seeded out-of-band
// by another tool) back into a sample.Array. Mirrors the teacher's
// internal/encode/decode.go use of gen2brain/webp for decode only.
func decodeWebP(data []byte) (*sample.Array, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return imageToArray(img)
}

func imageToArray(img image.Image) (*sample.Array, error) {
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	arr := sample.NewArray(rows, cols, 4, sample.DTypeUint8)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, bch, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			arr.Set(y, x, 0, float64(r>>8))
			arr.Set(y, x, 1, float64(g>>8))
			arr.Set(y, x, 2, float64(bch>>8))
			arr.Set(y, x, 3, float64(a>>8))
		}
	}
	return arr, nil
}
