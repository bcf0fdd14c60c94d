// Package footprint implements the rectangular pixel-grid geometry consumed
// by the query scheduler: an affine placement over a raster grid plus the
// arithmetic needed to plan cache reads and resample jobs (intersection,
// tiling, dilation, slicing, grid equality).
package footprint

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Footprint is an immutable rectangular region of a raster grid: an affine
// (origin plus per-pixel x/y step vectors) and a pixel size (rows, cols).
//
// Rotation is not modeled — every Footprint in this system is axis-aligned,
// which holds for every raster kind the scheduler plans against.
type Footprint struct {
	originX, originY float64
	scaleX, scaleY   float64 // world units per pixel; scaleY is usually negative (north-up)
	rows, cols       int
}

// New builds a Footprint from its affine placement and pixel size.
func New(originX, originY, scaleX, scaleY float64, rows, cols int) Footprint {
	return Footprint{originX: originX, originY: originY, scaleX: scaleX, scaleY: scaleY, rows: rows, cols: cols}
}

// Shape returns the pixel size as (rows, cols), i.e. (Y, X).
func (fp Footprint) Shape() (rows, cols int) { return fp.rows, fp.cols }

// IsZero reports whether fp is the zero value (no pixels).
func (fp Footprint) IsZero() bool { return fp.rows == 0 && fp.cols == 0 }

// Bound returns the world-space axis-aligned bounding box covered by fp.
func (fp Footprint) Bound() orb.Bound {
	x0, y0 := fp.originX, fp.originY
	x1 := fp.originX + fp.scaleX*float64(fp.cols)
	y1 := fp.originY + fp.scaleY*float64(fp.rows)
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// SameGrid reports whether fp and other share the same pixel scale and
// their origins lie a whole number of pixels apart — i.e. every pixel of
// one coincides with a pixel of the other, so no interpolation is required
// to move between them.
func (fp Footprint) SameGrid(other Footprint) bool {
	const eps = 1e-9
	if math.Abs(fp.scaleX-other.scaleX) >= eps || math.Abs(fp.scaleY-other.scaleY) >= eps {
		return false
	}
	colOff := (fp.originX - other.originX) / other.scaleX
	rowOff := (fp.originY - other.originY) / other.scaleY
	const tol = 1e-6
	return math.Abs(colOff-math.Round(colOff)) <= tol && math.Abs(rowOff-math.Round(rowOff)) <= tol
}

// Equal reports whether fp and other describe the same pixel grid and the
// same extent (same origin and rows/cols in addition to SameGrid).
func (fp Footprint) Equal(other Footprint) bool {
	const eps = 1e-9
	return fp.SameGrid(other) &&
		math.Abs(fp.originX-other.originX) < eps && math.Abs(fp.originY-other.originY) < eps &&
		fp.rows == other.rows && fp.cols == other.cols
}

// ShareArea reports whether fp's world-space bound overlaps other's at all.
func (fp Footprint) ShareArea(other Footprint) bool {
	a, b := fp.Bound(), other.Bound()
	return a.Min[0] < b.Max[0] && a.Max[0] > b.Min[0] &&
		a.Min[1] < b.Max[1] && a.Max[1] > b.Min[1]
}

// Intersection returns the rectangular overlap of fp and other, expressed on
// fp's pixel grid. ok is false when the two footprints do not overlap.
func (fp Footprint) Intersection(other Footprint) (Footprint, bool) {
	if !fp.ShareArea(other) {
		return Footprint{}, false
	}
	a, b := fp.Bound(), other.Bound()
	minX := math.Max(a.Min[0], b.Min[0])
	maxX := math.Min(a.Max[0], b.Max[0])
	minY := math.Max(a.Min[1], b.Min[1])
	maxY := math.Min(a.Max[1], b.Max[1])

	px := math.Abs(fp.scaleX)
	py := math.Abs(fp.scaleY)
	rows := int(math.Round((maxY - minY) / py))
	cols := int(math.Round((maxX - minX) / px))
	if rows <= 0 || cols <= 0 {
		return Footprint{}, false
	}

	originX := minX
	originY := maxY
	if fp.scaleY > 0 {
		originY = minY
	}
	return New(originX, originY, fp.scaleX, fp.scaleY, rows, cols), true
}

// Dilate grows fp by n pixels on every side, keeping the same pixel grid.
func (fp Footprint) Dilate(n int) Footprint {
	return New(
		fp.originX-fp.scaleX*float64(n),
		fp.originY-fp.scaleY*float64(n),
		fp.scaleX, fp.scaleY,
		fp.rows+2*n, fp.cols+2*n,
	)
}

// Scale returns a footprint over the same world extent but with pixels
// `factor` times larger (factor > 1 downsamples, factor < 1 upsamples).
// Used to build lower-resolution query footprints (spec.md scenario 3).
func (fp Footprint) Scale(factor float64) Footprint {
	rows := int(math.Round(float64(fp.rows) / factor))
	cols := int(math.Round(float64(fp.cols) / factor))
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return New(fp.originX, fp.originY, fp.scaleX*factor, fp.scaleY*factor, rows, cols)
}

// Slice is a half-open pixel range [Start, Stop).
type Slice struct {
	Start, Stop int
}

// Len returns Stop - Start.
func (s Slice) Len() int { return s.Stop - s.Start }

// SliceIn returns the row/col pixel range that fp occupies within other's
// grid. Both footprints must share the same grid (SameGrid); ok is false
// otherwise or when fp does not fall on an integer pixel boundary of other.
func (fp Footprint) SliceIn(other Footprint) (rows, cols Slice, ok bool) {
	if !fp.SameGrid(other) {
		return Slice{}, Slice{}, false
	}
	colOff := (fp.originX - other.originX) / other.scaleX
	rowOff := (fp.originY - other.originY) / other.scaleY
	const eps = 1e-6
	if math.Abs(colOff-math.Round(colOff)) > eps || math.Abs(rowOff-math.Round(rowOff)) > eps {
		return Slice{}, Slice{}, false
	}
	r0 := int(math.Round(rowOff))
	c0 := int(math.Round(colOff))
	return Slice{Start: r0, Stop: r0 + fp.rows}, Slice{Start: c0, Stop: c0 + fp.cols}, true
}

// Boundary controls how TileCount handles a grid that doesn't divide evenly.
type Boundary int

const (
	// BoundaryShrink clips the last row/col of tiles to the remaining extent.
	BoundaryShrink Boundary = iota
	// BoundaryOverlap keeps every tile full-size, overlapping the previous
	// tile on the last row/col.
	BoundaryOverlap
)

// TileCount tiles fp into a grid of at most nx*ny sub-footprints of pixel
// size roughly (rows/ny, cols/nx), in row-major order. Used to turn one
// production footprint into per-output-tile queries (spec.md scenario 2).
func (fp Footprint) TileCount(nx, ny int, boundary Boundary) []Footprint {
	if nx <= 0 || ny <= 0 {
		return nil
	}
	tileRows := (fp.rows + ny - 1) / ny
	tileCols := (fp.cols + nx - 1) / nx

	var out []Footprint
	for ty := 0; ty < ny; ty++ {
		r0 := ty * tileRows
		if r0 >= fp.rows {
			break
		}
		rows := tileRows
		if boundary == BoundaryShrink && r0+rows > fp.rows {
			rows = fp.rows - r0
		} else if r0+rows > fp.rows {
			r0 = fp.rows - rows
			if r0 < 0 {
				r0 = 0
				rows = fp.rows
			}
		}
		for tx := 0; tx < nx; tx++ {
			c0 := tx * tileCols
			if c0 >= fp.cols {
				break
			}
			cols := tileCols
			if boundary == BoundaryShrink && c0+cols > fp.cols {
				cols = fp.cols - c0
			} else if c0+cols > fp.cols {
				c0 = fp.cols - cols
				if c0 < 0 {
					c0 = 0
					cols = fp.cols
				}
			}
			out = append(out, New(
				fp.originX+fp.scaleX*float64(c0),
				fp.originY+fp.scaleY*float64(r0),
				fp.scaleX, fp.scaleY,
				rows, cols,
			))
		}
	}
	return out
}

// TileGrid deterministically tiles fp's full extent into fixed-size cache
// tiles of (tileRows, tileCols) pixels, indexed in row-major order. Used by
// the raster package to build the cache-tile grid for a raster.
func (fp Footprint) TileGrid(tileRows, tileCols int) []Footprint {
	if tileRows <= 0 || tileCols <= 0 {
		return nil
	}
	ny := (fp.rows + tileRows - 1) / tileRows
	nx := (fp.cols + tileCols - 1) / tileCols
	var out []Footprint
	for ty := 0; ty < ny; ty++ {
		r0 := ty * tileRows
		rows := tileRows
		if r0+rows > fp.rows {
			rows = fp.rows - r0
		}
		for tx := 0; tx < nx; tx++ {
			c0 := tx * tileCols
			cols := tileCols
			if c0+cols > fp.cols {
				cols = fp.cols - c0
			}
			out = append(out, New(
				fp.originX+fp.scaleX*float64(c0),
				fp.originY+fp.scaleY*float64(r0),
				fp.scaleX, fp.scaleY,
				rows, cols,
			))
		}
	}
	return out
}

func (fp Footprint) String() string {
	return fmt.Sprintf("Footprint(origin=(%.3f,%.3f) scale=(%.3f,%.3f) shape=(%d,%d))",
		fp.originX, fp.originY, fp.scaleX, fp.scaleY, fp.rows, fp.cols)
}
