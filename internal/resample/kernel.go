// Package resample implements the remap kernel spec.md §1 names as an
// external collaborator (interpolation between two pixel grids covering
// the same world extent). The Resampler actor's decision table (spec.md
// §4.8), ported from the original `_resample_subsample_array`
// (original_source/buzzard/_actors/resampler.py), lives in
// internal/actors and calls Remap. Grounded in the
// teacher's internal/tile/resample.go (per-band nearest/bilinear sampling)
// generalized from fixed RGBA images to arbitrary-band typed sample
// arrays, built on golang.org/x/image/draw's scalers instead of the
// teacher's hand-rolled bilerp loop.
package resample

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/rasterq/rasterq/internal/sample"
)

// Interpolation selects the remap kernel (spec.md §6 user compute/query
// surface: `interpolation_kind`).
type Interpolation int

const (
	InterpolationNearest Interpolation = iota
	InterpolationBilinear
)

func (i Interpolation) scaler() xdraw.Scaler {
	if i == InterpolationNearest {
		return xdraw.NearestNeighbor
	}
	return xdraw.BiLinear
}

// Remap resamples src (shape srcRows x srcCols x bands) onto a grid of
// shape dstRows x dstCols, band by band, using interp. Both grids are
// assumed to cover the same world extent (the caller is responsible for
// slicing inputs to the overlapping region first); only the resolution
// differs, matching the `share_area && !same_grid` case of spec.md §4.8.
func Remap(src *sample.Array, dstRows, dstCols int, interp Interpolation) *sample.Array {
	rows, cols, bands := src.Shape()
	out := sample.NewArray(dstRows, dstCols, bands, src.DType)
	if rows == 0 || cols == 0 || dstRows == 0 || dstCols == 0 {
		return out
	}

	scaler := interp.scaler()
	srcRect := image.Rect(0, 0, cols, rows)
	dstRect := image.Rect(0, 0, dstCols, dstRows)

	for b := 0; b < bands; b++ {
		lo, hi := bandRange(src, b)
		srcImg := bandToGray16(src, b, lo, hi)
		dstImg := image.NewGray16(dstRect)
		scaler.Scale(dstImg, dstRect, srcImg, srcRect, draw.Src, nil)
		gray16ToBand(dstImg, out, b, lo, hi)
	}
	return out
}

// bandRange finds the normalization range for a band so bandToGray16 and
// gray16ToBand round-trip through 16-bit grayscale without clipping real
// data: fixed for integer dtypes, the source's own min/max for float
// dtypes (whose representable range is otherwise unbounded).
func bandRange(a *sample.Array, band int) (lo, hi float64) {
	switch a.DType {
	case sample.DTypeUint8:
		return 0, 255
	case sample.DTypeUint16:
		return 0, 65535
	default:
		rows, cols, _ := a.Shape()
		lo, hi = math.Inf(1), math.Inf(-1)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v := a.At(r, c, band)
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
		}
		if math.IsInf(lo, 1) {
			lo, hi = 0, 1
		}
		if lo == hi {
			hi = lo + 1
		}
		return lo, hi
	}
}

// bandToGray16 packs one band of a into a 16-bit grayscale image so it can
// drive an x/image/draw scaler, which only operates on image.Image values.
func bandToGray16(a *sample.Array, band int, lo, hi float64) *image.Gray16 {
	rows, cols, _ := a.Shape()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	span := hi - lo
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := a.At(r, c, band)
			u16 := uint16(math.Round(((v - lo) / span) * 65535))
			img.SetGray16(c, r, color.Gray16{Y: u16})
		}
	}
	return img
}

// gray16ToBand unpacks a scaled 16-bit grayscale image back into band of
// out, using the same (lo, hi) range bandToGray16 normalized with.
func gray16ToBand(img *image.Gray16, out *sample.Array, band int, lo, hi float64) {
	span := hi - lo
	rows, cols, _ := out.Shape()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g := img.Gray16At(c, r)
			v := lo + (float64(g.Y)/65535)*span
			out.Set(r, c, band, out.DType.Clamp(v))
		}
	}
}
