package resample

import (
	"testing"

	"github.com/rasterq/rasterq/internal/sample"
)

func TestRemapNearestPreservesConstantValue(t *testing.T) {
	src := sample.Full(4, 4, 1, sample.DTypeUint8, 200)
	out := Remap(src, 8, 8, InterpolationNearest)
	rows, cols, bands := out.Shape()
	if rows != 8 || cols != 8 || bands != 1 {
		t.Fatalf("unexpected output shape (%d,%d,%d)", rows, cols, bands)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if v := out.At(r, c, 0); v < 195 || v > 205 {
				t.Fatalf("expected ~200 at (%d,%d), got %v", r, c, v)
			}
		}
	}
}

func TestRemapBilinearDownsampleConstantValue(t *testing.T) {
	src := sample.Full(8, 8, 2, sample.DTypeFloat32, 42.5)
	out := Remap(src, 4, 4, InterpolationBilinear)
	rows, cols, bands := out.Shape()
	if rows != 4 || cols != 4 || bands != 2 {
		t.Fatalf("unexpected output shape (%d,%d,%d)", rows, cols, bands)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for b := 0; b < bands; b++ {
				v := out.At(r, c, b)
				if v < 42 || v > 43 {
					t.Fatalf("expected ~42.5 at (%d,%d,%d), got %v", r, c, b, v)
				}
			}
		}
	}
}
