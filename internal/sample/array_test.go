package sample

import "testing"

func TestParseDTypeRoundTripsWithString(t *testing.T) {
	for _, d := range []DType{DTypeUint8, DTypeUint16, DTypeFloat32, DTypeFloat64} {
		got, err := ParseDType(d.String())
		if err != nil {
			t.Fatalf("ParseDType(%q): %v", d.String(), err)
		}
		if got != d {
			t.Fatalf("expected %v, got %v", d, got)
		}
	}
}

func TestParseDTypeRejectsUnknown(t *testing.T) {
	if _, err := ParseDType("int128"); err == nil {
		t.Fatalf("expected an error for an unrecognized dtype")
	}
}

func TestArraySliceAndWriteInto(t *testing.T) {
	src := NewArray(4, 4, 1, DTypeFloat64)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			src.Set(r, c, 0, float64(r*4+c))
		}
	}

	sub := src.Slice(1, 3, 1, 3)
	if rows, cols, bands := sub.Shape(); rows != 2 || cols != 2 || bands != 1 {
		t.Fatalf("expected a 2x2x1 slice, got (%d,%d,%d)", rows, cols, bands)
	}
	if sub.At(0, 0, 0) != src.At(1, 1, 0) {
		t.Fatalf("expected slice origin to match source at (1,1)")
	}

	dst := Full(4, 4, 1, DTypeFloat64, -1)
	sub.WriteInto(dst, 0, 0)
	if dst.At(0, 0, 0) != src.At(1, 1, 0) {
		t.Fatalf("expected WriteInto to copy the sliced values")
	}
	if dst.At(3, 3, 0) != -1 {
		t.Fatalf("expected untouched region to keep its fill value")
	}
}
