package footprint

import "testing"

func TestSameGridAndEqual(t *testing.T) {
	a := New(0, 100, 1, -1, 256, 256)
	b := New(0, 100, 1, -1, 128, 128)
	if !a.SameGrid(b) {
		t.Fatal("expected same grid")
	}
	if a.Equal(b) {
		t.Fatal("different extents should not be equal")
	}
	c := New(0, 100, 1, -1, 256, 256)
	if !a.Equal(c) {
		t.Fatal("expected equal footprints")
	}
}

func TestIntersection(t *testing.T) {
	a := New(0, 100, 1, -1, 100, 100) // rows 0..100
	b := New(50, 80, 1, -1, 100, 100)
	inter, ok := a.Intersection(b)
	if !ok {
		t.Fatal("expected overlap")
	}
	rows, cols := inter.Shape()
	if rows <= 0 || cols <= 0 {
		t.Fatalf("expected positive shape, got (%d,%d)", rows, cols)
	}
}

func TestNoIntersection(t *testing.T) {
	a := New(0, 100, 1, -1, 10, 10)
	b := New(1000, 1000, 1, -1, 10, 10)
	if _, ok := a.Intersection(b); ok {
		t.Fatal("expected no overlap")
	}
}

func TestDilate(t *testing.T) {
	a := New(0, 100, 1, -1, 10, 10)
	d := a.Dilate(1)
	rows, cols := d.Shape()
	if rows != 12 || cols != 12 {
		t.Fatalf("expected (12,12), got (%d,%d)", rows, cols)
	}
	if !d.SameGrid(a) {
		t.Fatal("dilation must preserve the pixel grid")
	}
}

func TestSliceIn(t *testing.T) {
	whole := New(0, 100, 1, -1, 100, 100)
	sub := New(10, 90, 1, -1, 20, 20)
	rows, cols, ok := sub.SliceIn(whole)
	if !ok {
		t.Fatal("expected SliceIn to succeed for a same-grid sub-footprint")
	}
	if rows.Start != 10 || rows.Stop != 30 || cols.Start != 10 || cols.Stop != 30 {
		t.Fatalf("unexpected slice: rows=%+v cols=%+v", rows, cols)
	}
}

func TestSliceInDifferentGrid(t *testing.T) {
	whole := New(0, 100, 1, -1, 100, 100)
	other := New(0, 100, 2, -2, 50, 50)
	if _, _, ok := other.SliceIn(whole); ok {
		t.Fatal("SliceIn across different grids must fail")
	}
}

func TestTileGridCoversExtent(t *testing.T) {
	whole := New(0, 100, 1, -1, 100, 100)
	tiles := whole.TileGrid(32, 32)
	var total int
	for _, tile := range tiles {
		rows, cols := tile.Shape()
		total += rows * cols
	}
	if total != 100*100 {
		t.Fatalf("tile grid should exactly cover the extent, got %d pixels, want %d", total, 100*100)
	}
}

func TestTileCountShrinkBoundary(t *testing.T) {
	whole := New(0, 100, 1, -1, 100, 100)
	tiles := whole.TileCount(3, 3, BoundaryShrink)
	if len(tiles) != 9 {
		t.Fatalf("expected 9 tiles, got %d", len(tiles))
	}
}
