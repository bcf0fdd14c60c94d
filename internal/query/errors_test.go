package query

import (
	"errors"
	"testing"
)

func TestInvalidQueryErrorMessage(t *testing.T) {
	err := &InvalidQueryError{Reason: "empty footprint"}
	if err.Error() != "rasterq: invalid query: empty footprint" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestCacheTileErrorUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := &CacheTileError{RasterUID: "r1", TileIndex: 4, Err: inner}

	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to see through CacheTileError to its wrapped cause")
	}
	var target *CacheTileError
	if !errors.As(err, &target) || target.TileIndex != 4 {
		t.Fatal("expected errors.As to recover the CacheTileError")
	}
}

func TestComputeContractErrorMessage(t *testing.T) {
	err := &ComputeContractError{Reason: "merge_arrays returned 2 bands, want 3"}
	if err.Error() != "rasterq: compute/merge contract violation: merge_arrays returned 2 bands, want 3" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
