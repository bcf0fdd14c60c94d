package cache

import (
	"testing"

	"github.com/rasterq/rasterq/internal/sample"
)

func TestSubscribeAtMostOneBuild(t *testing.T) {
	s := NewStore(8)
	k := Key{RasterUID: "r1", Index: 3}

	if !s.Subscribe(k) {
		t.Fatal("first subscriber should start the build")
	}
	if s.Subscribe(k) {
		t.Fatal("second subscriber must not start a concurrent build")
	}
	if got := s.State(k); got != StateBuilding {
		t.Fatalf("expected building, got %v", got)
	}

	s.MarkReady(k)
	if got := s.State(k); got != StateReady {
		t.Fatalf("expected ready, got %v", got)
	}
	if s.Subscribe(k) {
		t.Fatal("a ready tile must not restart a build")
	}
}

func TestFailedTileCanRetry(t *testing.T) {
	s := NewStore(8)
	k := Key{RasterUID: "r1", Index: 1}

	s.Subscribe(k)
	s.MarkFailed(k, errBoom)
	if got := s.State(k); got != StateFailed {
		t.Fatalf("expected failed, got %v", got)
	}
	if err := s.Err(k); err != errBoom {
		t.Fatalf("expected recorded error, got %v", err)
	}

	if !s.Subscribe(k) {
		t.Fatal("failed tile must allow a retry build")
	}
	if got := s.State(k); got != StateBuilding {
		t.Fatalf("expected building after retry, got %v", got)
	}
}

func TestHotFrontRoundTrip(t *testing.T) {
	s := NewStore(8)
	k := Key{RasterUID: "r1", Index: 0}
	arr := sample.Full(2, 2, 1, sample.DTypeUint8, 7)

	if _, ok := s.GetHot(k); ok {
		t.Fatal("expected miss before PutHot")
	}
	s.PutHot(k, arr)
	got, ok := s.GetHot(k)
	if !ok || got != arr {
		t.Fatal("expected hit returning the stored array")
	}

	s.Evict(k)
	if _, ok := s.GetHot(k); ok {
		t.Fatal("expected miss after Evict")
	}
	if got := s.State(k); got != StateAbsent {
		t.Fatalf("expected absent after Evict, got %v", got)
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
