package actors

import (
	"fmt"

	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/poolroom"
)

// poolID derives a stable per-instance identity for a Pool, mirroring the
// original_source `id(pool)` used to build WaitingRoom/WorkingRoom
// addresses (resampler.py, merger.py: `'/Pool{}/WaitingRoom'.format(id(pool))`).
func poolID(p poolroom.Pool) string {
	return fmt.Sprintf("%p", p)
}

func waitingRoomAddr(p poolroom.Pool) string { return addr.Pool(poolID(p), "WaitingRoom") }
func workingRoomAddr(p poolroom.Pool) string { return addr.Pool(poolID(p), "WorkingRoom") }
