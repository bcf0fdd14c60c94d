// Package addr centralizes the actor-address naming scheme (spec.md §9:
// "index-addressed actors in a registry ... addresses are derived from
// raster identity"), ported verbatim from the original
// `'/Raster{}/{}'.format(raster.uid, name)` convention in
// original_source/buzzard (e.g. `_actors/resampler.py`'s `address`
// property) so every package constructs the same strings independently
// without importing each other.
package addr

import "fmt"

// Raster returns the address of a raster-scoped actor (Reader, Writer,
// Merger, Computer, CacheExtractor, Resampler, Producer, QueriesHandler).
func Raster(uid, name string) string {
	return fmt.Sprintf("/Raster%s/%s", uid, name)
}

// Pool returns the address of a pool-scoped actor (WaitingRoom or
// WorkingRoom), keyed by the pool's own identity string.
func Pool(poolID, name string) string {
	return fmt.Sprintf("/Pool%s/%s", poolID, name)
}
