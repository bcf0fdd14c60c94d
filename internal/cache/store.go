// Package cache implements the cache-tile state machine (spec.md §3 "Cache
// tile", §4.7 at-most-one-build invariant, §4.3's cache-state actor):
// absent/building/ready/failed presence per (raster_uid, cache index), a
// hot in-memory LRU front for decoded tile arrays, and a persisted state
// table surviving process restarts. Grounded in teacher
// `internal/cog.TileCache` (hand-rolled LRU, generalized to
// hashicorp/golang-lru) and `internal/mbtiles.Writer` (modernc.org/sqlite
// schema/pragma/transaction idiom).
package cache

import (
	"database/sql"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/rasterq/rasterq/internal/sample"
)

// State is a cache tile's on-disk presence (spec.md §3).
type State int

const (
	StateAbsent State = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Key identifies one cache tile.
type Key struct {
	RasterUID string
	Index     int
}

type tileEntry struct {
	state State
	err   error
}

// Store tracks cache-tile state, at-most-one-build admission, and a hot
// LRU front over decoded arrays. A Store is shared process-wide (spec.md
// §5 "the cache is process-wide").
type Store struct {
	mu    sync.Mutex
	tiles map[Key]*tileEntry
	hot   *lru.Cache[Key, *sample.Array]

	db *sql.DB
}

// NewStore returns a Store with an in-memory LRU front of hotSize entries.
// Call OpenPersistence to additionally survive process restarts.
func NewStore(hotSize int) *Store {
	if hotSize <= 0 {
		hotSize = 256
	}
	hot, _ := lru.New[Key, *sample.Array](hotSize)
	return &Store{tiles: map[Key]*tileEntry{}, hot: hot}
}

// OpenPersistence attaches a sqlite-backed state table at path, loading any
// previously-persisted `ready` tiles so they don't need rebuilding after a
// restart (spec.md §4 ambient durability decision, see DESIGN.md).
func (s *Store) OpenPersistence(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cache: opening state db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("cache: pragma %q: %w", pragma, err)
		}
	}
	schema := `
		CREATE TABLE IF NOT EXISTS tile_state (
			raster_uid TEXT NOT NULL,
			tile_index INTEGER NOT NULL,
			state INTEGER NOT NULL,
			PRIMARY KEY (raster_uid, tile_index)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("cache: creating schema: %w", err)
	}

	rows, err := db.Query("SELECT raster_uid, tile_index, state FROM tile_state WHERE state = ?", int(StateReady))
	if err != nil {
		db.Close()
		return fmt.Errorf("cache: loading persisted state: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	for rows.Next() {
		var uid string
		var idx, st int
		if err := rows.Scan(&uid, &idx, &st); err != nil {
			s.mu.Unlock()
			db.Close()
			return fmt.Errorf("cache: scanning persisted row: %w", err)
		}
		s.tiles[Key{RasterUID: uid, Index: idx}] = &tileEntry{state: State(st)}
	}
	s.mu.Unlock()

	s.db = db
	return nil
}

// Close releases the persistence handle, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// State reports k's current presence.
func (s *Store) State(k Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tiles[k]
	if !ok {
		return StateAbsent
	}
	return e.state
}

// Subscribe attempts to join a build for k, transitioning absent→building
// or failed→building. first reports whether the caller must actually kick
// off the build (spec.md §4.7 "at-most-one build invariant"); when false,
// the tile is already `building` (the caller only needs to wait) or it is
// already `ready`. A `failed` tile always restarts, returning true.
func (s *Store) Subscribe(k Key) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tiles[k]
	if !ok {
		s.tiles[k] = &tileEntry{state: StateBuilding}
		return true
	}
	switch e.state {
	case StateAbsent, StateFailed:
		e.state = StateBuilding
		e.err = nil
		return true
	default:
		return false
	}
}

// MarkReady transitions k to ready and persists the state if persistence
// is attached.
func (s *Store) MarkReady(k Key) {
	s.mu.Lock()
	s.tiles[k] = &tileEntry{state: StateReady}
	s.mu.Unlock()
	s.persist(k, StateReady)
}

// MarkFailed transitions k to failed, recording err.
func (s *Store) MarkFailed(k Key, err error) {
	s.mu.Lock()
	s.tiles[k] = &tileEntry{state: StateFailed, err: err}
	s.mu.Unlock()
	s.persist(k, StateFailed)
}

// Err returns the error recorded against a failed tile, if any.
func (s *Store) Err(k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.tiles[k]; ok {
		return e.err
	}
	return nil
}

func (s *Store) persist(k Key, st State) {
	if s.db == nil {
		return
	}
	_, _ = s.db.Exec(
		"INSERT INTO tile_state (raster_uid, tile_index, state) VALUES (?, ?, ?) ON CONFLICT(raster_uid, tile_index) DO UPDATE SET state = excluded.state",
		k.RasterUID, k.Index, int(st),
	)
}

// GetHot returns a decoded array from the in-memory front, if present.
func (s *Store) GetHot(k Key) (*sample.Array, bool) {
	return s.hot.Get(k)
}

// PutHot stores a decoded array in the in-memory front.
func (s *Store) PutHot(k Key, arr *sample.Array) {
	s.hot.Add(k, arr)
}

// Evict drops any in-memory and state-table entries for k (used when a
// tile is deleted out-of-band).
func (s *Store) Evict(k Key) {
	s.hot.Remove(k)
	s.mu.Lock()
	delete(s.tiles, k)
	s.mu.Unlock()
	if s.db != nil {
		_, _ = s.db.Exec("DELETE FROM tile_state WHERE raster_uid = ? AND tile_index = ?", k.RasterUID, k.Index)
	}
}
