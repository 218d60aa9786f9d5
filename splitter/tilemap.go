package splitter

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Map is the shared contract of every ID->tile backend (§4.2). A single
// logical owner drives all operations; no backend is required to be
// thread-safe (§5, "Concurrency").
type Map interface {
	// Put inserts a new base value. Undefined if key is already present.
	Put(key uint64, x, y uint32, neighbours uint8) error
	// Get returns the packed value for key, or 0 if absent.
	Get(key uint64) TileValue
	// Update set-unions the expansions of the given values into key's slot.
	Update(key uint64, values []TileValue) error
	// UpdateInt is the plain-tile convenience form of Update: each tile is
	// treated as a value with no neighbour bits.
	UpdateInt(key uint64, tiles []Tile) error
	// GetAllTiles returns the full expanded tile set for key, or ok=false if absent.
	GetAllTiles(key uint64) ([]Tile, bool)
	// Keys streams all occupied keys, in unspecified order.
	Keys() []uint64
	// Load is the diagnostic fill ratio of the backend.
	Load() float64
	// MissHitRatio is the diagnostic ratio of probe misses to hits (hash backend) or always 0 (array backend).
	MissHitRatio() float64
	// Capacity is the number of key slots currently allocated.
	Capacity() int
}

func valuesToTiles(values []TileValue) []Tile {
	out := make([]Tile, 0, len(values))
	for _, v := range values {
		out = append(out, baseExpansion(v.X(), v.Y(), v.Neighbours())...)
	}
	return out
}

// mergeTiles applies the §4.2 "update" merging discipline to a single slot.
func mergeTiles(current TileValue, overflow *OverflowStore, incoming []Tile) (TileValue, error) {
	if current.IsEmpty() || len(incoming) == 0 {
		return current, nil
	}
	x, y := current.X(), current.Y()

	if current.Extended() {
		overflow.Union(uint32(current.Payload()), incoming)
		return current, nil
	}

	existing := inlineTiles(x, y, current.Payload())
	all := append(baseExpansion(x, y, current.Neighbours()), existing...)
	all = append(all, incoming...)
	all = sortUniqueTiles(all)

	var newPayload uint32
	fits := true
	for _, t := range all {
		tx, ty := t.Unpack()
		if tx == x && ty == y {
			continue
		}
		dx := int(tx) - int(x)
		dy := int(ty) - int(y)
		isNeighbour := (dx == 1 && dy == 0 && current.Neighbours()&NeighbourEast != 0) ||
			(dx == 0 && dy == 1 && current.Neighbours()&NeighbourSouth != 0)
		if isNeighbour {
			continue
		}
		bit, ok := inlineBitForOffset(dx, dy)
		if !ok {
			fits = false
			break
		}
		newPayload |= 1 << bit
	}

	if fits {
		return current.withPayload(newPayload), nil
	}

	idx, err := overflow.Alloc(all)
	if err != nil {
		return current, err
	}
	return current.withExtended(idx), nil
}

func expandValue(v TileValue, overflow *OverflowStore) []Tile {
	if v.IsEmpty() {
		return nil
	}
	if v.Extended() {
		return overflow.Get(uint32(v.Payload()))
	}
	all := baseExpansion(v.X(), v.Y(), v.Neighbours())
	all = append(all, inlineTiles(v.X(), v.Y(), v.Payload())...)
	return sortUniqueTiles(all)
}

// --- open-addressed hash map backend ---------------------------------------

// hashMap is an open-addressed, linearly-probed hash table keyed by OSM id.
// It never deletes entries, so probing needs no tombstones. Growth doubles
// the table and rehashes in place.
type hashMap struct {
	keys      []uint64
	occupied  []bool
	values    []TileValue
	overflow  *OverflowStore
	count     int
	maxLoad   float64
	fixedSize bool
	misses    uint64
	hits      uint64
}

// newHashMap creates a hash-backed map. If initialCapacity is 0, it starts
// small and grows geometrically; otherwise it is fixed at that size and
// returns ErrCapacityExhausted once full (the "growth ceiling" of §4.2).
func newHashMap(initialCapacity int) *hashMap {
	fixed := initialCapacity > 0
	size := initialCapacity
	if size == 0 {
		size = 1024
	}
	size = nextPow2(size)
	return &hashMap{
		keys:      make([]uint64, size),
		occupied:  make([]bool, size),
		values:    make([]TileValue, size),
		overflow:  NewOverflowStore(),
		maxLoad:   0.75,
		fixedSize: fixed,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hashKey(key uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return xxhash.Sum64(b[:])
}

func (m *hashMap) probe(key uint64) (idx int, found bool) {
	mask := uint64(len(m.keys) - 1)
	i := hashKey(key) & mask
	for {
		if !m.occupied[i] {
			return int(i), false
		}
		if m.keys[i] == key {
			return int(i), true
		}
		m.misses++
		i = (i + 1) & mask
	}
}

func (m *hashMap) grow() error {
	if m.fixedSize {
		return ErrCapacityExhausted
	}
	old := *m
	m.keys = make([]uint64, len(old.keys)*2)
	m.occupied = make([]bool, len(old.occupied)*2)
	m.values = make([]TileValue, len(old.values)*2)
	m.count = 0
	for i, occ := range old.occupied {
		if occ {
			idx, _ := m.probe(old.keys[i])
			m.keys[idx] = old.keys[i]
			m.occupied[idx] = true
			m.values[idx] = old.values[i]
			m.count++
		}
	}
	return nil
}

func (m *hashMap) Put(key uint64, x, y uint32, neighbours uint8) error {
	if float64(m.count+1) > float64(len(m.keys))*m.maxLoad {
		if err := m.grow(); err != nil {
			return err
		}
	}
	idx, found := m.probe(key)
	if !found {
		m.count++
	}
	m.keys[idx] = key
	m.occupied[idx] = true
	m.values[idx] = EncodeBase(x, y, neighbours)
	m.hits++
	return nil
}

func (m *hashMap) Get(key uint64) TileValue {
	idx, found := m.probe(key)
	if !found {
		return 0
	}
	m.hits++
	return m.values[idx]
}

func (m *hashMap) Update(key uint64, values []TileValue) error {
	return m.UpdateInt(key, valuesToTiles(values))
}

func (m *hashMap) UpdateInt(key uint64, tiles []Tile) error {
	idx, found := m.probe(key)
	if !found {
		return nil
	}
	merged, err := mergeTiles(m.values[idx], m.overflow, tiles)
	if err != nil {
		return err
	}
	m.values[idx] = merged
	return nil
}

func (m *hashMap) GetAllTiles(key uint64) ([]Tile, bool) {
	idx, found := m.probe(key)
	if !found {
		return nil, false
	}
	return expandValue(m.values[idx], m.overflow), true
}

func (m *hashMap) Keys() []uint64 {
	out := make([]uint64, 0, m.count)
	for i, occ := range m.occupied {
		if occ {
			out = append(out, m.keys[i])
		}
	}
	return out
}

func (m *hashMap) Load() float64 {
	if len(m.keys) == 0 {
		return 0
	}
	return float64(m.count) / float64(len(m.keys))
}

func (m *hashMap) MissHitRatio() float64 {
	if m.hits == 0 {
		return 0
	}
	return float64(m.misses) / float64(m.hits)
}

func (m *hashMap) Capacity() int { return len(m.keys) }

// --- direct-indexed array map backend ---------------------------------------

// arrayShardBits sizes each shard of the array-backed map to 2^24 entries,
// far under any platform's max single-allocation length, so the full
// planet-scale id space is covered by a slice of shards rather than one
// contiguous allocation of 2^31+ longs (§3, "Variant backends").
const arrayShardBits = 24
const arrayShardSize = 1 << arrayShardBits
const arrayShardMask = arrayShardSize - 1

// arrayMap is a direct-indexed map backed by a sharded array, used when the
// maximum id is known in advance and within a configured cap.
type arrayMap struct {
	shards   [][]TileValue
	maxID    uint64
	overflow *OverflowStore
	count    int
}

// newArrayMap creates an array-backed map able to index any key <= maxID.
func newArrayMap(maxID uint64) *arrayMap {
	numShards := int(maxID>>arrayShardBits) + 1
	return &arrayMap{
		shards:   make([][]TileValue, numShards),
		maxID:    maxID,
		overflow: NewOverflowStore(),
	}
}

func (m *arrayMap) locate(key uint64) (shard int, offset int, ok bool) {
	if key > m.maxID {
		return 0, 0, false
	}
	return int(key >> arrayShardBits), int(key & arrayShardMask), true
}

func (m *arrayMap) ensureShard(shard int) []TileValue {
	if m.shards[shard] == nil {
		m.shards[shard] = make([]TileValue, arrayShardSize)
	}
	return m.shards[shard]
}

func (m *arrayMap) Put(key uint64, x, y uint32, neighbours uint8) error {
	shard, offset, ok := m.locate(key)
	if !ok {
		return ErrIDOutOfRange
	}
	s := m.ensureShard(shard)
	if s[offset].IsEmpty() {
		m.count++
	}
	s[offset] = EncodeBase(x, y, neighbours)
	return nil
}

func (m *arrayMap) Get(key uint64) TileValue {
	shard, offset, ok := m.locate(key)
	if !ok || m.shards[shard] == nil {
		return 0
	}
	return m.shards[shard][offset]
}

func (m *arrayMap) Update(key uint64, values []TileValue) error {
	return m.UpdateInt(key, valuesToTiles(values))
}

func (m *arrayMap) UpdateInt(key uint64, tiles []Tile) error {
	shard, offset, ok := m.locate(key)
	if !ok {
		return ErrIDOutOfRange
	}
	if m.shards[shard] == nil {
		return nil
	}
	merged, err := mergeTiles(m.shards[shard][offset], m.overflow, tiles)
	if err != nil {
		return err
	}
	m.shards[shard][offset] = merged
	return nil
}

func (m *arrayMap) GetAllTiles(key uint64) ([]Tile, bool) {
	shard, offset, ok := m.locate(key)
	if !ok || m.shards[shard] == nil || m.shards[shard][offset].IsEmpty() {
		return nil, false
	}
	return expandValue(m.shards[shard][offset], m.overflow), true
}

func (m *arrayMap) Keys() []uint64 {
	out := make([]uint64, 0, m.count)
	for shardIdx, shard := range m.shards {
		if shard == nil {
			continue
		}
		base := uint64(shardIdx) << arrayShardBits
		for offset, v := range shard {
			if !v.IsEmpty() {
				out = append(out, base+uint64(offset))
			}
		}
	}
	return out
}

func (m *arrayMap) Load() float64 {
	total := uint64(len(m.shards)) << arrayShardBits
	if total == 0 {
		return 0
	}
	return float64(m.count) / float64(total)
}

func (m *arrayMap) MissHitRatio() float64 { return 0 }

func (m *arrayMap) Capacity() int { return len(m.shards) << arrayShardBits }

// NewMap constructs a Map backend: an array-backed map if maxID > 0, else a
// hash-backed map sized by initialCapacity (0 means "start small and grow").
func NewMap(initialCapacity int, maxID uint64) Map {
	if maxID > 0 {
		return newArrayMap(maxID)
	}
	return newHashMap(initialCapacity)
}
