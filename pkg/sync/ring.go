package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over a fixed number of slots
type ring struct {
	hashRing *treemap.Map

	// minSlot caches the slot of the smallest hash so wrap-around lookups
	// avoid the O(log n) treemap.Map.Min().
	minSlot int
}

// newRing returns a ring over slots [0, slots), each placed replicationFactor
// times.
func newRing(slots, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for slot := uint(0); slot < slots; slot++ {
		slotHash, _ := murmur3.Sum128(binary.LittleEndian.AppendUint32(nil, uint32(slot)))

		var seed [12]byte
		binary.LittleEndian.PutUint64(seed[:8], slotHash)
		for replica := uint(0); replica < replicationFactor; replica++ {
			binary.LittleEndian.PutUint32(seed[8:], uint32(replica))
			hash, _ := murmur3.Sum128(seed[:])
			hashRing.Put(int64(hash), int(slot))
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minSlot := hashRing.Min(); minSlot != nil {
		r.minSlot = minSlot.(int)
	}
	return r
}

// slot consistently hashes the key onto the ring
func (r *ring) slot(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	if _, slot := r.hashRing.Ceiling(int64(raw)); slot != nil {
		return slot.(int)
	}
	return r.minSlot
}
