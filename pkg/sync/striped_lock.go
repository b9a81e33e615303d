// Package sync provides key partitioned locking.
package sync

import (
	"sort"
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space to a fixed set of locks, bounding memory while keeping unrelated keys
// mostly uncontended.
type StripedLock struct {
	locks    []base.RWMutex
	hashRing *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks:    make([]base.RWMutex, stripes),
		hashRing: newRing(stripes, hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.hashRing.slot(key)]
}

// LockKey is a key to acquire with LockAll, and whether it's held exclusively.
type LockKey struct {
	Key       []byte
	Exclusive bool
}

// LockAll acquires the locks for every key and returns a func releasing them.
//
// Stripes are acquired in ascending order, so concurrent LockAll calls over
// overlapping key sets cannot deadlock. A stripe shared by several keys is
// taken once, exclusively if any of its keys is exclusive.
func (l *StripedLock) LockAll(keys ...LockKey) (unlock func()) {
	exclusive := make(map[int]bool)
	for _, k := range keys {
		slot := l.hashRing.slot(k.Key)
		exclusive[slot] = exclusive[slot] || k.Exclusive
	}

	slots := make([]int, 0, len(exclusive))
	for slot := range exclusive {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	for _, slot := range slots {
		if exclusive[slot] {
			l.locks[slot].Lock()
		} else {
			l.locks[slot].RLock()
		}
	}

	return func() {
		for i := len(slots) - 1; i >= 0; i-- {
			slot := slots[i]
			if exclusive[slot] {
				l.locks[slot].Unlock()
			} else {
				l.locks[slot].RUnlock()
			}
		}
	}
}
