package testutil

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Epoch is the first instant returned by a DeterministicClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock for tests that advances one
// second per reading, starting at Epoch.
//
// It can be reset, so the same scenario run twice records identical
// timestamps.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first reading is Epoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now returns the next instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.seq) * time.Second)
	c.seq++
	return t
}

// Readings returns how many times Now has been called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// SequentialIDs generates version 7 UUIDs whose node bytes count up from
// 1. The timestamp bytes are zero, so ids sort in generation order.
type SequentialIDs struct {
	mu sync.Mutex
	n  uint64
}

// NewSequentialIDs creates a generator whose first id ends in ...0001.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Next returns the next id. It never fails; the error matches the
// signature of uuid.NewV7.
func (g *SequentialIDs) Next() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], g.n)
	id[6] = 0x70
	id[8] = (id[8] & 0x3f) | 0x80
	return id, nil
}
