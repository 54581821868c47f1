// Package snowflake generates time-sortable 64-bit IDs for training examples.
//
// Layout (64 bits):
//
//	┌─────────┬─────────────────────┬────────────┬──────────────┐
//	│ 1 bit   │      41 bits        │  10 bits   │   12 bits    │
//	│ sign(0) │ timestamp (ms)      │  node_id   │  sequence    │
//	└─────────┴─────────────────────┴────────────┴──────────────┘
//
// Ordering by ID equals submission order on one node, which keeps corpus listings stable.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Custom epoch: 2024-01-01 00:00:00 UTC
	epoch int64 = 1704067200000

	nodeIDBits   = 10
	sequenceBits = 12

	maxNodeID   = (1 << nodeIDBits) - 1 // 1023
	maxSequence = (1 << sequenceBits) - 1

	timestampShift = nodeIDBits + sequenceBits
	nodeIDShift    = sequenceBits

	// clock regressions up to this size are waited out instead of failing
	maxClockDrift = 5 * time.Millisecond
)

var (
	ErrInvalidNodeID  = errors.New("node ID must be between 0 and 1023")
	ErrClockMovedBack = errors.New("clock moved backwards")
)

// Generator generates unique IDs. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewGenerator creates a generator for nodeID (0-1023).
func NewGenerator(nodeID int64) (*Generator, error) {
	return newGenerator(nodeID, time.Now, time.Sleep)
}

func newGenerator(nodeID int64, now func() time.Time, sleep func(time.Duration)) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{nodeID: nodeID, now: now, sleep: sleep}, nil
}

// Generate returns the next ID.
func (g *Generator) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastTime {
		drift := time.Duration(g.lastTime-ms) * time.Millisecond
		if drift > maxClockDrift {
			return 0, ErrClockMovedBack
		}
		ms = g.waitUntil(g.lastTime)
	}

	if ms == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			ms = g.waitUntil(g.lastTime + 1)
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = ms

	return ((ms - epoch) << timestampShift) | (g.nodeID << nodeIDShift) | g.sequence, nil
}

func (g *Generator) waitUntil(target int64) int64 {
	ms := g.now().UnixMilli()
	for ms < target {
		g.sleep(100 * time.Microsecond)
		ms = g.now().UnixMilli()
	}
	return ms
}

// Parse extracts components from an ID.
func Parse(id int64) (timestamp time.Time, nodeID int64, sequence int64) {
	timestamp = Timestamp(id)
	nodeID = (id >> nodeIDShift) & maxNodeID
	sequence = id & maxSequence
	return
}

// Timestamp extracts the creation time from an ID.
func Timestamp(id int64) time.Time {
	return time.UnixMilli((id >> timestampShift) + epoch)
}
