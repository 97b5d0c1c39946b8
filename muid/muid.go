// Package muid generates compact, monotonically-ordered identifiers used to
// tag state machine instances, dispatched events, and lifecycle-bus payloads
// for log correlation. The layout packs a millisecond timestamp, a per-
// process machine id, and a per-millisecond counter into a single uint64,
// in the spirit of Twitter's Snowflake scheme.
package muid

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// epoch is the reference point IDs are timestamped against; chosen so the
// 40-bit timestamp lane does not roll over until long after any reasonable
// process lifetime.
const epoch = 1_700_000_000_000 // 2023-11-14T22:13:20Z, in unix millis

const (
	timestampBits = 40
	machineBits   = 14
	counterBits   = 64 - timestampBits - machineBits

	counterMask = 1<<counterBits - 1
)

// ID is a single generated identifier. Values increase monotonically for a
// given process as long as the system clock does not move backwards, and
// String renders them compactly for logs.
type ID uint64

// String returns the base32 encoding of the ID, the same representation
// used throughout the runtime's structured log fields.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 32)
}

// Generator produces IDs tagged with a fixed machine id. The zero value is
// not usable; construct one with NewGenerator.
type Generator struct {
	machineID uint64
	// state packs the last-seen timestamp (high bits) and the counter used
	// within that millisecond (low bits); updated via CAS so Next is safe
	// for concurrent callers without a mutex.
	state atomic.Uint64
}

// NewGenerator builds a Generator for machineID, masked to the 14 bits the
// layout reserves for it.
func NewGenerator(machineID uint64) *Generator {
	return &Generator{machineID: machineID & (1<<machineBits - 1)}
}

// Next returns the next ID from the generator, resolving counter overflow
// within a millisecond by advancing to the next virtual millisecond rather
// than blocking.
func (g *Generator) Next() ID {
	for {
		now := uint64(time.Now().UnixMilli() - epoch)
		prev := g.state.Load()
		lastTimestamp := prev >> counterBits
		counter := prev & counterMask

		if now < lastTimestamp {
			now = lastTimestamp // clock moved backwards; don't go back in time
		}
		switch {
		case now == lastTimestamp && counter >= counterMask:
			now++
			counter = 1
		case now == lastTimestamp:
			counter++
		default:
			counter = 1
		}

		next := (now << counterBits) | counter
		if g.state.CompareAndSwap(prev, next) {
			return ID(now<<(machineBits+counterBits) | g.machineID<<counterBits | counter)
		}
	}
}

var defaultGenerator = NewGenerator(machineID())

// machineID derives a stable-ish per-process id from the hostname, falling
// back to a random value when the hostname is unavailable.
func machineID() uint64 {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		var b [8]byte
		_, _ = rand.Read(b[:])
		return binary.BigEndian.Uint64(b[:])
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(hostname))
	return h.Sum64()
}

// New generates an ID from the package-level default generator.
func New() ID {
	return defaultGenerator.Next()
}

// NewString is a convenience wrapper around New().String().
func NewString() string {
	return New().String()
}
