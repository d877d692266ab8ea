package graph

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// nonce separates node ids minted by this process from any other process
// that might (for debugging purposes only — persistence is a non-goal)
// compare ids across a restart.
var nonce = uint64(time.Now().UnixNano())

var counter atomic.Uint64

// NextID mints a stable, process-unique node id by hashing a monotonic
// counter together with the process-start nonce. xxhash gives a cheap,
// well-distributed 64-bit digest so ids look arbitrary (useful when they
// leak into debug output) without the cost of a cryptographic hash.
func NextID() uint64 {
	n := counter.Add(1)

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], nonce)
	binary.LittleEndian.PutUint64(buf[8:16], n)

	return xxhash.Sum64(buf[:])
}
