package graph

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns a best-effort unique identifier for the calling
// goroutine. Go deliberately exposes no public API for this, so this
// parses the "goroutine N [running]:" header that runtime.Stack always
// writes first. It runs on every tracked read (Node.Snapshot, and so every
// Observer.Get/GetSnapshot), inside or outside an evaluation, because that
// is how a read finds out whether a Recorder is active on its goroutine; a
// tracked read therefore formats a small stack trace and takes the
// recorder map's read lock, and is not wait-free. Only
// Node.SnapshotUntracked skips this and is a bare atomic load.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
