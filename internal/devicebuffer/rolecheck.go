package devicebuffer

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
)

// debugAssertions gates role affinity assertions and internal consistency
// checks globally. Off by default because goroutine identity lookup walks
// the stack, which is too expensive for release mode audio callbacks.
var debugAssertions atomic.Bool

// EnableDebugAssertions turns role affinity assertions and internal
// consistency checks on or off. Intended to be wired to the debug
// configuration flag at startup.
func EnableDebugAssertions(enabled bool) {
	debugAssertions.Store(enabled)
}

// roleGuard asserts that all calls bound to one execution role happen on a
// single goroutine. The guard binds to the first goroutine that calls check
// after construction or detach, mirroring how platform audio threads attach
// lazily on the first callback of a session.
type roleGuard struct {
	role string
	gid  atomic.Int64 // 0 means detached
}

// check panics when called from a different goroutine than the one the guard
// is bound to. A detached guard binds to the calling goroutine. No-op unless
// debug assertions are enabled.
func (g *roleGuard) check() {
	if !debugAssertions.Load() {
		return
	}
	id := currentGoroutineID()
	bound := g.gid.Load()
	if bound == 0 {
		if g.gid.CompareAndSwap(0, id) {
			return
		}
		bound = g.gid.Load()
	}
	if bound != id {
		panic(fmt.Sprintf("devicebuffer: %s role called from goroutine %d, bound to goroutine %d",
			g.role, id, bound))
	}
}

// detach unbinds the guard so the next check call binds a new goroutine.
// Called on start so each media session may use a fresh platform thread.
func (g *roleGuard) detach() {
	g.gid.Store(0)
}

// currentGoroutineID extracts the numeric goroutine id from the stack
// header. The runtime offers no public accessor for this on purpose; the
// parse is confined to debug assertions.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header shape: "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
