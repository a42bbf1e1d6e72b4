//go:build locationdebug

package provider

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
)

const debugBuild = true

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// accessGuard panics when a second goroutine enters the provider while another
// one is inside it. Re-entry from the owning goroutine, such as a consumer
// calling Stop from PositionChanged, is allowed.
type accessGuard struct {
	owner atomic.Int64
	depth int32 // Only touched by the owner
}

func (g *accessGuard) enter() func() {
	id := goroutineID()
	if g.owner.Load() != id {
		if !g.owner.CompareAndSwap(0, id) {
			panic("location provider entered concurrently from more than one goroutine")
		}
	}
	g.depth++
	return func() {
		g.depth--
		if g.depth == 0 {
			g.owner.Store(0)
		}
	}
}

// goroutineID parses the id out of the "goroutine N [" stack header.
func goroutineID() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("cannot parse goroutine id: %v", err))
	}
	return id
}
