package executor

import (
	"runtime"
	"sync"
)

// Executor identity is goroutine-scoped: the dispatch loop (or
// ExecuteBlocking) marks the executing goroutine on entry to an operation
// and restores the previous value on every exit path. Go has no
// goroutine-local storage, so the mapping lives in a package-level registry
// keyed by goroutine id.
var identity = struct {
	mu          sync.RWMutex
	byGoroutine map[uint64]Executor
}{byGoroutine: make(map[uint64]Executor)}

// enter records ex as the executor running on the calling goroutine and
// returns a restore func. The previous value is saved so runs nest
// correctly (e.g. an operation calling ExecuteBlocking on another
// executor).
func enter(ex Executor) (restore func()) {
	id := goroutineID()

	identity.mu.Lock()
	prev, had := identity.byGoroutine[id]
	identity.byGoroutine[id] = ex
	identity.mu.Unlock()

	return func() {
		identity.mu.Lock()
		if had {
			identity.byGoroutine[id] = prev
		} else {
			delete(identity.byGoroutine, id)
		}
		identity.mu.Unlock()
	}
}

func currentExecutor() Executor {
	id := goroutineID()

	identity.mu.RLock()
	ex := identity.byGoroutine[id]
	identity.mu.RUnlock()
	return ex
}

// CurrentExecutorName returns the name of the executor running an operation
// on the calling goroutine, or "" if there is none.
func CurrentExecutorName() string {
	if ex := currentExecutor(); ex != nil {
		return ex.Name()
	}
	return ""
}

// goroutineID parses the current goroutine's id from the "goroutine N"
// header of its stack dump.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
