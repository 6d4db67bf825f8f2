package memory

import (
	"context"
	"sync"
)

type op uint8

const (
	opCreate op = iota
	opSignIn
	opSignOut
	opSave
	opFetch
	opCount
)

type fault struct {
	err       error
	remaining int // < 0 means unlimited
}

// faults injects errors and blocking into provider calls.
type faults struct {
	mu   sync.Mutex
	byOp [opCount]fault
	gate chan struct{}
}

func (f *faults) set(o op, err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOp[o] = fault{err: err, remaining: n}
}

func (f *faults) hold() func() {
	f.mu.Lock()
	gate := make(chan struct{})
	f.gate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *faults) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOp = [opCount]fault{}
	f.gate = nil
}

// wait blocks on an active hold, then returns the injected error for o.
// A context that ends while held is returned as is; the caller normalizes it.
func (f *faults) wait(ctx context.Context, o op) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	flt := &f.byOp[o]
	if flt.err == nil || flt.remaining == 0 {
		return nil
	}
	if flt.remaining > 0 {
		flt.remaining--
	}
	return flt.err
}
