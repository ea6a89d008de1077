// Copyright 2026 The VeilOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"fmt"
	"sync/atomic"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/platform"
	"veilos.dev/veilos/pkg/sync"
	"veilos.dev/veilos/pkg/usermem"
)

// ThreadID is a thread identifier (tid).
type ThreadID int32

// String returns a decimal representation of the ThreadID.
func (tid ThreadID) String() string {
	return fmt.Sprintf("%d", tid)
}

// ProcessID is a process (thread group) identifier (pid/tgid).
type ProcessID int32

// ProcessGroupID is a process group identifier (pgid).
type ProcessGroupID int32

// A Process is a thread group: the set of threads sharing one signal
// disposition table and one process-wide pending queue.
type Process struct {
	// k is the owning Kernel. Immutable.
	k *Kernel

	// id is this process's pid. Immutable.
	id ProcessID

	// idMu protects pgid.
	idMu sync.RWMutex

	// pgid is this process's process group.
	pgid ProcessGroupID

	// mu protects the fields below. In paths that also need a Thread.mu,
	// mu is acquired first.
	mu sync.Mutex

	// threads is every live thread, in creation order. The one-shot wake
	// search walks this slice so that delivery order is deterministic.
	threads []*Thread

	// threadsByID indexes threads by tid.
	threadsByID map[ThreadID]*Thread

	// lastTID is the most recently allocated tid.
	lastTID ThreadID

	// handlers is the shared signal disposition table. The pointer is
	// replaced wholesale on exec.
	handlers *SignalHandlers

	// pending is the process-wide ("undirected") pending queue.
	pending pendingSignals
}

// ID returns the process's pid.
func (p *Process) ID() ProcessID {
	return p.id
}

// Kernel returns the owning kernel.
func (p *Process) Kernel() *Kernel {
	return p.k
}

// ProcessGroup returns the process's pgid.
func (p *Process) ProcessGroup() ProcessGroupID {
	p.idMu.RLock()
	defer p.idMu.RUnlock()
	return p.pgid
}

// SetProcessGroup moves the process to the given process group.
func (p *Process) SetProcessGroup(pgid ProcessGroupID) {
	p.idMu.Lock()
	defer p.idMu.Unlock()
	p.pgid = pgid
}

// SignalHandlers returns the current disposition table handle.
func (p *Process) SignalHandlers() *SignalHandlers {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers
}

// Exec reinitializes the disposition table for an exec-equivalent
// transition: handled signals revert to the default action, ignored signals
// stay ignored, and thread masks are untouched.
func (p *Process) Exec() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = p.handlers.CopyForExec()
}

// ThreadConfig configures a new thread.
type ThreadConfig struct {
	// TID is the new thread's identifier; 0 means allocate the next free
	// one.
	TID ThreadID

	// Creator, if not nil, is the thread whose signal mask the new thread
	// inherits.
	Creator *Thread

	// Context is the thread's execution context. Required.
	Context platform.Context

	// Memory grants access to the thread's guest memory. Required for
	// threads entering the syscall surface.
	Memory usermem.IO

	// Internal marks a background thread that never handles application
	// signals.
	Internal bool
}

// NewThread creates a thread in p. The thread holds one reference on itself,
// dropped by Exit.
func (p *Process) NewThread(cfg ThreadConfig) (*Thread, error) {
	if cfg.Context == nil {
		return nil, linuxerr.EINVAL
	}
	t := &Thread{
		process:  p,
		internal: cfg.Internal,
		ctx:      cfg.Context,
		memory:   cfg.Memory,
		wakeC:    make(chan struct{}, 1),
	}
	t.refCount.Store(1)
	if cfg.Creator != nil {
		t.signalMask.Store(uint64(cfg.Creator.SignalMask()))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	tid := cfg.TID
	if tid == 0 {
		tid = p.lastTID + 1
		for {
			if _, ok := p.threadsByID[tid]; !ok {
				break
			}
			tid++
		}
	} else if tid < 0 {
		return nil, linuxerr.EINVAL
	} else if _, ok := p.threadsByID[tid]; ok {
		return nil, linuxerr.EBUSY
	}
	t.id = tid
	if tid > p.lastTID {
		p.lastTID = tid
	}
	p.threads = append(p.threads, t)
	p.threadsByID[tid] = t
	return t, nil
}

// LookupThread returns the live thread with the given tid, with a reference
// pinned, or nil if no such thread exists. The caller must DecRef the result
// when done.
func (p *Process) LookupThread(tid ThreadID) *Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.threadsByID[tid]
	if t == nil || !t.TryIncRef() {
		return nil
	}
	return t
}

// forEachThreadLocked applies f to each live thread in creation order,
// stopping early if f returns false.
//
// Preconditions: p.mu must be locked.
func (p *Process) forEachThreadLocked(f func(t *Thread) bool) {
	for _, t := range p.threads {
		if !f(t) {
			return
		}
	}
}

// removeThreadLocked unlinks t from the thread set.
//
// Preconditions: p.mu must be locked.
func (p *Process) removeThreadLocked(t *Thread) {
	delete(p.threadsByID, t.id)
	for i, other := range p.threads {
		if other == t {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			break
		}
	}
}

// A Thread is a single guest thread. Signal masks and alternate stack state
// are per-thread; dispositions are shared through the owning Process.
//
// Threads are reference counted. Any path that posts a signal to a thread
// other than itself must pin the target (LookupThread or IncRef) so that a
// concurrent exit cannot destroy it mid-operation.
type Thread struct {
	// process is the owning Process. Immutable.
	process *Process

	// id is this thread's tid. Immutable after NewThread.
	id ThreadID

	// internal marks a background thread invisible to application signal
	// delivery. Immutable.
	internal bool

	// ctx is the thread's saved execution context. Immutable pointer; the
	// state behind it is owned by the platform.
	ctx platform.Context

	// memory accesses the thread's guest memory. Immutable.
	memory usermem.IO

	// refCount counts pins on this thread. The thread's own reference is
	// dropped by Exit.
	refCount atomic.Int64

	// signalMask is the set of signals whose delivery is currently
	// blocked. It is read with atomic loads so signal senders need not
	// take mu; writes require mu and are performed only by the owning
	// thread's syscalls.
	signalMask atomic.Uint64

	// mu protects the fields below.
	mu sync.Mutex

	// realSignalMask is the mask temporarily displaced by Sigtimedwait,
	// or 0 when no such wait is in progress.
	realSignalMask linux.SignalSet

	// If haveSavedSignalMask is true, savedSignalMask is the mask that
	// must be restored once the signal interrupting a Sigsuspend has been
	// dispatched.
	haveSavedSignalMask bool
	savedSignalMask     linux.SignalSet

	// signalStack is the thread's alternate signal stack descriptor.
	signalStack linux.SignalStack

	// pending holds signals directed at exactly this thread.
	pending pendingSignals

	// exited is set once Exit runs; late signal posts find the thread
	// missing from the registry instead.
	exited bool

	// wakeC is the wait coordinator's wake token: capacity one, so a
	// wakeup delivered between predicate checks is never lost and
	// repeated wakeups collapse.
	wakeC chan struct{}
}

// ID returns the thread's tid.
func (t *Thread) ID() ThreadID {
	return t.id
}

// Process returns the owning process.
func (t *Thread) Process() *Process {
	return t.process
}

// Context returns the thread's execution context.
func (t *Thread) Context() platform.Context {
	return t.ctx
}

// IncRef pins the thread.
func (t *Thread) IncRef() {
	if t.refCount.Add(1) <= 1 {
		panic("kernel.Thread.IncRef() on released thread")
	}
}

// TryIncRef attempts to pin the thread, failing if all references have
// already been dropped.
func (t *Thread) TryIncRef() bool {
	for {
		refs := t.refCount.Load()
		if refs <= 0 {
			return false
		}
		if t.refCount.CompareAndSwap(refs, refs+1) {
			return true
		}
	}
}

// DecRef releases a pin taken with IncRef, TryIncRef or LookupThread.
func (t *Thread) DecRef() {
	refs := t.refCount.Add(-1)
	switch {
	case refs < 0:
		panic("kernel.Thread.DecRef() on released thread")
	case refs == 0:
		t.destroy()
	}
}

// Exit removes the thread from its process and drops the thread's own
// reference. The thread's mask and alternate stack die with it; its directed
// pending signals are discarded.
func (t *Thread) Exit() {
	p := t.process
	p.mu.Lock()
	t.mu.Lock()
	t.exited = true
	t.mu.Unlock()
	p.removeThreadLocked(t)
	p.mu.Unlock()
	t.DecRef()
}

func (t *Thread) destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = pendingSignals{}
}
