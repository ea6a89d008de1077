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
	"math"
	"time"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors/linuxerr"
)

// SignalMask returns the set of signals whose delivery is currently blocked
// for t. It may be called by any thread.
func (t *Thread) SignalMask() linux.SignalSet {
	return linux.SignalSet(t.signalMask.Load())
}

// SetSignalMask installs mask as t's signal mask, with SIGKILL and SIGSTOP
// bits cleared.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) SetSignalMask(mask linux.SignalSet) {
	mask &^= UnblockableSignals
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signalMask.Store(uint64(mask))
}

// SetSavedSignalMask remembers oldmask as the mask to restore after the
// signal interrupting a Sigsuspend has been dispatched.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) SetSavedSignalMask(oldmask linux.SignalSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.savedSignalMask = oldmask
	t.haveSavedSignalMask = true
}

// SavedSignalMask consumes the mask stashed by SetSavedSignalMask; ok is
// false if none is pending restoration.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) SavedSignalMask() (mask linux.SignalSet, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.haveSavedSignalMask {
		return 0, false
	}
	t.haveSavedSignalMask = false
	return t.savedSignalMask, true
}

// onSignalStackLocked returns true if t's stack pointer is currently within
// the given alternate stack.
//
// Preconditions: t.mu must be locked.
func (t *Thread) onSignalStackLocked(alt linux.SignalStack) bool {
	return alt.IsEnabled() && alt.Contains(t.ctx.SP())
}

// SignalStack returns the thread's alternate signal stack descriptor, with
// SS_ONSTACK or SS_DISABLE reported as derived query-only bits.
func (t *Thread) SignalStack() linux.SignalStack {
	t.mu.Lock()
	defer t.mu.Unlock()
	alt := t.signalStack
	if t.onSignalStackLocked(alt) {
		alt.Flags |= linux.SS_ONSTACK
	} else if alt.Size == 0 {
		alt.Flags |= linux.SS_DISABLE
	}
	return alt
}

// SetSignalStack replaces the thread's alternate signal stack descriptor. It
// returns false, leaving the descriptor unchanged, if the thread is
// currently executing on the configured stack; these semantics also apply to
// changing the stack via a ucontext during a signal handler.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) SetSignalStack(alt linux.SignalStack) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onSignalStackLocked(t.signalStack) {
		return false
	}
	if alt.Flags&linux.SS_DISABLE != 0 {
		t.signalStack = linux.SignalStack{Flags: linux.SS_DISABLE}
	} else {
		alt.Flags = 0
		t.signalStack = alt
	}
	return true
}

// PendingSignals returns the set of signals that are both pending (for this
// thread or process-wide) and blocked by t's mask, minus any whose
// disposition is to ignore them.
func (t *Thread) PendingSignals() linux.SignalSet {
	set := t.pendingSet() & t.SignalMask()
	return set &^ t.process.SignalHandlers().IgnoredSignals()
}

// PendingSignals returns the set of signals pending process-wide, not yet
// claimed by any thread.
func (p *Process) PendingSignals() linux.SignalSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.pending()
}

// DequeueSignal removes and returns a pending signal whose number is in the
// given acceptable set, preferring signals directed at t over process-wide
// ones, or nil if none is available.
func (t *Thread) DequeueSignal(acceptable linux.SignalSet) *linux.SignalInfo {
	t.mu.Lock()
	info := t.pending.dequeue(acceptable)
	t.mu.Unlock()
	if info != nil {
		return info
	}
	p := t.process
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.dequeue(acceptable)
}

// pendingSet returns the union of t's and its process's raw pending sets.
func (t *Thread) pendingSet() linux.SignalSet {
	p := t.process
	t.mu.Lock()
	set := t.pending.pending()
	t.mu.Unlock()
	p.mu.Lock()
	set |= p.pending.pending()
	p.mu.Unlock()
	return set
}

// deliverableSignals returns the set of pending signals t could accept
// right now: not blocked by its mask and not ignored by disposition.
func (t *Thread) deliverableSignals() linux.SignalSet {
	set := t.pendingSet() &^ t.SignalMask()
	return set &^ t.process.SignalHandlers().IgnoredSignals()
}

// prepareWait opens a wait epoch: a wakeup delivered any time after
// prepareWait returns is observed by the next call to wait, even if it
// arrives before the thread actually blocks.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) prepareWait() {
	select {
	case <-t.wakeC:
	default:
	}
}

// wait blocks until the thread is woken or, if deadline is non-zero, until
// the deadline passes, in which case it returns linuxerr.ErrTimeout. A nil
// return means a wakeup was consumed; spurious wakeups are possible and the
// caller must re-check its predicate.
//
// Preconditions: The caller must be running on the thread t, after a
// prepareWait within the same wait epoch.
func (t *Thread) wait(deadline time.Time) error {
	if deadline.IsZero() {
		<-t.wakeC
		return nil
	}
	d := time.Until(deadline)
	if d <= 0 {
		return linuxerr.ErrTimeout
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.wakeC:
		return nil
	case <-timer.C:
		return linuxerr.ErrTimeout
	}
}

// interrupt wakes the thread if it is blocked in wait, or arranges for its
// next wait in the current epoch to return immediately. Repeated interrupts
// collapse into one wakeup.
func (t *Thread) interrupt() {
	select {
	case t.wakeC <- struct{}{}:
	default:
	}
}

// SendSignal posts info to this thread's pending queue. If the signal
// number is zero, the call is purely an existence probe: nothing is queued
// and no thread is woken. Otherwise, if the target is not the caller, the
// target is woken.
//
// The caller must hold a reference on t (see Process.LookupThread).
func (t *Thread) SendSignal(caller *Thread, info *linux.SignalInfo) error {
	sig := info.Signal()
	if sig == 0 {
		return nil
	}
	if !sig.IsValid() {
		return linuxerr.EINVAL
	}
	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return linuxerr.ESRCH
	}
	t.pending.enqueue(info)
	t.mu.Unlock()
	if t != caller {
		t.interrupt()
	}
	return nil
}

// SetSigAction installs a new disposition for sig in the process's handler
// table, returning the previous one. When the new disposition is to ignore
// the signal, instances already queued process-wide or at any thread are
// discarded, as Linux does.
func (p *Process) SetSigAction(sig linux.Signal, actptr *linux.SigAction) (linux.SigAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	oldact, err := p.handlers.SetSigAction(sig, actptr)
	if err != nil || actptr == nil || !actptr.IsIgnore() {
		return oldact, err
	}
	set := linux.SignalSetOf(sig)
	p.pending.discard(set)
	for _, t := range p.threads {
		t.mu.Lock()
		t.pending.discard(set)
		t.mu.Unlock()
	}
	return oldact, nil
}

// SendSignal posts info to the process-wide pending queue and, if the
// calling thread cannot accept the signal itself, wakes at most one thread
// that can ("one-shot": never a broadcast). The absence of any acceptable
// thread is not an error; the signal stays pending for whichever thread
// unblocks it later.
//
// A zero signal number is a no-op success.
func (p *Process) SendSignal(caller *Thread, info *linux.SignalInfo) error {
	sig := info.Signal()
	if sig == 0 {
		return nil
	}
	if !sig.IsValid() {
		return linuxerr.EINVAL
	}
	p.mu.Lock()
	p.pending.enqueue(info)
	p.mu.Unlock()

	if caller != nil && !caller.internal && caller.SignalMask()&linux.SignalSetOf(sig) == 0 {
		// The caller can handle this signal as part of its own normal
		// dispatch; no wakeup needed.
		return nil
	}

	var target *Thread
	p.mu.Lock()
	p.forEachThreadLocked(func(t *Thread) bool {
		if t.internal || t.SignalMask()&linux.SignalSetOf(sig) != 0 {
			return true
		}
		if !t.TryIncRef() {
			return true
		}
		target = t
		return false
	})
	p.mu.Unlock()
	if target != nil {
		target.interrupt()
		target.DecRef()
	}
	return nil
}

// Sigsuspend atomically installs tempMask (filtered) as t's mask and blocks
// until a deliverable signal is pending. The previous mask is stashed for
// restoration after the interrupting signal's handler has run. On success
// the return is always linuxerr.ErrInterrupted; delivery of the woken signal
// happens through the normal dispatch path, not here.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) Sigsuspend(tempMask linux.SignalSet) error {
	oldmask := t.SignalMask()
	t.SetSignalMask(tempMask)
	t.SetSavedSignalMask(oldmask)

	t.prepareWait()
	for t.deliverableSignals() == 0 {
		t.wait(time.Time{})
	}
	return linuxerr.ErrInterrupted
}

// Sigtimedwait blocks until a signal in set is pending and returns it, or
// until the timeout expires. A timeout of 0 polls without blocking; a
// negative timeout means wait forever. On return t's mask is always the one
// it had on entry, whatever the outcome.
//
// The set of signals t blocks is temporarily reduced so that exactly the
// signals in set become deliverable while waiting.
//
// There is a known race here, inherited deliberately: a signal observed as
// pending may be claimed by a sibling thread before this thread pops it, in
// which case the call reports ErrInterrupted with no info.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) Sigtimedwait(set linux.SignalSet, timeout time.Duration) (*linux.SignalInfo, error) {
	set &^= UnblockableSignals

	oldmask := t.SignalMask()
	t.SetSignalMask(oldmask &^ set)
	t.mu.Lock()
	t.realSignalMask = oldmask
	t.mu.Unlock()
	defer func() {
		t.SetSignalMask(oldmask)
		t.mu.Lock()
		t.realSignalMask = 0
		t.mu.Unlock()
	}()

	var deadline time.Time
	if timeout >= 0 && timeout != math.MaxInt64 {
		deadline = time.Now().Add(timeout)
	}

	// An explicit wait pops a signal even if its disposition is to ignore
	// it, so the predicate is pending-in-set, not deliverable.
	timedOut := false
	t.prepareWait()
	for t.pendingSet()&set == 0 {
		if err := t.wait(deadline); err == linuxerr.ErrTimeout {
			timedOut = true
			break
		}
	}

	if info := t.DequeueSignal(set); info != nil {
		return info, nil
	}
	if timedOut {
		return nil, linuxerr.ErrTimeout
	}
	return nil, linuxerr.ErrInterrupted
}

// SignalReturn completes a sigreturn: the signal mask bundled with the
// interrupted context is reinstated (filtered) and the restored guest
// address is installed through the host backend, which on VM-like substrates
// routes it via the sysret trampoline rather than the context itself.
//
// Preconditions: The caller must be running on the thread t.
func (t *Thread) SignalReturn() (uintptr, error) {
	ctx := t.ctx
	t.SetSignalMask(ctx.SavedSignalMask())
	t.process.k.backend.RestoreReturn(ctx, ctx.SavedIP())
	return ctx.ReturnValue(), nil
}
