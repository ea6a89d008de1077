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
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/platform"
	"veilos.dev/veilos/pkg/sync"
)

type transportCall struct {
	kind   string
	sender ProcessID
	target ProcessID
	tid    ThreadID
	sig    linux.Signal
}

type recordingTransport struct {
	mu    sync.Mutex
	err   error
	calls []transportCall
}

func (tr *recordingTransport) record(c transportCall) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, c)
	return tr.err
}

func (tr *recordingTransport) DeliverToProcess(sender, target ProcessID, sig linux.Signal) error {
	return tr.record(transportCall{kind: "process", sender: sender, target: target, sig: sig})
}

func (tr *recordingTransport) DeliverToThread(sender ProcessID, tgid ProcessID, tid ThreadID, sig linux.Signal) error {
	return tr.record(transportCall{kind: "thread", sender: sender, target: tgid, tid: tid, sig: sig})
}

func (tr *recordingTransport) DeliverToAll(sender ProcessID, sig linux.Signal) error {
	return tr.record(transportCall{kind: "all", sender: sender, sig: sig})
}

func (tr *recordingTransport) recorded() []transportCall {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]transportCall(nil), tr.calls...)
}

func newTestKernel(t *testing.T, pid ProcessID) (*Kernel, *recordingTransport) {
	t.Helper()
	tr := &recordingTransport{}
	k, err := New(Config{
		PID:       pid,
		PGID:      ProcessGroupID(pid),
		Transport: tr,
		Backend:   platform.Direct{},
	})
	if err != nil {
		t.Fatalf("New(pid=%d) failed: %v", pid, err)
	}
	return k, tr
}

func newTestThread(t *testing.T, k *Kernel, tid ThreadID) (*Thread, *platform.SimContext) {
	t.Helper()
	ctx := platform.NewSimContext(0x1000, 0x7fff_0000)
	thread, err := k.Process().NewThread(ThreadConfig{TID: tid, Context: ctx})
	if err != nil {
		t.Fatalf("NewThread(tid=%d) failed: %v", tid, err)
	}
	return thread, ctx
}

func TestNewValidation(t *testing.T) {
	tr := &recordingTransport{}
	for _, test := range []struct {
		name string
		cfg  Config
	}{
		{"zero pid", Config{Transport: tr, Backend: platform.Direct{}}},
		{"negative pid", Config{PID: -1, Transport: tr, Backend: platform.Direct{}}},
		{"nil transport", Config{PID: 1, Backend: platform.Direct{}}},
		{"nil backend", Config{PID: 1, Transport: tr}},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := New(test.cfg); !linuxerr.Equals(linuxerr.EINVAL, err) {
				t.Errorf("New() = %v, want EINVAL", err)
			}
		})
	}
}

func TestSigActionRejectsUntouchables(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	sh := k.Process().SignalHandlers()
	act := linux.SigAction{Handler: 0x4000}
	for _, sig := range []linux.Signal{0, 65, -1, linux.SIGKILL, linux.SIGSTOP} {
		if _, err := sh.SetSigAction(sig, &act); !linuxerr.Equals(linuxerr.EINVAL, err) {
			t.Errorf("SetSigAction(%d) = %v, want EINVAL", sig, err)
		}
	}
}

func TestSigActionSwap(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	sh := k.Process().SignalHandlers()

	act := linux.SigAction{
		Handler: 0x4000,
		Flags:   linux.SA_RESTORER,
		Mask:    linux.MakeSignalSet(linux.SIGUSR2, linux.SIGKILL, linux.SIGSTOP),
	}
	old, err := sh.SetSigAction(linux.SIGUSR1, &act)
	if err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}
	if want := (linux.SigAction{}); old != want {
		t.Errorf("initial action = %+v, want default", old)
	}

	// The stored handler-entry mask must have KILL and STOP cleared.
	got, err := sh.SigAction(linux.SIGUSR1)
	if err != nil {
		t.Fatalf("SigAction failed: %v", err)
	}
	want := act
	want.Mask = linux.MakeSignalSet(linux.SIGUSR2)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored action mismatch (-want +got):\n%s", diff)
	}

	// Query without replacement returns the stored action unchanged.
	old, err = sh.SetSigAction(linux.SIGUSR1, nil)
	if err != nil {
		t.Fatalf("SetSigAction(query) failed: %v", err)
	}
	if old != want {
		t.Errorf("queried action = %+v, want %+v", old, want)
	}
}

func TestSignalHandlersFork(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	sh := k.Process().SignalHandlers()
	act := linux.SigAction{Handler: 0x4000, Flags: linux.SA_RESTORER}
	if _, err := sh.SetSigAction(linux.SIGTERM, &act); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}

	fork := sh.Fork()
	got, _ := fork.SigAction(linux.SIGTERM)
	if got != act {
		t.Errorf("forked action = %+v, want %+v", got, act)
	}

	// Changing the fork must not touch the parent.
	ign := linux.SigAction{Handler: linux.SIG_IGN}
	if _, err := fork.SetSigAction(linux.SIGTERM, &ign); err != nil {
		t.Fatalf("SetSigAction on fork failed: %v", err)
	}
	if got, _ := sh.SigAction(linux.SIGTERM); got != act {
		t.Errorf("parent action changed to %+v after fork mutation", got)
	}
}

func TestCopyForExec(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	sh := k.Process().SignalHandlers()
	caught := linux.SigAction{Handler: 0x4000, Flags: linux.SA_RESTORER}
	ignored := linux.SigAction{Handler: linux.SIG_IGN}
	if _, err := sh.SetSigAction(linux.SIGTERM, &caught); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}
	if _, err := sh.SetSigAction(linux.SIGCHLD, &ignored); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}

	ex := sh.CopyForExec()
	if got, _ := ex.SigAction(linux.SIGTERM); !got.IsDefault() {
		t.Errorf("caught action after exec = %+v, want default", got)
	}
	if got, _ := ex.SigAction(linux.SIGCHLD); !got.IsIgnore() {
		t.Errorf("ignored action after exec = %+v, want ignore", got)
	}
}

func TestSetSignalMaskFiltersUnblockable(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)

	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGKILL, linux.SIGSTOP, linux.SIGUSR1))
	if got, want := thread.SignalMask(), linux.MakeSignalSet(linux.SIGUSR1); got != want {
		t.Errorf("SignalMask() = %#x, want %#x", got, want)
	}
}

func TestThreadInheritsCreatorMask(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	parent, _ := newTestThread(t, k, 1)
	parent.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1, linux.SIGTERM))

	child, err := k.Process().NewThread(ThreadConfig{
		TID:     2,
		Creator: parent,
		Context: platform.NewSimContext(0x1000, 0x7ffe_0000),
	})
	if err != nil {
		t.Fatalf("NewThread failed: %v", err)
	}
	if got, want := child.SignalMask(), parent.SignalMask(); got != want {
		t.Errorf("child mask = %#x, want %#x", got, want)
	}
}

func TestSignalStackLifecycle(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, ctx := newTestThread(t, k, 1)

	// Default state reports SS_DISABLE.
	if got := thread.SignalStack(); got.Flags&linux.SS_DISABLE == 0 {
		t.Errorf("initial stack = %+v, want SS_DISABLE", got)
	}

	alt := linux.SignalStack{Addr: 0x2000_0000, Size: 0x10000}
	if !thread.SetSignalStack(alt) {
		t.Fatal("SetSignalStack failed while off-stack")
	}
	got := thread.SignalStack()
	if got.Addr != alt.Addr || got.Size != alt.Size {
		t.Errorf("stack = %+v, want %+v", got, alt)
	}

	// Once the stack pointer is inside the configured stack, the
	// descriptor is frozen and reports SS_ONSTACK.
	ctx.SetSP(alt.Addr + alt.Size/2)
	if got := thread.SignalStack(); got.Flags&linux.SS_ONSTACK == 0 {
		t.Errorf("on-stack descriptor = %+v, want SS_ONSTACK", got)
	}
	if thread.SetSignalStack(linux.SignalStack{Addr: 0x3000_0000, Size: 0x10000}) {
		t.Error("SetSignalStack succeeded while on-stack")
	}
	if got := thread.SignalStack(); got.Addr != alt.Addr {
		t.Errorf("descriptor changed to %+v after failed set", got)
	}

	// Disabling clears the configuration.
	ctx.SetSP(0x7fff_0000)
	if !thread.SetSignalStack(linux.SignalStack{Flags: linux.SS_DISABLE}) {
		t.Fatal("SetSignalStack(SS_DISABLE) failed")
	}
	if got := thread.SignalStack(); got.Addr != 0 || got.Size != 0 || got.Flags&linux.SS_DISABLE == 0 {
		t.Errorf("disabled stack = %+v, want zero with SS_DISABLE", got)
	}
}

func TestPendingDeduplicates(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1))

	// Both posts succeed although the second instance is dropped.
	for i := 0; i < 2; i++ {
		if err := thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 1)); err != nil {
			t.Fatalf("SendSignal #%d failed: %v", i, err)
		}
	}
	if got, want := thread.PendingSignals(), linux.MakeSignalSet(linux.SIGUSR1); got != want {
		t.Errorf("PendingSignals() = %#x, want %#x", got, want)
	}
	if info := thread.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR1)); info == nil {
		t.Fatal("DequeueSignal returned nil")
	}
	if info := thread.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR1)); info != nil {
		t.Errorf("second DequeueSignal returned %+v, want nil", info)
	}
}

func TestPendingBlockedUntilUnblocked(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGTERM))

	if err := k.Process().SendSignal(nil, SignalInfoUser(linux.SIGTERM, 2)); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}
	if got, want := thread.PendingSignals(), linux.MakeSignalSet(linux.SIGTERM); got != want {
		t.Errorf("PendingSignals() = %#x, want %#x", got, want)
	}
	if got := thread.deliverableSignals(); got != 0 {
		t.Errorf("deliverableSignals() = %#x while blocked, want 0", got)
	}

	info, err := thread.Sigtimedwait(linux.MakeSignalSet(linux.SIGTERM), 0)
	if err != nil {
		t.Fatalf("Sigtimedwait failed: %v", err)
	}
	if got := linux.Signal(info.Signo); got != linux.SIGTERM {
		t.Errorf("Sigtimedwait popped signal %d, want SIGTERM", got)
	}
	if got := info.PID(); got != 2 {
		t.Errorf("siginfo sender pid = %d, want 2", got)
	}
	if info.Code != linux.SI_USER {
		t.Errorf("siginfo code = %d, want SI_USER", info.Code)
	}
}

func TestDequeuePrefersThreadQueue(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1))

	if err := k.Process().SendSignal(nil, SignalInfoUser(linux.SIGUSR1, 2)); err != nil {
		t.Fatalf("process SendSignal failed: %v", err)
	}
	if err := thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 3)); err != nil {
		t.Fatalf("thread SendSignal failed: %v", err)
	}

	info := thread.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR1))
	if info == nil {
		t.Fatal("DequeueSignal returned nil")
	}
	if info.Code != linux.SI_TKILL {
		t.Errorf("first dequeue code = %d, want the thread-directed SI_TKILL", info.Code)
	}
	info = thread.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR1))
	if info == nil {
		t.Fatal("second DequeueSignal returned nil")
	}
	if info.Code != linux.SI_USER {
		t.Errorf("second dequeue code = %d, want the process-wide SI_USER", info.Code)
	}
}

func TestIgnoredSignalInvisibleToPending(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1))

	ign := linux.SigAction{Handler: linux.SIG_IGN}
	if _, err := k.Process().SignalHandlers().SetSigAction(linux.SIGUSR1, &ign); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}
	if err := thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 1)); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}
	if got := thread.PendingSignals(); got != 0 {
		t.Errorf("PendingSignals() = %#x with ignored disposition, want 0", got)
	}
}

func TestIgnoreDiscardsPending(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1))

	if err := thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 1)); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}
	if err := k.Process().SendSignal(nil, SignalInfoUser(linux.SIGUSR1, 1)); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}
	if got := thread.PendingSignals(); got&linux.SignalSetOf(linux.SIGUSR1) == 0 {
		t.Fatalf("PendingSignals() = %#x, want SIGUSR1 pending", got)
	}

	ign := linux.SigAction{Handler: linux.SIG_IGN}
	if _, err := k.Process().SetSigAction(linux.SIGUSR1, &ign); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}

	// The queued instances are gone for good: restoring the default
	// disposition must not resurface them.
	dfl := linux.SigAction{}
	if _, err := k.Process().SetSigAction(linux.SIGUSR1, &dfl); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}
	if got := thread.PendingSignals(); got != 0 {
		t.Errorf("PendingSignals() = %#x after ignoring, want 0", got)
	}
	if got := k.Process().PendingSignals(); got != 0 {
		t.Errorf("process PendingSignals() = %#x after ignoring, want 0", got)
	}
}

func TestSigtimedwaitTimeout(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)

	const timeout = 50 * time.Millisecond
	start := time.Now()
	info, err := thread.Sigtimedwait(linux.MakeSignalSet(linux.SIGUSR1), timeout)
	elapsed := time.Since(start)
	if err != linuxerr.ErrTimeout {
		t.Fatalf("Sigtimedwait = (%+v, %v), want ErrTimeout", info, err)
	}
	if elapsed < timeout {
		t.Errorf("Sigtimedwait returned after %v, want at least %v", elapsed, timeout)
	}

	// The entry mask survives the timeout path.
	if got := thread.SignalMask(); got != 0 {
		t.Errorf("mask after timeout = %#x, want 0", got)
	}
}

func TestSigtimedwaitWokenBySend(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	waiter, _ := newTestThread(t, k, 1)
	waiter.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1, linux.SIGTERM))
	entryMask := waiter.SignalMask()

	var g errgroup.Group
	g.Go(func() error {
		time.Sleep(10 * time.Millisecond)
		return k.Process().SendSignal(nil, SignalInfoUser(linux.SIGUSR1, 2))
	})

	info, err := waiter.Sigtimedwait(linux.MakeSignalSet(linux.SIGUSR1), time.Second)
	if err != nil {
		t.Fatalf("Sigtimedwait failed: %v", err)
	}
	if got := linux.Signal(info.Signo); got != linux.SIGUSR1 {
		t.Errorf("Sigtimedwait popped %d, want SIGUSR1", got)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("sender failed: %v", err)
	}
	if got := waiter.SignalMask(); got != entryMask {
		t.Errorf("mask after wait = %#x, want entry mask %#x", got, entryMask)
	}
}

func TestDequeueIgnoredWaitedSignal(t *testing.T) {
	// A signal being waited for is consumed even if its disposition is to
	// ignore it; an explicit wait takes precedence over the disposition.
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)

	ign := linux.SigAction{Handler: linux.SIG_IGN}
	if _, err := k.Process().SignalHandlers().SetSigAction(linux.SIGUSR2, &ign); err != nil {
		t.Fatalf("SetSigAction failed: %v", err)
	}
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR2))
	if err := thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR2, 1)); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}

	info := thread.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR2))
	if info == nil {
		t.Fatal("DequeueSignal returned nil for an ignored but waited-for signal")
	}
}

func TestSigsuspend(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	original := linux.MakeSignalSet(linux.SIGUSR1, linux.SIGUSR2)
	thread.SetSignalMask(original)

	var g errgroup.Group
	g.Go(func() error {
		time.Sleep(10 * time.Millisecond)
		return thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 1))
	})

	err := thread.Sigsuspend(linux.MakeSignalSet(linux.SIGUSR2))
	if err != linuxerr.ErrInterrupted {
		t.Fatalf("Sigsuspend = %v, want ErrInterrupted", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("sender failed: %v", err)
	}

	// The temporary mask is still installed; the original mask is parked
	// for restoration after the handler runs.
	if got, want := thread.SignalMask(), linux.MakeSignalSet(linux.SIGUSR2); got != want {
		t.Errorf("mask during suspend return = %#x, want %#x", got, want)
	}
	saved, ok := thread.SavedSignalMask()
	if !ok {
		t.Fatal("no saved mask after Sigsuspend")
	}
	if saved != original {
		t.Errorf("saved mask = %#x, want %#x", saved, original)
	}
	if _, ok := thread.SavedSignalMask(); ok {
		t.Error("saved mask was not consumed by the first read")
	}
}

func TestProcessSignalWakesOneBlockedWaiter(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	// Thread 1 blocks SIGTERM; thread 2 can take it.
	blocked, _ := newTestThread(t, k, 1)
	blocked.SetSignalMask(linux.MakeSignalSet(linux.SIGTERM))
	open, _ := newTestThread(t, k, 2)

	done := make(chan *linux.SignalInfo, 1)
	go func() {
		open.prepareWait()
		for open.deliverableSignals() == 0 {
			open.wait(time.Time{})
		}
		done <- open.DequeueSignal(linux.MakeSignalSet(linux.SIGTERM))
	}()

	// Give the waiter a chance to block; correctness does not depend on
	// it, the wake token survives either ordering.
	time.Sleep(5 * time.Millisecond)
	if err := k.Process().SendSignal(nil, SignalInfoUser(linux.SIGTERM, 9)); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}

	select {
	case info := <-done:
		if info == nil {
			t.Fatal("woken thread found no signal to dequeue")
		}
		if got := linux.Signal(info.Signo); got != linux.SIGTERM {
			t.Errorf("dequeued %d, want SIGTERM", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("open thread was never woken")
	}

	if got := blocked.DequeueSignal(linux.MakeSignalSet(linux.SIGTERM)); got != nil {
		t.Errorf("signal was double-delivered: blocked thread dequeued %+v", got)
	}
}

func TestKillRouting(t *testing.T) {
	k, tr := newTestKernel(t, 5)
	caller, _ := newTestThread(t, k, 5)
	caller.SetSignalMask(linux.MakeSignalSet(linux.SIGTERM))

	for _, test := range []struct {
		name    string
		pid     ProcessID
		sig     linux.Signal
		wantErr *errors.Error
	}{
		{"invalid signal", 5, 65, linuxerr.EINVAL},
		{"negative signal", 5, -1, linuxerr.EINVAL},
		{"overflowing pid", math.MinInt32, linux.SIGTERM, linuxerr.ESRCH},
	} {
		t.Run(test.name, func(t *testing.T) {
			if err := k.Kill(caller, test.pid, test.sig); !linuxerr.Equals(test.wantErr, err) {
				t.Errorf("Kill(%d, %d) = %v, want %v", test.pid, test.sig, err, test.wantErr)
			}
		})
	}

	t.Run("self", func(t *testing.T) {
		if err := k.Kill(caller, 5, linux.SIGTERM); err != nil {
			t.Fatalf("Kill(self) failed: %v", err)
		}
		info := caller.DequeueSignal(linux.MakeSignalSet(linux.SIGTERM))
		if info == nil {
			t.Fatal("no pending signal after Kill(self)")
		}
		if info.Code != linux.SI_USER || info.PID() != 5 {
			t.Errorf("siginfo = code %d pid %d, want SI_USER from pid 5", info.Code, info.PID())
		}
	})

	t.Run("remote", func(t *testing.T) {
		if err := k.Kill(caller, 7, linux.SIGHUP); err != nil {
			t.Fatalf("Kill(remote) failed: %v", err)
		}
		calls := tr.recorded()
		want := transportCall{kind: "process", sender: 5, target: 7, sig: linux.SIGHUP}
		if len(calls) == 0 || calls[len(calls)-1] != want {
			t.Errorf("transport calls = %+v, want last %+v", calls, want)
		}
	})

	t.Run("all", func(t *testing.T) {
		if err := k.Kill(caller, -1, linux.SIGHUP); err != nil {
			t.Fatalf("Kill(-1) failed: %v", err)
		}
		calls := tr.recorded()
		want := transportCall{kind: "all", sender: 5, sig: linux.SIGHUP}
		if len(calls) == 0 || calls[len(calls)-1] != want {
			t.Errorf("transport calls = %+v, want last %+v", calls, want)
		}
	})

	t.Run("transport error propagates", func(t *testing.T) {
		tr.mu.Lock()
		tr.err = linuxerr.EIO
		tr.mu.Unlock()
		if err := k.Kill(caller, 7, linux.SIGHUP); !linuxerr.Equals(linuxerr.EIO, err) {
			t.Errorf("Kill(remote) with failing transport = %v, want EIO", err)
		}
		tr.mu.Lock()
		tr.err = nil
		tr.mu.Unlock()
	})
}

func TestKillProcessGroup(t *testing.T) {
	k, _ := newTestKernel(t, 5)
	caller, _ := newTestThread(t, k, 5)
	caller.SetSignalMask(linux.MakeSignalSet(linux.SIGTERM))

	// Foreign groups are not implemented.
	if err := k.Kill(caller, -42, linux.SIGTERM); !linuxerr.Equals(linuxerr.ENOSYS, err) {
		t.Errorf("Kill(foreign group) = %v, want ENOSYS", err)
	}

	// The caller's own group degenerates to local delivery.
	if err := k.Kill(caller, 0, linux.SIGTERM); err != nil {
		t.Fatalf("Kill(own group) failed: %v", err)
	}
	if caller.DequeueSignal(linux.MakeSignalSet(linux.SIGTERM)) == nil {
		t.Error("no pending signal after Kill(0)")
	}
}

func TestTkill(t *testing.T) {
	k, tr := newTestKernel(t, 5)
	caller, _ := newTestThread(t, k, 5)
	target, ctx := newTestThread(t, k, 6)
	target.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1))

	for _, test := range []struct {
		name    string
		tid     ThreadID
		sig     linux.Signal
		wantErr *errors.Error
	}{
		{"zero tid", 0, linux.SIGUSR1, linuxerr.EINVAL},
		{"negative tid", -1, linux.SIGUSR1, linuxerr.EINVAL},
		{"invalid signal", 6, 65, linuxerr.EINVAL},
		{"missing thread", 99, linux.SIGUSR1, linuxerr.ESRCH},
	} {
		t.Run(test.name, func(t *testing.T) {
			if err := k.Tkill(caller, test.tid, test.sig); !linuxerr.Equals(test.wantErr, err) {
				t.Errorf("Tkill(%d, %d) = %v, want %v", test.tid, test.sig, err, test.wantErr)
			}
		})
	}

	t.Run("probe", func(t *testing.T) {
		if err := k.Tkill(caller, 6, 0); err != nil {
			t.Fatalf("Tkill(probe) failed: %v", err)
		}
		if got := target.PendingSignals(); got != 0 {
			t.Errorf("probe queued a signal: pending = %#x", got)
		}
		if ctx.Resumed != 0 {
			t.Error("probe resumed the target context")
		}
	})

	t.Run("deliver", func(t *testing.T) {
		if err := k.Tkill(caller, 6, linux.SIGUSR1); err != nil {
			t.Fatalf("Tkill failed: %v", err)
		}
		info := target.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR1))
		if info == nil {
			t.Fatal("no pending signal after Tkill")
		}
		if info.Code != linux.SI_TKILL {
			t.Errorf("siginfo code = %d, want SI_TKILL", info.Code)
		}
		if ctx.Resumed == 0 {
			t.Error("target context was not resumed")
		}
	})

	t.Run("resume error propagates", func(t *testing.T) {
		ctx.ResumeErr = linuxerr.EIO
		defer func() { ctx.ResumeErr = nil }()
		if err := k.Tkill(caller, 6, linux.SIGUSR1); !linuxerr.Equals(linuxerr.EIO, err) {
			t.Errorf("Tkill with failing resume = %v, want EIO", err)
		}
	})

	t.Run("remote tgkill", func(t *testing.T) {
		if err := k.Tgkill(caller, 9, 10, linux.SIGUSR1); err != nil {
			t.Fatalf("Tgkill(remote) failed: %v", err)
		}
		calls := tr.recorded()
		want := transportCall{kind: "thread", sender: 5, target: 9, tid: 10, sig: linux.SIGUSR1}
		if len(calls) == 0 || calls[len(calls)-1] != want {
			t.Errorf("transport calls = %+v, want last %+v", calls, want)
		}
	})
}

func TestThreadExit(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)
	thread.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 1))

	thread.Exit()
	if got := k.Process().LookupThread(1); got != nil {
		got.DecRef()
		t.Fatal("LookupThread found an exited thread")
	}
	if err := k.Tkill(nil, 1, linux.SIGUSR1); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("Tkill(exited) = %v, want ESRCH", err)
	}
}

func TestLookupThreadPinsTarget(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, _ := newTestThread(t, k, 1)

	pinned := k.Process().LookupThread(1)
	if pinned == nil {
		t.Fatal("LookupThread failed")
	}
	thread.Exit()

	// The pin keeps the thread alive past its exit.
	if !pinned.TryIncRef() {
		t.Fatal("pinned thread was destroyed while referenced")
	}
	pinned.DecRef()
	pinned.DecRef()
}

func TestSignalReturnDirect(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	thread, ctx := newTestThread(t, k, 1)

	ctx.SetSavedIP(0xdead_0000)
	ctx.SetSavedSignalMask(linux.MakeSignalSet(linux.SIGKILL, linux.SIGUSR1))
	ctx.SetReturnValue(42)

	rv, err := thread.SignalReturn()
	if err != nil {
		t.Fatalf("SignalReturn failed: %v", err)
	}
	if rv != 42 {
		t.Errorf("SignalReturn = %d, want the interrupted return value 42", rv)
	}
	if got, want := thread.SignalMask(), linux.MakeSignalSet(linux.SIGUSR1); got != want {
		t.Errorf("restored mask = %#x, want %#x with SIGKILL filtered", got, want)
	}
	if got := ctx.IP(); got != 0xdead_0000 {
		t.Errorf("restored ip = %#x, want %#x", got, 0xdead_0000)
	}
}

func TestSignalReturnTrampoline(t *testing.T) {
	var parked uint64
	tr := &recordingTransport{}
	k, err := New(Config{
		PID:       1,
		PGID:      1,
		Transport: tr,
		Backend:   &platform.VMTrampoline{HostType: "tdx", SetUserIP: func(ip uint64) { parked = ip }},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := platform.NewSimContext(0x9000, 0x7fff_0000) // 0x9000 models the trampoline entry
	thread, err := k.Process().NewThread(ThreadConfig{TID: 1, Context: ctx})
	if err != nil {
		t.Fatalf("NewThread failed: %v", err)
	}

	ctx.SetSavedIP(0xdead_0000)
	if _, err := thread.SignalReturn(); err != nil {
		t.Fatalf("SignalReturn failed: %v", err)
	}
	if parked != 0xdead_0000 {
		t.Errorf("parked ip = %#x, want %#x", parked, 0xdead_0000)
	}
	// The context itself stays on the trampoline.
	if got := ctx.IP(); got != 0x9000 {
		t.Errorf("context ip = %#x, want unchanged trampoline entry", got)
	}
}

func TestConcurrentSigaction(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	sh := k.Process().SignalHandlers()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				act := linux.SigAction{Handler: uint64(0x4000 + i), Flags: linux.SA_RESTORER}
				if _, err := sh.SetSigAction(linux.SIGUSR1, &act); err != nil {
					return fmt.Errorf("SetSigAction: %w", err)
				}
				if _, err := sh.SigAction(linux.SIGUSR1); err != nil {
					return fmt.Errorf("SigAction: %w", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	got, err := sh.SigAction(linux.SIGUSR1)
	if err != nil {
		t.Fatalf("SigAction failed: %v", err)
	}
	if got.Handler < 0x4000 || got.Handler >= 0x4008 {
		t.Errorf("final handler = %#x, not one of the written values", got.Handler)
	}
}

func TestConcurrentSendAndWait(t *testing.T) {
	k, _ := newTestKernel(t, 1)
	waiter, _ := newTestThread(t, k, 1)
	waiter.SetSignalMask(linux.MakeSignalSet(linux.SIGUSR1))
	entryMask := waiter.SignalMask()

	const rounds = 50
	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			if err := waiter.SendSignal(nil, SignalInfoTkill(linux.SIGUSR1, 1)); err != nil {
				return err
			}
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	received := 0
	for received < rounds {
		info, err := waiter.Sigtimedwait(linux.MakeSignalSet(linux.SIGUSR1), time.Second)
		if err == linuxerr.ErrTimeout {
			break
		}
		if err != nil {
			t.Fatalf("Sigtimedwait failed: %v", err)
		}
		if linux.Signal(info.Signo) != linux.SIGUSR1 {
			t.Fatalf("popped signal %d, want SIGUSR1", info.Signo)
		}
		received++
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("sender failed: %v", err)
	}
	// Instances may coalesce while the waiter is between waits, so
	// received <= rounds; but at least one must land, and the mask must
	// be restored exactly.
	if received == 0 {
		t.Error("no signals received")
	}
	if got := waiter.SignalMask(); got != entryMask {
		t.Errorf("mask after %d waits = %#x, want %#x", received, got, entryMask)
	}
}

func TestSignalInfoPriv(t *testing.T) {
	info := SignalInfoPriv(linux.SIGSEGV)
	if got := info.Signal(); got != linux.SIGSEGV {
		t.Errorf("Signal() = %d, want SIGSEGV", got)
	}
	if info.Code != linux.SI_KERNEL {
		t.Errorf("Code = %d, want SI_KERNEL", info.Code)
	}
}

func TestSetChildInfo(t *testing.T) {
	for _, tc := range []struct {
		name       string
		status     uint32
		wantCode   int32
		wantStatus int32
	}{
		{
			name:       "exited",
			status:     0x1200,
			wantCode:   linux.CLD_EXITED,
			wantStatus: 0x12,
		},
		{
			name:       "killed",
			status:     uint32(linux.SIGTERM),
			wantCode:   linux.CLD_KILLED,
			wantStatus: int32(linux.SIGTERM),
		},
		{
			name:       "dumped",
			status:     uint32(linux.SIGQUIT) | 0x80,
			wantCode:   linux.CLD_DUMPED,
			wantStatus: int32(linux.SIGQUIT),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info := &linux.SignalInfo{Signo: int32(linux.SIGCHLD)}
			SetChildInfo(info, 42, tc.status)
			if info.Code != tc.wantCode {
				t.Errorf("Code = %d, want %d", info.Code, tc.wantCode)
			}
			if got := info.Status(); got != tc.wantStatus {
				t.Errorf("Status() = %#x, want %#x", got, tc.wantStatus)
			}
			if got := info.PID(); got != 42 {
				t.Errorf("PID() = %d, want 42", got)
			}
		})
	}
}
