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

package ipc

import (
	"testing"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/kernel"
	"veilos.dev/veilos/pkg/platform"
)

func newPeer(t *testing.T, loop *Loopback, pid kernel.ProcessID) (*kernel.Kernel, *kernel.Thread) {
	t.Helper()
	k, err := kernel.New(kernel.Config{
		PID:       pid,
		PGID:      kernel.ProcessGroupID(pid),
		Transport: loop,
		Backend:   platform.Direct{},
	})
	if err != nil {
		t.Fatalf("kernel.New(pid=%d) failed: %v", pid, err)
	}
	thread, err := k.Process().NewThread(kernel.ThreadConfig{
		TID:     kernel.ThreadID(pid),
		Context: platform.NewSimContext(0x1000, 0x7fff_0000),
	})
	if err != nil {
		t.Fatalf("NewThread failed: %v", err)
	}
	thread.SetSignalMask(linux.MakeSignalSet(linux.SIGTERM, linux.SIGUSR1))
	loop.Register(k)
	return k, thread
}

func TestCrossProcessKill(t *testing.T) {
	loop := NewLoopback()
	k1, t1 := newPeer(t, loop, 1)
	_, t2 := newPeer(t, loop, 2)

	if err := k1.Kill(t1, 2, linux.SIGTERM); err != nil {
		t.Fatalf("Kill(2) failed: %v", err)
	}
	info := t2.DequeueSignal(linux.MakeSignalSet(linux.SIGTERM))
	if info == nil {
		t.Fatal("no signal delivered to peer")
	}
	if got := info.PID(); got != 1 {
		t.Errorf("sender pid = %d, want 1", got)
	}
	if info.Code != linux.SI_USER {
		t.Errorf("code = %d, want SI_USER", info.Code)
	}
}

func TestCrossProcessTgkill(t *testing.T) {
	loop := NewLoopback()
	k1, t1 := newPeer(t, loop, 1)
	_, t2 := newPeer(t, loop, 2)

	if err := k1.Tgkill(t1, 2, 2, linux.SIGUSR1); err != nil {
		t.Fatalf("Tgkill(2, 2) failed: %v", err)
	}
	info := t2.DequeueSignal(linux.MakeSignalSet(linux.SIGUSR1))
	if info == nil {
		t.Fatal("no signal delivered to peer thread")
	}
	if info.Code != linux.SI_TKILL {
		t.Errorf("code = %d, want SI_TKILL", info.Code)
	}
	if got := t2.Context().(*platform.SimContext).Resumed; got == 0 {
		t.Error("peer context was not resumed")
	}

	// Probes validate without queueing.
	if err := k1.Tgkill(t1, 2, 2, 0); err != nil {
		t.Fatalf("Tgkill(probe) failed: %v", err)
	}
	if got := t2.PendingSignals(); got != 0 {
		t.Errorf("probe queued a signal: %#x", got)
	}
	if err := k1.Tgkill(t1, 2, 99, 0); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("Tgkill(missing tid probe) = %v, want ESRCH", err)
	}
}

func TestUnregister(t *testing.T) {
	loop := NewLoopback()
	k1, t1 := newPeer(t, loop, 1)
	newPeer(t, loop, 2)

	loop.Unregister(2)
	if err := k1.Kill(t1, 2, linux.SIGTERM); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("Kill(unregistered) = %v, want ESRCH", err)
	}
}

func TestDeliverToAll(t *testing.T) {
	loop := NewLoopback()
	k1, t1 := newPeer(t, loop, 1)
	_, t2 := newPeer(t, loop, 2)
	_, t3 := newPeer(t, loop, 3)

	if err := k1.Kill(t1, -1, linux.SIGTERM); err != nil {
		t.Fatalf("Kill(-1) failed: %v", err)
	}
	for i, thread := range []*kernel.Thread{t1, t2, t3} {
		if got := thread.PendingSignals() & linux.MakeSignalSet(linux.SIGTERM); got == 0 {
			t.Errorf("process %d did not receive the broadcast", i+1)
		}
	}
}

func TestDeliverToAllEmpty(t *testing.T) {
	loop := NewLoopback()
	if err := loop.DeliverToAll(1, linux.SIGTERM); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("DeliverToAll(no peers) = %v, want ESRCH", err)
	}
}
