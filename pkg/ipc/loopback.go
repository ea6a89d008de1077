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

// Package ipc carries signals between kernel instances.
package ipc

import (
	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/kernel"
	"veilos.dev/veilos/pkg/log"
	"veilos.dev/veilos/pkg/sync"
)

// Loopback is a Transport connecting kernel instances living in the same
// address space. It stands in for the message-based IPC of a multi-process
// deployment; the routing and errno semantics are the same.
type Loopback struct {
	mu      sync.RWMutex
	kernels map[kernel.ProcessID]*kernel.Kernel
}

// NewLoopback returns an empty Loopback.
func NewLoopback() *Loopback {
	return &Loopback{
		kernels: make(map[kernel.ProcessID]*kernel.Kernel),
	}
}

// Register adds k's process to the set of reachable processes.
func (l *Loopback) Register(k *kernel.Kernel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kernels[k.Process().ID()] = k
}

// Unregister removes pid from the set of reachable processes. Signals sent
// to it afterwards fail with ESRCH.
func (l *Loopback) Unregister(pid kernel.ProcessID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.kernels, pid)
}

func (l *Loopback) lookup(pid kernel.ProcessID) *kernel.Kernel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.kernels[pid]
}

// DeliverToProcess implements kernel.Transport.DeliverToProcess.
func (l *Loopback) DeliverToProcess(sender, target kernel.ProcessID, sig linux.Signal) error {
	k := l.lookup(target)
	if k == nil {
		return linuxerr.ESRCH
	}
	return k.Process().SendSignal(nil, kernel.SignalInfoUser(sig, sender))
}

// DeliverToThread implements kernel.Transport.DeliverToThread.
func (l *Loopback) DeliverToThread(sender kernel.ProcessID, tgid kernel.ProcessID, tid kernel.ThreadID, sig linux.Signal) error {
	k := l.lookup(tgid)
	if k == nil {
		return linuxerr.ESRCH
	}
	target := k.Process().LookupThread(tid)
	if target == nil {
		return linuxerr.ESRCH
	}
	defer target.DecRef()
	if sig == 0 {
		return nil
	}
	if err := target.SendSignal(nil, kernel.SignalInfoTkill(sig, sender)); err != nil {
		return err
	}
	return target.Context().Resume()
}

// DeliverToAll implements kernel.Transport.DeliverToAll. Delivery is
// best-effort across processes; a failure for one process does not stop the
// others, and the call succeeds if any process accepted the signal.
func (l *Loopback) DeliverToAll(sender kernel.ProcessID, sig linux.Signal) error {
	l.mu.RLock()
	targets := make([]*kernel.Kernel, 0, len(l.kernels))
	for _, k := range l.kernels {
		targets = append(targets, k)
	}
	l.mu.RUnlock()

	delivered := false
	for _, k := range targets {
		if err := k.Process().SendSignal(nil, kernel.SignalInfoUser(sig, sender)); err != nil {
			log.Warningf("Delivering signal %d to pid %d: %v", sig, k.Process().ID(), err)
			continue
		}
		delivered = true
	}
	if !delivered {
		return linuxerr.ESRCH
	}
	return nil
}
