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

// Package kernel implements POSIX signal semantics in user space.
//
// The host substrate provides no native signal support; dispositions, masks
// and pending queues live entirely in the structures defined here, and
// delivery is driven by software. One Kernel instance governs one local
// process (a thread group); signals addressed to other processes leave
// through a Transport.
//
// Lock order, where nesting is required:
//
//	Process.mu -> Thread.mu -> SignalHandlers.mu
//
// No lock is ever held across a Transport call.
package kernel

import (
	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/platform"
)

// Transport carries signals to processes outside this kernel instance. It is
// implemented by the IPC layer; calls are synchronous and may block, so
// callers must not hold kernel locks.
type Transport interface {
	// DeliverToProcess sends sig to the process identified by target.
	DeliverToProcess(sender, target ProcessID, sig linux.Signal) error

	// DeliverToThread sends sig to thread tid of process tgid.
	DeliverToThread(sender ProcessID, tgid ProcessID, tid ThreadID, sig linux.Signal) error

	// DeliverToAll sends sig to every process the sender may signal.
	DeliverToAll(sender ProcessID, sig linux.Signal) error
}

// Config configures a Kernel.
type Config struct {
	// PID is the local process's identifier, as visible to every process
	// reachable over the transport.
	PID ProcessID

	// PGID is the local process's process group.
	PGID ProcessGroupID

	// Transport carries cross-process signals. Required.
	Transport Transport

	// Backend is the restore-and-resume strategy for the host substrate.
	// Required.
	Backend platform.Backend
}

// Kernel is the root object of a signal subsystem instance: the local
// process plus its collaborators.
type Kernel struct {
	backend   platform.Backend
	transport Transport
	process   *Process
}

// New creates a Kernel hosting a single local process with default signal
// dispositions.
func New(cfg Config) (*Kernel, error) {
	if cfg.PID <= 0 || cfg.Transport == nil || cfg.Backend == nil {
		return nil, linuxerr.EINVAL
	}
	k := &Kernel{
		backend:   cfg.Backend,
		transport: cfg.Transport,
	}
	k.process = &Process{
		k:           k,
		id:          cfg.PID,
		pgid:        cfg.PGID,
		handlers:    NewSignalHandlers(),
		threadsByID: make(map[ThreadID]*Thread),
	}
	return k, nil
}

// Process returns the local process.
func (k *Kernel) Process() *Process {
	return k.process
}

// Backend returns the host substrate backend.
func (k *Kernel) Backend() platform.Backend {
	return k.backend
}
