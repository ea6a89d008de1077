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

// Package platform defines the interface between the signal subsystem and
// the execution substrate hosting guest threads.
//
// The subsystem never manipulates register state directly. Trap marshalling
// hands it an already-populated Context; all it does back is install a
// restored program counter through a Backend and kick suspended contexts via
// Resume.
package platform

import (
	"veilos.dev/veilos/pkg/abi/linux"
)

// Context represents the saved execution state of a guest thread at its last
// entry into the subsystem (syscall or forwarded trap).
//
// Implementations are provided by the host backend. All methods are called
// only from the thread owning the context, except Resume, which is called by
// signal senders and must be safe for concurrent use.
type Context interface {
	// IP returns the instruction pointer.
	IP() uint64

	// SetIP sets the instruction pointer.
	SetIP(ip uint64)

	// SP returns the stack pointer.
	SP() uint64

	// ReturnValue returns the value the interrupted frame will see as the
	// syscall return once it resumes.
	ReturnValue() uintptr

	// SavedSignalMask returns the signal mask bundled with the context when
	// execution was interrupted. It is restored as the thread's mask on
	// sigreturn.
	SavedSignalMask() linux.SignalSet

	// SavedIP returns the where-to-return guest address recorded when the
	// context was interrupted.
	SavedIP() uint64

	// Resume unsuspends the underlying execution context if it was
	// suspended. It is a no-op for a running context.
	Resume() error
}

// Backend is the restore-and-resume strategy for one host substrate variant.
// It decides how a restored guest address is installed into a context during
// sigreturn.
type Backend interface {
	// Name returns the backend's name, matching the host type string
	// reported by the substrate.
	Name() string

	// RequiresRestorer returns true if installing a signal handler on this
	// backend requires the caller to supply a restorer trampoline
	// (SA_RESTORER).
	RequiresRestorer() bool

	// RestoreReturn installs the restored guest address restoredIP into ctx
	// as part of sigreturn.
	RestoreReturn(ctx Context, restoredIP uint64)
}

// Direct is the Backend for substrates where the context can return straight
// to guest code.
type Direct struct{}

// Name implements Backend.Name.
func (Direct) Name() string { return "direct" }

// RequiresRestorer implements Backend.RequiresRestorer.
//
// On x86-64 hosts the libc-provided restorer is mandatory, matching Linux.
func (Direct) RequiresRestorer() bool { return true }

// RestoreReturn implements Backend.RestoreReturn.
func (Direct) RestoreReturn(ctx Context, restoredIP uint64) {
	ctx.SetIP(restoredIP)
}

// VMTrampoline is the Backend for VM-like substrates (including TDX) where
// returns to guest code must flow through a fixed sysret trampoline. The
// restored guest address is parked in a per-thread slot that the trampoline
// reads, while the context's IP stays on the trampoline itself.
type VMTrampoline struct {
	// HostType is the substrate's self-reported type ("VM" or "TDX").
	HostType string

	// SetUserIP stores the where-to-return guest address for the
	// trampoline to consume.
	SetUserIP func(ip uint64)
}

// Name implements Backend.Name.
func (b *VMTrampoline) Name() string { return b.HostType }

// RequiresRestorer implements Backend.RequiresRestorer.
func (*VMTrampoline) RequiresRestorer() bool { return true }

// RestoreReturn implements Backend.RestoreReturn.
//
// The context's IP currently points at the sysret trampoline and stays
// there; only the trampoline's target changes.
func (b *VMTrampoline) RestoreReturn(_ Context, restoredIP uint64) {
	b.SetUserIP(restoredIP)
}
