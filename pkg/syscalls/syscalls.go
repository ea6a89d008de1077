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

// Package syscalls is the interface from the emulated syscall surface to the
// kernel proper. Handlers do not depend on the guest architecture beyond the
// packed argument representation.
package syscalls

import (
	"veilos.dev/veilos/pkg/arch"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/kernel"
)

// Fn is the implementation of a single syscall.
type Fn func(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error)

// Syscall is an entry in a syscall Table.
type Syscall struct {
	// Name is the syscall's name, for diagnostics.
	Name string

	// Fn implements the syscall.
	Fn Fn
}

// Table maps syscall numbers to implementations.
type Table map[uintptr]Syscall

// Dispatch invokes the handler for sysno, translating internal sentinel
// errors to their guest-visible errnos. Unknown syscall numbers return
// ENOSYS.
func (tbl Table) Dispatch(t *kernel.Thread, sysno uintptr, args arch.SyscallArguments) (uintptr, error) {
	sc, ok := tbl[sysno]
	if !ok {
		return 0, linuxerr.ENOSYS
	}
	rv, err := sc.Fn(t, args)
	switch err {
	case linuxerr.ErrInterrupted, linuxerr.ERESTARTNOHAND:
		return rv, linuxerr.EINTR
	default:
		return rv, err
	}
}

// Lookup returns the name of sysno, or ok false if the table does not
// implement it.
func (tbl Table) Lookup(sysno uintptr) (string, bool) {
	sc, ok := tbl[sysno]
	return sc.Name, ok
}
