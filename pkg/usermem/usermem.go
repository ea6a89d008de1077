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

// Package usermem governs access to guest memory.
//
// The signal subsystem never dereferences guest pointers directly; every
// argument crossing the syscall boundary is validated and copied through an
// IO implementation provided by the memory-management collaborator.
package usermem

import (
	"veilos.dev/veilos/pkg/hostarch"
)

// IO provides access to the memory of a guest process.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(src), it returns a non-nil error explaining why.
	CopyOut(addr hostarch.Addr, src []byte) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(dst), it returns a non-nil error explaining why.
	CopyIn(addr hostarch.Addr, dst []byte) (int, error)

	// Readable returns true if length bytes starting at addr may be read.
	Readable(addr hostarch.Addr, length uint64) bool

	// Writable returns true if length bytes starting at addr may be written.
	Writable(addr hostarch.Addr, length uint64) bool
}
