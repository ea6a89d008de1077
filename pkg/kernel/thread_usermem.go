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
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/hostarch"
	"veilos.dev/veilos/pkg/usermem"
)

// MemoryManager returns the thread's guest memory accessor.
func (t *Thread) MemoryManager() usermem.IO {
	return t.memory
}

// CopyInBytes fills dst from the thread's memory at addr. An unreadable
// range or a short copy is reported as EFAULT.
func (t *Thread) CopyInBytes(addr hostarch.Addr, dst []byte) (int, error) {
	if t.memory == nil || !t.memory.Readable(addr, uint64(len(dst))) {
		return 0, linuxerr.EFAULT
	}
	n, err := t.memory.CopyIn(addr, dst)
	if err == nil && n != len(dst) {
		err = linuxerr.EFAULT
	}
	return n, err
}

// CopyOutBytes writes src to the thread's memory at addr. An unwritable
// range or a short copy is reported as EFAULT.
func (t *Thread) CopyOutBytes(addr hostarch.Addr, src []byte) (int, error) {
	if t.memory == nil || !t.memory.Writable(addr, uint64(len(src))) {
		return 0, linuxerr.EFAULT
	}
	n, err := t.memory.CopyOut(addr, src)
	if err == nil && n != len(src) {
		err = linuxerr.EFAULT
	}
	return n, err
}
