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

package usermem

import (
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/hostarch"
)

// BytesIO implements IO using a byte slice. Addresses are interpreted as
// offsets into the slice. BytesIO is used by tests and the simulator; real
// guests are backed by the memory manager.
type BytesIO struct {
	Bytes []byte

	// NoAccess marks address ranges that fault on any access, so tests can
	// provoke boundary errors deterministically.
	NoAccess []AddrRange
}

// AddrRange is a range of addresses, [Start, End).
type AddrRange struct {
	Start hostarch.Addr
	End   hostarch.Addr
}

// NewBytesIO returns an IO backed by the given byte slice.
func NewBytesIO(b []byte) *BytesIO {
	return &BytesIO{Bytes: b}
}

func (b *BytesIO) rangeCheck(addr hostarch.Addr, length int) (int, error) {
	if length == 0 {
		return 0, nil
	}
	if length < 0 {
		return 0, linuxerr.EINVAL
	}
	max := hostarch.Addr(len(b.Bytes))
	if addr >= max {
		return 0, linuxerr.EFAULT
	}
	end, ok := addr.AddLength(uint64(length))
	if !ok || end > max {
		return int(max - addr), linuxerr.EFAULT
	}
	for _, r := range b.NoAccess {
		if addr < r.End && end > r.Start {
			return 0, linuxerr.EFAULT
		}
	}
	return length, nil
}

// CopyOut implements IO.CopyOut.
func (b *BytesIO) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	n, err := b.rangeCheck(addr, len(src))
	if err != nil {
		return 0, err
	}
	return copy(b.Bytes[int(addr):], src[:n]), nil
}

// CopyIn implements IO.CopyIn.
func (b *BytesIO) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	n, err := b.rangeCheck(addr, len(dst))
	if err != nil {
		return 0, err
	}
	return copy(dst[:n], b.Bytes[int(addr):]), nil
}

// Readable implements IO.Readable.
func (b *BytesIO) Readable(addr hostarch.Addr, length uint64) bool {
	_, err := b.rangeCheck(addr, int(length))
	return err == nil
}

// Writable implements IO.Writable.
func (b *BytesIO) Writable(addr hostarch.Addr, length uint64) bool {
	_, err := b.rangeCheck(addr, int(length))
	return err == nil
}
