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

package linux

import (
	"veilos.dev/veilos/pkg/hostarch"
)

// SignalStack represents stack_t, the description of an alternate signal
// stack, from include/uapi/asm-generic/signal.h.
type SignalStack struct {
	Addr  uint64
	Flags uint32
	Size  uint64
}

// SignalStackSize is the size in bytes of SignalStack on the wire, including
// the 4 bytes of padding between Flags and Size.
const SignalStackSize = 24

// SizeBytes returns the marshalled size of s.
func (s *SignalStack) SizeBytes() int {
	return SignalStackSize
}

// MarshalBytes serializes s into dst.
//
// Preconditions: len(dst) >= s.SizeBytes().
func (s *SignalStack) MarshalBytes(dst []byte) {
	hostarch.ByteOrder.PutUint64(dst[0:], s.Addr)
	hostarch.ByteOrder.PutUint32(dst[8:], s.Flags)
	// 4 bytes of padding.
	hostarch.ByteOrder.PutUint64(dst[16:], s.Size)
}

// UnmarshalBytes deserializes s from src.
//
// Preconditions: len(src) >= s.SizeBytes().
func (s *SignalStack) UnmarshalBytes(src []byte) {
	s.Addr = hostarch.ByteOrder.Uint64(src[0:])
	s.Flags = hostarch.ByteOrder.Uint32(src[8:])
	s.Size = hostarch.ByteOrder.Uint64(src[16:])
}

// Contains checks if the stack pointer is within this stack.
func (s *SignalStack) Contains(sp uint64) bool {
	return s.Addr < sp && sp <= s.Addr+s.Size
}

// Top returns the stack's top address.
func (s *SignalStack) Top() uint64 {
	return s.Addr + s.Size
}

// IsEnabled returns true iff this signal stack is marked as enabled.
func (s *SignalStack) IsEnabled() bool {
	return s.Flags&SS_DISABLE == 0 && s.Size != 0
}
