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

// SigAction represents struct sigaction.
type SigAction struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     SignalSet
}

// SigActionSize is the size in bytes of SigAction on the wire.
const SigActionSize = 32

// SizeBytes returns the marshalled size of s.
func (s *SigAction) SizeBytes() int {
	return SigActionSize
}

// MarshalBytes serializes s into dst.
//
// Preconditions: len(dst) >= s.SizeBytes().
func (s *SigAction) MarshalBytes(dst []byte) {
	hostarch.ByteOrder.PutUint64(dst[0:], s.Handler)
	hostarch.ByteOrder.PutUint64(dst[8:], s.Flags)
	hostarch.ByteOrder.PutUint64(dst[16:], s.Restorer)
	hostarch.ByteOrder.PutUint64(dst[24:], uint64(s.Mask))
}

// UnmarshalBytes deserializes s from src.
//
// Preconditions: len(src) >= s.SizeBytes().
func (s *SigAction) UnmarshalBytes(src []byte) {
	s.Handler = hostarch.ByteOrder.Uint64(src[0:])
	s.Flags = hostarch.ByteOrder.Uint64(src[8:])
	s.Restorer = hostarch.ByteOrder.Uint64(src[16:])
	s.Mask = SignalSet(hostarch.ByteOrder.Uint64(src[24:]))
}

// IsIgnore returns true iff the action ignores the signal.
func (s *SigAction) IsIgnore() bool {
	return s.Handler == SIG_IGN
}

// IsDefault returns true iff the action is the default one.
func (s *SigAction) IsDefault() bool {
	return s.Handler == SIG_DFL
}
