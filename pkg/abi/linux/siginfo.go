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

// SignalInfo represents siginfo_t, from include/uapi/asm-generic/siginfo.h.
//
// Only the header and the union fields used by this subsystem (kill/tkill
// origin metadata, child status, fault address) are given accessors; the
// union is kept as raw bytes on the wire.
type SignalInfo struct {
	Signo int32 // Signal number
	Errno int32 // Errno value
	Code  int32 // Signal code

	// struct siginfo::_sifields is a union. In SignalInfo, fields stores the
	// union's contents, with the first field at offset 0.
	Fields [128 - 16]byte
}

// SignalInfoSize is the size in bytes of SignalInfo on the wire, including
// the 4 bytes of padding between Code and the union.
const SignalInfoSize = 128

// SizeBytes returns the marshalled size of s.
func (s *SignalInfo) SizeBytes() int {
	return SignalInfoSize
}

// MarshalBytes serializes s into dst.
//
// Preconditions: len(dst) >= s.SizeBytes().
func (s *SignalInfo) MarshalBytes(dst []byte) {
	hostarch.ByteOrder.PutUint32(dst[0:], uint32(s.Signo))
	hostarch.ByteOrder.PutUint32(dst[4:], uint32(s.Errno))
	hostarch.ByteOrder.PutUint32(dst[8:], uint32(s.Code))
	// 4 bytes of padding.
	copy(dst[16:], s.Fields[:])
}

// UnmarshalBytes deserializes s from src.
//
// Preconditions: len(src) >= s.SizeBytes().
func (s *SignalInfo) UnmarshalBytes(src []byte) {
	s.Signo = int32(hostarch.ByteOrder.Uint32(src[0:]))
	s.Errno = int32(hostarch.ByteOrder.Uint32(src[4:]))
	s.Code = int32(hostarch.ByteOrder.Uint32(src[8:]))
	copy(s.Fields[:], src[16:SignalInfoSize])
}

// Signal returns the signal number.
func (s *SignalInfo) Signal() Signal {
	return Signal(s.Signo)
}

// PID returns the si_pid field.
func (s *SignalInfo) PID() int32 {
	return int32(hostarch.ByteOrder.Uint32(s.Fields[0:4]))
}

// SetPID mutates the si_pid field.
func (s *SignalInfo) SetPID(val int32) {
	hostarch.ByteOrder.PutUint32(s.Fields[0:4], uint32(val))
}

// UID returns the si_uid field.
func (s *SignalInfo) UID() int32 {
	return int32(hostarch.ByteOrder.Uint32(s.Fields[4:8]))
}

// SetUID mutates the si_uid field.
func (s *SignalInfo) SetUID(val int32) {
	hostarch.ByteOrder.PutUint32(s.Fields[4:8], uint32(val))
}

// Sigval returns the sigval field, which is aliased to both si_int and
// si_ptr.
func (s *SignalInfo) Sigval() uint64 {
	return hostarch.ByteOrder.Uint64(s.Fields[8:16])
}

// SetSigval mutates the sigval field.
func (s *SignalInfo) SetSigval(val uint64) {
	hostarch.ByteOrder.PutUint64(s.Fields[8:16], val)
}

// TimerID returns the si_timerid field.
func (s *SignalInfo) TimerID() int32 {
	return int32(hostarch.ByteOrder.Uint32(s.Fields[0:4]))
}

// SetTimerID sets the si_timerid field.
func (s *SignalInfo) SetTimerID(val int32) {
	hostarch.ByteOrder.PutUint32(s.Fields[0:4], uint32(val))
}

// Status returns the si_status field.
//
// This field is only valid for SIGCHLD.
func (s *SignalInfo) Status() int32 {
	return int32(hostarch.ByteOrder.Uint32(s.Fields[8:12]))
}

// SetStatus mutates the si_status field.
func (s *SignalInfo) SetStatus(val int32) {
	hostarch.ByteOrder.PutUint32(s.Fields[8:12], uint32(val))
}

// Addr returns the si_addr field.
//
// This field is only valid for fault signals such as SIGSEGV.
func (s *SignalInfo) Addr() uint64 {
	return hostarch.ByteOrder.Uint64(s.Fields[0:8])
}

// SetAddr sets the si_addr field.
func (s *SignalInfo) SetAddr(val uint64) {
	hostarch.ByteOrder.PutUint64(s.Fields[0:8], val)
}
