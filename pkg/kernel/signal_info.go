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
	"veilos.dev/veilos/pkg/abi/linux"
)

// SignalInfoUser returns a SignalInfo equivalent to one sent by kill(2) from
// the given process.
func SignalInfoUser(sig linux.Signal, sender ProcessID) *linux.SignalInfo {
	info := &linux.SignalInfo{
		Signo: int32(sig),
		Code:  linux.SI_USER,
	}
	info.SetPID(int32(sender))
	return info
}

// SignalInfoTkill returns a SignalInfo equivalent to one sent by tkill(2) or
// tgkill(2) from the given process.
func SignalInfoTkill(sig linux.Signal, sender ProcessID) *linux.SignalInfo {
	info := &linux.SignalInfo{
		Signo: int32(sig),
		Code:  linux.SI_TKILL,
	}
	info.SetPID(int32(sender))
	return info
}

// SignalInfoPriv returns a SignalInfo representing a signal sent by the
// kernel itself.
func SignalInfoPriv(sig linux.Signal) *linux.SignalInfo {
	return &linux.SignalInfo{
		Signo: int32(sig),
		Code:  linux.SI_KERNEL,
	}
}

// SetChildInfo fills in a SIGCHLD SignalInfo for a child that changed state
// with the given wait status. Bit 0x80 of status marks a core dump.
func SetChildInfo(info *linux.SignalInfo, child ProcessID, status uint32) {
	info.SetPID(int32(child))
	switch {
	case status&0x7f == 0:
		info.Code = linux.CLD_EXITED
		info.SetStatus(int32(status >> 8))
	case status&0x80 != 0:
		info.Code = linux.CLD_DUMPED
		info.SetStatus(int32(status & 0x7f))
	default:
		info.Code = linux.CLD_KILLED
		info.SetStatus(int32(status & 0x7f))
	}
}
