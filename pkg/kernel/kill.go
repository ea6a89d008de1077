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
	"math"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/log"
)

// Kill implements the routing of kill(2): positive pids address a single
// process, -1 addresses every process reachable over the transport, and 0 or
// a negative pid below -1 address a process group.
func (k *Kernel) Kill(caller *Thread, pid ProcessID, sig linux.Signal) error {
	if sig < 0 || sig > linux.SignalMaximum {
		return linuxerr.EINVAL
	}
	// -pid would overflow; no group can match.
	if pid == math.MinInt32 {
		return linuxerr.ESRCH
	}
	switch {
	case pid > 0:
		return k.killProcess(caller, pid, sig)
	case pid == -1:
		return k.transport.DeliverToAll(k.process.ID(), sig)
	case pid == 0:
		return k.killProcessGroup(caller, k.process.ProcessGroup(), sig)
	default:
		return k.killProcessGroup(caller, ProcessGroupID(-pid), sig)
	}
}

func (k *Kernel) killProcess(caller *Thread, pid ProcessID, sig linux.Signal) error {
	p := k.process
	if pid != p.ID() {
		return k.transport.DeliverToProcess(p.ID(), pid, sig)
	}
	return p.SendSignal(caller, SignalInfoUser(sig, p.ID()))
}

// killProcessGroup delivers sig to the given process group. Cross-process
// group bookkeeping is not tracked, so only the caller's own group can be
// addressed, and even then delivery degenerates to the local process.
func (k *Kernel) killProcessGroup(caller *Thread, pgid ProcessGroupID, sig linux.Signal) error {
	p := k.process
	if pgid != p.ProcessGroup() {
		log.Warningf("Signaling process group %d not supported", pgid)
		return linuxerr.ENOSYS
	}
	return p.SendSignal(caller, SignalInfoUser(sig, p.ID()))
}

// Tkill implements tkill(2): the target thread is looked up within the
// caller's own process.
func (k *Kernel) Tkill(caller *Thread, tid ThreadID, sig linux.Signal) error {
	if tid <= 0 || sig < 0 || sig > linux.SignalMaximum {
		return linuxerr.EINVAL
	}
	return k.killThread(caller, k.process.ID(), tid, sig)
}

// Tgkill implements tgkill(2).
func (k *Kernel) Tgkill(caller *Thread, tgid ProcessID, tid ThreadID, sig linux.Signal) error {
	if tgid <= 0 || tid <= 0 || sig < 0 || sig > linux.SignalMaximum {
		return linuxerr.EINVAL
	}
	return k.killThread(caller, tgid, tid, sig)
}

func (k *Kernel) killThread(caller *Thread, tgid ProcessID, tid ThreadID, sig linux.Signal) error {
	p := k.process
	if tgid != p.ID() {
		return k.transport.DeliverToThread(p.ID(), tgid, tid, sig)
	}
	target := p.LookupThread(tid)
	if target == nil {
		return linuxerr.ESRCH
	}
	defer target.DecRef()
	// sig 0 probes for existence only; the lookup above was the probe.
	if sig == 0 {
		return nil
	}
	if err := target.SendSignal(caller, SignalInfoTkill(sig, p.ID())); err != nil {
		return err
	}
	if target != caller {
		// Kick the target's host context so a thread parked in the
		// host resumes and notices the pending signal.
		if err := target.Context().Resume(); err != nil {
			return err
		}
	}
	return nil
}
