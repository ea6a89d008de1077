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
	"math"
	"time"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/arch"
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/kernel"
	"veilos.dev/veilos/pkg/log"
)

// Kill implements linux syscall kill(2).
func Kill(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	pid := kernel.ProcessID(args[0].Int())
	sig := linux.Signal(args[1].Int())
	return 0, t.Process().Kernel().Kill(t, pid, sig)
}

// Tkill implements linux syscall tkill(2).
func Tkill(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	tid := kernel.ThreadID(args[0].Int())
	sig := linux.Signal(args[1].Int())
	return 0, t.Process().Kernel().Tkill(t, tid, sig)
}

// Tgkill implements linux syscall tgkill(2).
func Tgkill(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	tgid := kernel.ProcessID(args[0].Int())
	tid := kernel.ThreadID(args[1].Int())
	sig := linux.Signal(args[2].Int())
	return 0, t.Process().Kernel().Tgkill(t, tgid, tid, sig)
}

// RtSigaction implements linux syscall rt_sigaction(2).
func RtSigaction(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	sig := linux.Signal(args[0].Int())
	newactAddr := args[1].Pointer()
	oldactAddr := args[2].Pointer()
	sigsetsize := args[3].SizeT()
	if sigsetsize != linux.SignalSetSize {
		return 0, linuxerr.EINVAL
	}
	var newactptr *linux.SigAction
	if newactAddr != 0 {
		var buf [linux.SigActionSize]byte
		if _, err := t.CopyInBytes(newactAddr, buf[:]); err != nil {
			return 0, err
		}
		var newact linux.SigAction
		newact.UnmarshalBytes(buf[:])
		if t.Process().Kernel().Backend().RequiresRestorer() && newact.Flags&linux.SA_RESTORER == 0 {
			log.Warningf("rt_sigaction: SA_RESTORER flag is required")
			return 0, linuxerr.EINVAL
		}
		newactptr = &newact
	}
	oldact, err := t.Process().SetSigAction(sig, newactptr)
	if err != nil {
		return 0, err
	}
	if oldactAddr != 0 {
		var buf [linux.SigActionSize]byte
		oldact.MarshalBytes(buf[:])
		if _, err := t.CopyOutBytes(oldactAddr, buf[:]); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// RtSigprocmask implements linux syscall rt_sigprocmask(2).
func RtSigprocmask(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	how := args[0].Int()
	setAddr := args[1].Pointer()
	oldAddr := args[2].Pointer()
	sigsetsize := args[3].SizeT()
	if sigsetsize != linux.SignalSetSize {
		return 0, linuxerr.EINVAL
	}
	switch how {
	case linux.SIG_BLOCK, linux.SIG_UNBLOCK, linux.SIG_SETMASK:
	default:
		return 0, linuxerr.EINVAL
	}
	oldmask := t.SignalMask()
	if oldAddr != 0 {
		if err := copyOutSigSet(t, oldAddr, oldmask); err != nil {
			return 0, err
		}
	}
	if setAddr != 0 {
		mask, err := CopyInSigSet(t, setAddr, sigsetsize)
		if err != nil {
			return 0, err
		}
		switch how {
		case linux.SIG_BLOCK:
			t.SetSignalMask(oldmask | mask)
		case linux.SIG_UNBLOCK:
			t.SetSignalMask(oldmask &^ mask)
		case linux.SIG_SETMASK:
			t.SetSignalMask(mask)
		}
	}
	return 0, nil
}

// Sigaltstack implements linux syscall sigaltstack(2).
func Sigaltstack(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	setAddr := args[0].Pointer()
	oldAddr := args[1].Pointer()

	alt := t.SignalStack()
	if oldAddr != 0 {
		var buf [linux.SignalStackSize]byte
		alt.MarshalBytes(buf[:])
		if _, err := t.CopyOutBytes(oldAddr, buf[:]); err != nil {
			return 0, err
		}
	}
	if setAddr != 0 {
		var buf [linux.SignalStackSize]byte
		if _, err := t.CopyInBytes(setAddr, buf[:]); err != nil {
			return 0, err
		}
		alt.UnmarshalBytes(buf[:])
		if alt.Flags&^linux.SS_DISABLE != 0 {
			return 0, linuxerr.EINVAL
		}
		if alt.Flags&linux.SS_DISABLE == 0 && alt.Size < linux.MINSIGSTKSZ {
			return 0, linuxerr.ENOMEM
		}
		if !t.SetSignalStack(alt) {
			// The thread is running on the configured stack.
			return 0, linuxerr.EPERM
		}
	}
	return 0, nil
}

// RtSigpending implements linux syscall rt_sigpending(2).
func RtSigpending(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	setAddr := args[0].Pointer()
	sigsetsize := args[1].SizeT()
	if sigsetsize != linux.SignalSetSize {
		return 0, linuxerr.EINVAL
	}
	return 0, copyOutSigSet(t, setAddr, t.PendingSignals())
}

// RtSigsuspend implements linux syscall rt_sigsuspend(2).
func RtSigsuspend(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	maskAddr := args[0].Pointer()
	sigsetsize := args[1].SizeT()
	mask, err := CopyInSigSet(t, maskAddr, sigsetsize)
	if err != nil {
		return 0, err
	}
	return 0, linuxerr.ConvertIntr(t.Sigsuspend(mask), linuxerr.ERESTARTNOHAND)
}

// RtSigtimedwait implements linux syscall rt_sigtimedwait(2).
func RtSigtimedwait(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	setAddr := args[0].Pointer()
	siginfoAddr := args[1].Pointer()
	timespecAddr := args[2].Pointer()
	sigsetsize := args[3].SizeT()

	set, err := CopyInSigSet(t, setAddr, sigsetsize)
	if err != nil {
		return 0, err
	}

	timeout := time.Duration(math.MaxInt64)
	if timespecAddr != 0 {
		var buf [linux.TimespecSize]byte
		if _, err := t.CopyInBytes(timespecAddr, buf[:]); err != nil {
			return 0, err
		}
		var ts linux.Timespec
		ts.UnmarshalBytes(buf[:])
		if !ts.Valid() {
			return 0, linuxerr.EINVAL
		}
		timeout = ts.ToDuration()
	}

	// Check the info pointer before waiting so a bad address cannot
	// consume a signal.
	if siginfoAddr != 0 {
		mm := t.MemoryManager()
		if mm == nil || !mm.Writable(siginfoAddr, linux.SignalInfoSize) {
			return 0, linuxerr.EFAULT
		}
	}

	info, err := t.Sigtimedwait(set, timeout)
	switch err {
	case nil:
	case linuxerr.ErrTimeout:
		return 0, linuxerr.EAGAIN
	default:
		return 0, err
	}

	if siginfoAddr != 0 {
		var buf [linux.SignalInfoSize]byte
		info.MarshalBytes(buf[:])
		if _, err := t.CopyOutBytes(siginfoAddr, buf[:]); err != nil {
			return 0, err
		}
	}
	return uintptr(info.Signo), nil
}

// RtSigreturn implements linux syscall rt_sigreturn(2).
func RtSigreturn(t *kernel.Thread, args arch.SyscallArguments) (uintptr, error) {
	return t.SignalReturn()
}
