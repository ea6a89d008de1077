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
	"veilos.dev/veilos/pkg/errors/linuxerr"
	"veilos.dev/veilos/pkg/sync"
)

// UnblockableSignals contains the signals that cannot be blocked, caught or
// ignored. The bits are cleared from any mask a thread observes or installs.
var UnblockableSignals = linux.MakeSignalSet(linux.SIGKILL, linux.SIGSTOP)

// SignalHandlers holds information about signal actions: one table per
// process, shared by reference among every thread of that process.
type SignalHandlers struct {
	// mu protects actions, and the pointer-sized reads of individual
	// actions taken by delivery paths.
	mu sync.Mutex

	// actions is the set of signal dispositions, indexed by
	// linux.Signal.Index().
	actions [linux.SignalMaximum]linux.SigAction
}

// NewSignalHandlers returns a new SignalHandlers with all signals set to the
// default action.
func NewSignalHandlers() *SignalHandlers {
	return &SignalHandlers{}
}

// Fork returns a copy of sh for a new process.
func (sh *SignalHandlers) Fork() *SignalHandlers {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fork := NewSignalHandlers()
	fork.actions = sh.actions
	return fork
}

// CopyForExec returns a copy of sh for a process that is undergoing an exec.
// As per POSIX, any signal disposition other than ignore reverts to the
// default action.
func (sh *SignalHandlers) CopyForExec() *SignalHandlers {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cp := NewSignalHandlers()
	for i, act := range sh.actions {
		if act.IsIgnore() {
			cp.actions[i].Handler = linux.SIG_IGN
		}
	}
	return cp
}

// SetSigAction atomically swaps the action for signal sig: if actptr is not
// nil it becomes the new action, and the previous action is returned either
// way. SIGKILL and SIGSTOP can be neither read nor written through this API.
//
// The stored action's handler-entry mask is filtered through
// UnblockableSignals before it takes effect.
func (sh *SignalHandlers) SetSigAction(sig linux.Signal, actptr *linux.SigAction) (linux.SigAction, error) {
	if sig == linux.SIGKILL || sig == linux.SIGSTOP || !sig.IsValid() {
		return linux.SigAction{}, linuxerr.EINVAL
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	oldact := sh.actions[sig.Index()]
	if actptr != nil {
		act := *actptr
		act.Mask &^= UnblockableSignals
		sh.actions[sig.Index()] = act
	}
	return oldact, nil
}

// SigAction returns the action for signal sig.
func (sh *SignalHandlers) SigAction(sig linux.Signal) (linux.SigAction, error) {
	if !sig.IsValid() {
		return linux.SigAction{}, linuxerr.EINVAL
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.actions[sig.Index()], nil
}

// IsIgnored returns true if the disposition for sig is to ignore it.
func (sh *SignalHandlers) IsIgnored(sig linux.Signal) bool {
	if !sig.IsValid() {
		return false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.actions[sig.Index()].IsIgnore()
}

// IgnoredSignals returns the set of signals whose disposition is currently
// to ignore them.
func (sh *SignalHandlers) IgnoredSignals() linux.SignalSet {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	var ignored linux.SignalSet
	for i := range sh.actions {
		if sh.actions[i].IsIgnore() {
			ignored |= linux.SignalSetOf(linux.Signal(i + 1))
		}
	}
	return ignored
}
