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

// pendingSignals holds signals awaiting consumption, with at most one
// recorded instance per signal number (non-realtime semantics: a signal
// posted while already pending is dropped, which is a success).
//
// pendingSignals is not thread-safe; the queue's owner (a Thread or a
// Process) guards it with its own lock.
type pendingSignals struct {
	// pendingSet is the set of signals with a queued instance.
	pendingSet linux.SignalSet

	// infos holds the queued instance for each pending signal, indexed by
	// linux.Signal.Index().
	infos [linux.SignalMaximum]linux.SignalInfo
}

// enqueue adds a copy of info to the queue. It returns false if an instance
// of the signal was already pending, in which case info is dropped.
func (p *pendingSignals) enqueue(info *linux.SignalInfo) bool {
	sig := info.Signal()
	if p.pendingSet&linux.SignalSetOf(sig) != 0 {
		return false
	}
	p.infos[sig.Index()] = *info
	p.pendingSet |= linux.SignalSetOf(sig)
	return true
}

// dequeue removes and returns the pending instance of the lowest-numbered
// signal in the given set of acceptable signals, or nil if none is pending.
func (p *pendingSignals) dequeue(acceptable linux.SignalSet) *linux.SignalInfo {
	ready := p.pendingSet & acceptable
	if ready == 0 {
		return nil
	}
	var info *linux.SignalInfo
	linux.ForEachSignal(ready, func(sig linux.Signal) {
		if info != nil {
			return
		}
		cp := p.infos[sig.Index()]
		info = &cp
		p.pendingSet &^= linux.SignalSetOf(sig)
	})
	return info
}

// discard drops any pending instances of signals in the given set. Entries
// for ignored signals need not be reported as pending and may be removed
// this way.
func (p *pendingSignals) discard(set linux.SignalSet) {
	p.pendingSet &^= set
}

// pending returns the set of currently queued signals.
func (p *pendingSignals) pending() linux.SignalSet {
	return p.pendingSet
}
