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

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/ipc"
	"veilos.dev/veilos/pkg/kernel"
	"veilos.dev/veilos/pkg/log"
	"veilos.dev/veilos/pkg/platform"
	"veilos.dev/veilos/pkg/sync"
)

// Scenario is the top-level TOML document driving a simulation: one local
// process, its threads, and a script of signal operations.
type Scenario struct {
	PID     int32        `toml:"pid"`
	PGID    int32        `toml:"pgid"`
	Backend string       `toml:"backend"`
	Threads []ThreadSpec `toml:"thread"`
	Steps   []Step       `toml:"step"`
}

// ThreadSpec describes one simulated thread.
type ThreadSpec struct {
	TID int32  `toml:"tid"`
	IP  uint64 `toml:"ip"`
	SP  uint64 `toml:"sp"`
}

// Step is one scripted operation. Op selects the operation; the remaining
// fields are interpreted per-op.
type Step struct {
	Op        string   `toml:"op"`
	Thread    int32    `toml:"thread"`
	Signal    string   `toml:"signal"`
	Signals   []string `toml:"signals"`
	How       string   `toml:"how"`
	Handler   uint64   `toml:"handler"`
	Pid       int32    `toml:"pid"`
	Tgid      int32    `toml:"tgid"`
	Tid       int32    `toml:"tid"`
	TimeoutMS int64    `toml:"timeout_ms"`

	// Status is the raw wait status reported by a childexit step; bit
	// 0x80 marks a core dump.
	Status uint32 `toml:"status"`

	// Async runs the step in its own goroutine; all async steps are
	// joined after the script finishes. Only blocking ops (sigtimedwait)
	// are allowed to be async.
	Async bool `toml:"async"`
}

var signalsByName = map[string]linux.Signal{
	"SIGHUP":   linux.SIGHUP,
	"SIGINT":   linux.SIGINT,
	"SIGQUIT":  linux.SIGQUIT,
	"SIGILL":   linux.SIGILL,
	"SIGABRT":  linux.SIGABRT,
	"SIGBUS":   linux.SIGBUS,
	"SIGFPE":   linux.SIGFPE,
	"SIGKILL":  linux.SIGKILL,
	"SIGUSR1":  linux.SIGUSR1,
	"SIGSEGV":  linux.SIGSEGV,
	"SIGUSR2":  linux.SIGUSR2,
	"SIGPIPE":  linux.SIGPIPE,
	"SIGALRM":  linux.SIGALRM,
	"SIGTERM":  linux.SIGTERM,
	"SIGCHLD":  linux.SIGCHLD,
	"SIGCONT":  linux.SIGCONT,
	"SIGSTOP":  linux.SIGSTOP,
	"SIGTSTP":  linux.SIGTSTP,
	"SIGURG":   linux.SIGURG,
	"SIGWINCH": linux.SIGWINCH,
	"SIGIO":    linux.SIGIO,
	"SIGSYS":   linux.SIGSYS,
}

// ParseSignal accepts a SIG* name or a decimal signal number.
func ParseSignal(s string) (linux.Signal, error) {
	if sig, ok := signalsByName[strings.ToUpper(s)]; ok {
		return sig, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > linux.SignalMaximum {
		return 0, fmt.Errorf("unknown signal %q", s)
	}
	return linux.Signal(n), nil
}

func parseSignalSet(names []string) (linux.SignalSet, error) {
	var set linux.SignalSet
	for _, name := range names {
		sig, err := ParseSignal(name)
		if err != nil {
			return 0, err
		}
		set |= linux.SignalSetOf(sig)
	}
	return set, nil
}

// LoadScenario parses and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	var s Scenario
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the scenario for structural errors before anything is
// built.
func (s *Scenario) Validate() error {
	if s.PID <= 0 {
		return fmt.Errorf("pid must be positive, got %d", s.PID)
	}
	switch s.Backend {
	case "", "direct", "vm":
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if len(s.Threads) == 0 {
		return fmt.Errorf("at least one thread is required")
	}
	tids := make(map[int32]bool)
	for _, ts := range s.Threads {
		if ts.TID <= 0 {
			return fmt.Errorf("thread tid must be positive, got %d", ts.TID)
		}
		if tids[ts.TID] {
			return fmt.Errorf("duplicate thread tid %d", ts.TID)
		}
		tids[ts.TID] = true
	}
	for i, step := range s.Steps {
		if err := step.validate(tids); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}
	return nil
}

func (st *Step) validate(tids map[int32]bool) error {
	needThread := func() error {
		if !tids[st.Thread] {
			return fmt.Errorf("no such thread %d", st.Thread)
		}
		return nil
	}
	switch st.Op {
	case "sigaction":
		if _, err := ParseSignal(st.Signal); err != nil {
			return err
		}
		return needThread()
	case "mask":
		switch st.How {
		case "block", "unblock", "setmask":
		default:
			return fmt.Errorf("unknown how %q", st.How)
		}
		if _, err := parseSignalSet(st.Signals); err != nil {
			return err
		}
		return needThread()
	case "sigtimedwait":
		if _, err := parseSignalSet(st.Signals); err != nil {
			return err
		}
		return needThread()
	case "kill", "tkill", "tgkill":
		// Bad pids and tids are exercised at runtime (ESRCH), not
		// rejected here.
		_, err := ParseSignal(st.Signal)
		return err
	case "childexit":
		if st.Pid <= 0 {
			return fmt.Errorf("child pid must be positive, got %d", st.Pid)
		}
		return nil
	case "fault":
		if _, err := ParseSignal(st.Signal); err != nil {
			return err
		}
		return needThread()
	case "sleep":
		if st.TimeoutMS < 0 {
			return fmt.Errorf("negative timeout_ms")
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

// Sim is a built scenario: a kernel wired to a loopback transport with one
// registered thread per ThreadSpec.
type Sim struct {
	Kernel  *kernel.Kernel
	threads map[int32]*kernel.Thread
}

// Build constructs the kernel and threads described by the scenario.
func (s *Scenario) Build() (*Sim, error) {
	var backend platform.Backend
	switch s.Backend {
	case "", "direct":
		backend = platform.Direct{}
	case "vm":
		backend = &platform.VMTrampoline{HostType: "vm", SetUserIP: func(uint64) {}}
	}
	loop := ipc.NewLoopback()
	pgid := kernel.ProcessGroupID(s.PGID)
	if pgid == 0 {
		pgid = kernel.ProcessGroupID(s.PID)
	}
	k, err := kernel.New(kernel.Config{
		PID:       kernel.ProcessID(s.PID),
		PGID:      pgid,
		Transport: loop,
		Backend:   backend,
	})
	if err != nil {
		return nil, err
	}
	loop.Register(k)

	sim := &Sim{
		Kernel:  k,
		threads: make(map[int32]*kernel.Thread),
	}
	for _, ts := range s.Threads {
		t, err := k.Process().NewThread(kernel.ThreadConfig{
			TID:     kernel.ThreadID(ts.TID),
			Context: platform.NewSimContext(ts.IP, ts.SP),
		})
		if err != nil {
			return nil, fmt.Errorf("creating thread %d: %w", ts.TID, err)
		}
		sim.threads[ts.TID] = t
	}
	return sim, nil
}

// Report is the observable state after a replay.
type Report struct {
	ProcessPending linux.SignalSet
	ThreadMasks    map[int32]linux.SignalSet
	ThreadPending  map[int32]linux.SignalSet
	Waited         []linux.Signal
}

// String renders the report one line per fact, tids ascending.
func (r *Report) String() string {
	var b strings.Builder
	tids := make([]int32, 0, len(r.ThreadMasks))
	for tid := range r.ThreadMasks {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	for _, tid := range tids {
		fmt.Fprintf(&b, "thread %d: mask=%#x pending=%#x\n", tid, uint64(r.ThreadMasks[tid]), uint64(r.ThreadPending[tid]))
	}
	fmt.Fprintf(&b, "process pending=%#x\n", uint64(r.ProcessPending))
	for _, sig := range r.Waited {
		fmt.Fprintf(&b, "waited: signal %d\n", int(sig))
	}
	return b.String()
}

// Replay runs the script and returns the final state. Async steps are run
// concurrently and joined before the report is taken.
func (s *Scenario) Replay(sim *Sim) (*Report, error) {
	var g errgroup.Group
	var mu sync.Mutex
	var waited []linux.Signal

	for i, step := range s.Steps {
		step := step
		run := func() error {
			err := s.runStep(sim, &step, func(got linux.Signal) {
				mu.Lock()
				waited = append(waited, got)
				mu.Unlock()
			})
			if err != nil {
				return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
			}
			return nil
		}
		if step.Async {
			g.Go(run)
			continue
		}
		if err := run(); err != nil {
			return nil, err
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		ThreadMasks:   make(map[int32]linux.SignalSet),
		ThreadPending: make(map[int32]linux.SignalSet),
		Waited:        waited,
	}
	for tid, t := range sim.threads {
		report.ThreadMasks[tid] = t.SignalMask()
		report.ThreadPending[tid] = t.PendingSignals()
	}
	report.ProcessPending = sim.Kernel.Process().PendingSignals()
	return report, nil
}

func (s *Scenario) runStep(sim *Sim, step *Step, onWait func(linux.Signal)) error {
	k := sim.Kernel
	t := sim.threads[step.Thread]
	switch step.Op {
	case "sigaction":
		sig, _ := ParseSignal(step.Signal)
		act := linux.SigAction{
			Handler: step.Handler,
			Flags:   linux.SA_RESTORER,
		}
		_, err := k.Process().SetSigAction(sig, &act)
		return err
	case "mask":
		set, _ := parseSignalSet(step.Signals)
		old := t.SignalMask()
		switch step.How {
		case "block":
			t.SetSignalMask(old | set)
		case "unblock":
			t.SetSignalMask(old &^ set)
		case "setmask":
			t.SetSignalMask(set)
		}
		return nil
	case "sigtimedwait":
		set, _ := parseSignalSet(step.Signals)
		timeout := time.Duration(step.TimeoutMS) * time.Millisecond
		if step.TimeoutMS == 0 {
			timeout = -1
		}
		info, err := t.Sigtimedwait(set, timeout)
		if err != nil {
			return err
		}
		onWait(linux.Signal(info.Signo))
		return nil
	case "kill":
		sig, _ := ParseSignal(step.Signal)
		return k.Kill(nil, kernel.ProcessID(step.Pid), sig)
	case "tkill":
		sig, _ := ParseSignal(step.Signal)
		return k.Tkill(nil, kernel.ThreadID(step.Tid), sig)
	case "tgkill":
		sig, _ := ParseSignal(step.Signal)
		return k.Tgkill(nil, kernel.ProcessID(step.Tgid), kernel.ThreadID(step.Tid), sig)
	case "childexit":
		// A child of the scenario process changed state; notify the
		// process with a SIGCHLD carrying the wait status.
		info := &linux.SignalInfo{Signo: int32(linux.SIGCHLD)}
		kernel.SetChildInfo(info, kernel.ProcessID(step.Pid), step.Status)
		return k.Process().SendSignal(nil, info)
	case "fault":
		// A hardware fault surfaces as a kernel-originated signal
		// directed at the faulting thread.
		sig, _ := ParseSignal(step.Signal)
		return t.SendSignal(nil, kernel.SignalInfoPriv(sig))
	case "sleep":
		time.Sleep(time.Duration(step.TimeoutMS) * time.Millisecond)
		return nil
	default:
		log.Warningf("Skipping unknown op %q", step.Op)
		return nil
	}
}
