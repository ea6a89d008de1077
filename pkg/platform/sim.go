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

package platform

import (
	"veilos.dev/veilos/pkg/abi/linux"
	"veilos.dev/veilos/pkg/sync"
)

// SimContext is an in-memory Context used by tests and the simulator. Real
// guests get their contexts from trap marshalling.
type SimContext struct {
	mu sync.Mutex

	ip        uint64
	sp        uint64
	retval    uintptr
	savedIP   uint64
	savedMask linux.SignalSet

	// ResumeErr, if set, is returned by Resume. It lets tests model a
	// substrate that fails to unsuspend a context.
	ResumeErr error

	// Resumed counts calls to Resume.
	Resumed int
}

// NewSimContext returns a SimContext with the given register state.
func NewSimContext(ip, sp uint64) *SimContext {
	return &SimContext{ip: ip, sp: sp}
}

// IP implements Context.IP.
func (c *SimContext) IP() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ip
}

// SetIP implements Context.SetIP.
func (c *SimContext) SetIP(ip uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ip = ip
}

// SP implements Context.SP.
func (c *SimContext) SP() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sp
}

// SetSP sets the stack pointer.
func (c *SimContext) SetSP(sp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sp = sp
}

// ReturnValue implements Context.ReturnValue.
func (c *SimContext) ReturnValue() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retval
}

// SetReturnValue sets the value returned once the context resumes.
func (c *SimContext) SetReturnValue(v uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retval = v
}

// SavedSignalMask implements Context.SavedSignalMask.
func (c *SimContext) SavedSignalMask() linux.SignalSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedMask
}

// SetSavedSignalMask records the mask bundled with the interrupted context.
func (c *SimContext) SetSavedSignalMask(mask linux.SignalSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.savedMask = mask
}

// SavedIP implements Context.SavedIP.
func (c *SimContext) SavedIP() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedIP
}

// SetSavedIP records the where-to-return guest address.
func (c *SimContext) SetSavedIP(ip uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.savedIP = ip
}

// Resume implements Context.Resume.
func (c *SimContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ResumeErr != nil {
		return c.ResumeErr
	}
	c.Resumed++
	return nil
}
