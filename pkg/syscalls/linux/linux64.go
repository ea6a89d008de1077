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

// Package linux provides emulated syscall implementations with Linux
// semantics.
package linux

import (
	"veilos.dev/veilos/pkg/syscalls"
)

// AMD64 maps amd64 syscall numbers to their implementations.
var AMD64 = syscalls.Table{
	13:  {Name: "rt_sigaction", Fn: RtSigaction},
	14:  {Name: "rt_sigprocmask", Fn: RtSigprocmask},
	15:  {Name: "rt_sigreturn", Fn: RtSigreturn},
	62:  {Name: "kill", Fn: Kill},
	127: {Name: "rt_sigpending", Fn: RtSigpending},
	128: {Name: "rt_sigtimedwait", Fn: RtSigtimedwait},
	130: {Name: "rt_sigsuspend", Fn: RtSigsuspend},
	131: {Name: "sigaltstack", Fn: Sigaltstack},
	200: {Name: "tkill", Fn: Tkill},
	234: {Name: "tgkill", Fn: Tgkill},
}
