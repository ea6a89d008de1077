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

// Package errno holds errno codes for abi/linux.
package errno

// Errno represents a Linux errno value.
type Errno uint32

// Errno values from include/uapi/asm-generic/errno-base.h.
const (
	NOERRNO Errno = iota
	EPERM
	ENOENT
	ESRCH
	EINTR
	EIO
	ENXIO
	E2BIG
	ENOEXEC
	EBADF
	ECHILD // 10
	EAGAIN
	ENOMEM
	EACCES
	EFAULT
	ENOTBLK
	EBUSY
	EEXIST
	EXDEV
	ENODEV
	ENOTDIR // 20
	EISDIR
	EINVAL
	ENFILE
	EMFILE
	ENOTTY
	ETXTBSY
	EFBIG
	ENOSPC
	ESPIPE
	EROFS // 30
	EMLINK
	EPIPE
	EDOM
	ERANGE
)

// Errno values from include/uapi/asm-generic/errno.h.
const (
	EDEADLK Errno = iota + 35
	ENAMETOOLONG
	ENOLCK
	ENOSYS
	ENOTEMPTY
	ELOOP // 40
)

const (
	ENOMSG Errno = iota + 42
	EIDRM
)

// Errno values with no contiguous block.
const (
	ETIME      Errno = 62
	ETIMEDOUT  Errno = 110
	EALREADY   Errno = 114
	EINPROGRES Errno = 115

	// ERESTARTNOHAND is returned by an interrupted syscall that should be
	// restarted only if no signal handler was invoked.
	ERESTARTNOHAND Errno = 514
)

// EWOULDBLOCK is the "same" as EAGAIN on Linux.
const EWOULDBLOCK = EAGAIN
