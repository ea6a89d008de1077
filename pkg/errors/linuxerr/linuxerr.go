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

// Package linuxerr contains syscall error codes exported as an error
// interface. The errors are singletons, so comparison and return operations
// are cheap and comparable to unix.Errno constants.
package linuxerr

import (
	"golang.org/x/sys/unix"

	"veilos.dev/veilos/pkg/abi/linux/errno"
	"veilos.dev/veilos/pkg/errors"
)

// The following errors are semantically identical to Errno of type
// unix.Errno. However, since the types are distinct (these are
// *errors.Error), they are not directly comparable; use Equals or the Errno
// method for comparisons crossing the type boundary.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(errno.EPERM, "operation not permitted")
	ESRCH                 = errors.New(errno.ESRCH, "no such process")
	EINTR                 = errors.New(errno.EINTR, "interrupted system call")
	EIO                   = errors.New(errno.EIO, "I/O error")
	EAGAIN                = errors.New(errno.EAGAIN, "try again")
	ENOMEM                = errors.New(errno.ENOMEM, "out of memory")
	EACCES                = errors.New(errno.EACCES, "permission denied")
	EFAULT                = errors.New(errno.EFAULT, "bad address")
	EBUSY                 = errors.New(errno.EBUSY, "device or resource busy")
	EINVAL                = errors.New(errno.EINVAL, "invalid argument")
	ENOSYS                = errors.New(errno.ENOSYS, "invalid system call number")
	ETIMEDOUT             = errors.New(errno.ETIMEDOUT, "connection timed out")

	// EWOULDBLOCK is equivalent to EAGAIN.
	EWOULDBLOCK = EAGAIN
)

// ToError converts a linuxerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts a linuxerr to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	var unixErr unix.Errno
	if e != noError {
		unixErr = unix.Errno(e.Errno())
	}
	return unixErr
}

// Equals compares a linuxerr to a given error.
func Equals(e *errors.Error, err error) bool {
	var unixErr unix.Errno
	if e != noError {
		unixErr = unix.Errno(e.Errno())
	}
	if err == nil {
		err = noError
	}
	return e == err || unixErr == err
}
