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

package linuxerr

import (
	"veilos.dev/veilos/pkg/abi/linux/errno"
	"veilos.dev/veilos/pkg/errors"
)

var (
	// ErrInterrupted is returned if a request is interrupted before it can
	// complete.
	ErrInterrupted = errors.New(errno.EINTR, "request was interrupted")

	// ErrTimeout is an internal error used to indicate that a blocking
	// operation ran out its deadline before its predicate became true.
	ErrTimeout = errors.New(errno.ETIMEDOUT, "request timed out")

	// ERESTARTNOHAND is returned by an interrupted syscall that is
	// restarted only when no signal handler ran; callers outside the
	// syscall dispatch loop observe it as EINTR.
	ERESTARTNOHAND = errors.New(errno.ERESTARTNOHAND, "restart if no handler")
)

// ConvertIntr converts the provided error code (err) to another one (intr)
// if the first one corresponds to an interrupted operation.
func ConvertIntr(err, intr error) error {
	if err == ErrInterrupted || Equals(EINTR, err) {
		return intr
	}
	return err
}
