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

	"veilos.dev/veilos/pkg/hostarch"
)

// NsecPerSec is the number of nanoseconds in a second.
const NsecPerSec = int64(time.Second)

// Timespec represents struct timespec in <time.h>.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// TimespecSize is the size in bytes of Timespec on the wire.
const TimespecSize = 16

// SizeBytes returns the marshalled size of ts.
func (ts *Timespec) SizeBytes() int {
	return TimespecSize
}

// MarshalBytes serializes ts into dst.
//
// Preconditions: len(dst) >= ts.SizeBytes().
func (ts *Timespec) MarshalBytes(dst []byte) {
	hostarch.ByteOrder.PutUint64(dst[0:], uint64(ts.Sec))
	hostarch.ByteOrder.PutUint64(dst[8:], uint64(ts.Nsec))
}

// UnmarshalBytes deserializes ts from src.
//
// Preconditions: len(src) >= ts.SizeBytes().
func (ts *Timespec) UnmarshalBytes(src []byte) {
	ts.Sec = int64(hostarch.ByteOrder.Uint64(src[0:]))
	ts.Nsec = int64(hostarch.ByteOrder.Uint64(src[8:]))
}

// Valid returns whether the timespec contains valid values.
func (ts *Timespec) Valid() bool {
	return !(ts.Sec < 0 || ts.Nsec < 0 || ts.Nsec >= NsecPerSec)
}

// ToNsecCapped converts to nanoseconds, capping at the maxmimum representable
// value.
func (ts *Timespec) ToNsecCapped() int64 {
	if ts.Sec > math.MaxInt64/NsecPerSec {
		return math.MaxInt64
	}
	nsec := ts.Sec * NsecPerSec
	if math.MaxInt64-nsec < ts.Nsec {
		return math.MaxInt64
	}
	return nsec + ts.Nsec
}

// ToDuration converts to a time.Duration, capped at the maximum representable
// value.
func (ts *Timespec) ToDuration() time.Duration {
	return time.Duration(ts.ToNsecCapped())
}
