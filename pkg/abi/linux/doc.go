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

// Package linux contains the constants and types needed to present a Linux
// signal ABI to guest applications: signal numbers, sigaction and sigaltstack
// structures, siginfo, and their wire encodings.
//
// Everything here mirrors the amd64 kernel uapi; sizes and offsets are part
// of the ABI and must not change.
package linux
