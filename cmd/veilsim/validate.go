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
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// validateCmd implements subcommands.Command for the "validate" command.
type validateCmd struct{}

// Name implements subcommands.Command.Name.
func (*validateCmd) Name() string {
	return "validate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*validateCmd) Synopsis() string {
	return "check scenario files for errors without running them"
}

// Usage implements subcommands.Command.Usage.
func (*validateCmd) Usage() string {
	return "validate <scenario.toml>...\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*validateCmd) SetFlags(f *flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (v *validateCmd) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	status := subcommands.ExitSuccess
	for _, path := range f.Args() {
		if _, err := LoadScenario(path); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: ok\n", path)
	}
	return status
}
