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

	"veilos.dev/veilos/pkg/log"
)

// runCmd implements subcommands.Command for the "run" command.
type runCmd struct{}

// Name implements subcommands.Command.Name.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*runCmd) Synopsis() string {
	return "replay a scenario file and print the final signal state"
}

// Usage implements subcommands.Command.Usage.
func (*runCmd) Usage() string {
	return "run <scenario.toml>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*runCmd) SetFlags(f *flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)

	scenario, err := LoadScenario(path)
	if err != nil {
		log.Warningf("%v", err)
		return subcommands.ExitFailure
	}
	sim, err := scenario.Build()
	if err != nil {
		log.Warningf("Building scenario: %v", err)
		return subcommands.ExitFailure
	}
	log.Infof("Replaying %s: pid %d, %d threads, %d steps", path, scenario.PID, len(scenario.Threads), len(scenario.Steps))
	report, err := scenario.Replay(sim)
	if err != nil {
		log.Warningf("Replaying scenario: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Fprint(os.Stdout, report.String())
	return subcommands.ExitSuccess
}
