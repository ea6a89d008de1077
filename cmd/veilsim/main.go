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

// Binary veilsim replays signal-delivery scenarios against an in-memory
// kernel instance.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"veilos.dev/veilos/pkg/log"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging")
	logFormat = flag.String("log-format", "text", `log format: "text" or "glog"`)
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(runCmd), "")
	subcommands.Register(new(validateCmd), "")

	flag.Parse()

	if *debug {
		log.SetLevel(log.Debug)
	}
	switch *logFormat {
	case "text":
		log.SetTarget(&log.Writer{Next: os.Stderr})
	case "glog":
		log.SetTarget(log.GoogleEmitter{Emitter: &log.Writer{Next: os.Stderr}})
	default:
		log.Warningf("Unknown log format %q, using text", *logFormat)
	}

	os.Exit(int(subcommands.Execute(context.Background())))
}
