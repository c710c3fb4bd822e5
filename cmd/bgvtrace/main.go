// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command bgvtrace scans binary compiler-IR dumps into a seekable
// StreamIndex, persists that index, and materializes individual groups or
// graphs from it on demand. It has no UI of its own: the layout engine
// and UI chrome this reads for are out of scope.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/fau-hpc/bgvtrace/internal/config"
	"github.com/fau-hpc/bgvtrace/pkg/log"
)

var version = "development"

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("bgvtrace version %s\n", version)
		return
	}

	log.SetLogDateTime(flagLogDateTime)
	log.SetLogLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.Init(flagConfigFile); err != nil {
		log.Fatal(err)
	}
	if flagLogLevel == "info" && config.Keys.LogLevel != "" {
		log.SetLogLevel(config.Keys.LogLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bgvtrace [flags] <scan|inspect|materialize|serve> [subcommand flags]")
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "scan":
		err = runScan(args[1:])
	case "inspect":
		err = runInspect(args[1:])
	case "materialize":
		err = runMaterialize(args[1:])
	case "serve":
		err = runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "bgvtrace: unknown subcommand %q\n", args[0])
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}
