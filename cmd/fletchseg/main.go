// Copyright 2019 Michael J. Fromberger. All Rights Reserved.
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

// Program fletchseg cuts stdin (or a file) into content-defined segments and
// optionally stores them in a segstore.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/creachadair/command"
)

type settings struct {
	Context context.Context

	// Flag targets
	Store       string // global: segstore directory; empty means in-memory
	MinSizeBits int    // global: segment.Config.MinSizeBits
	Raw         bool   // list
}

func main() {
	if err := command.Execute(tool.NewEnv(&settings{
		Context: context.Background(),
	}), os.Args[1:]); err != nil {
		if errors.Is(err, command.ErrUsage) {
			os.Exit(2)
		}
		log.Fatalf("Error: %v", err)
	}
}

var tool = &command.C{
	Name: filepath.Base(os.Args[0]),
	Usage: `[options] command [args...]
help [command]`,
	Help: `Cut input into content-defined segments and store them by content address.

The FLETCHSEG_STORE environment variable is read to choose a default store
directory. If neither it nor -store is set, commands use an in-memory store
whose contents are discarded when the command exits.
`,

	SetFlags: func(env *command.Env, fs *flag.FlagSet) {
		cfg := env.Config.(*settings)
		fs.StringVar(&cfg.Store, "store", os.Getenv("FLETCHSEG_STORE"), "Segment store directory")
		fs.IntVar(&cfg.MinSizeBits, "min-size-bits", 0, "Minimum segment size, as a power of two (0 selects the default)")
	},

	Init: func(env *command.Env) error {
		cfg := env.Config.(*settings)
		cfg.Store = os.ExpandEnv(cfg.Store)
		return nil
	},

	Commands: []*command.C{
		{
			Name:  "cut",
			Usage: "cut [<path>]",
			Help:  "Split stdin, or the named file, into segments and print their sizes and keys",
			Run:   cutCmd,
		},
		{
			Name:  "put",
			Usage: "put [<path>]",
			Help:  "Split stdin, or the named file, into segments and store each one",
			Run:   putCmd,
		},
		{
			Name:  "get",
			Usage: "get <key>",
			Help:  "Print the bytes stored under a segment key",
			Run:   getCmd,
		},
		{
			Name: "list",
			Help: "List the keys of stored segments",
			SetFlags: func(env *command.Env, fs *flag.FlagSet) {
				cfg := env.Config.(*settings)
				fs.BoolVar(&cfg.Raw, "raw", false, "Print raw key bytes without hex encoding")
			},
			Run: listCmd,
		},
		{
			Name: "len",
			Help: "Print the number of stored segments",
			Run:  lenCmd,
		},
		command.HelpCommand(nil),
	},
}
