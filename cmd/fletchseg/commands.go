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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/creachadair/command"
	"github.com/creachadair/fletchseg/segment"
	"github.com/creachadair/fletchseg/segstore"
)

func getContext(env *command.Env) context.Context {
	return env.Config.(*settings).Context
}

// openInput returns a reader for args[0], or stdin if args is empty.
func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 {
		return io.NopCloser(os.Stdin), nil
	} else if len(args) > 1 {
		return nil, errors.New("at most one input path may be given")
	}
	return os.Open(args[0])
}

func openSegmenter(env *command.Env, args []string) (*segment.Segmenter, io.Closer, error) {
	cfg := env.Config.(*settings)
	in, err := openInput(args)
	if err != nil {
		return nil, nil, err
	}
	s, err := (&segment.Config{MinSizeBits: cfg.MinSizeBits}).Open(in)
	if err != nil {
		in.Close()
		return nil, nil, err
	}
	return s, in, nil
}

func openStore(env *command.Env) (segstore.Store, error) {
	cfg := env.Config.(*settings)
	if cfg.Store == "" {
		return segstore.NewMemStore(), nil
	}
	base, err := segstore.NewDiskStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", cfg.Store, err)
	}
	return segstore.NewCachedStore(base, 64<<20), nil
}

func cutCmd(env *command.Env, args []string) error {
	s, in, err := openSegmenter(env, args)
	if err != nil {
		return err
	}
	defer in.Close()
	defer s.Close()

	var n, total int
	err = s.Split(func(seg []byte) error {
		n++
		total += len(seg)
		fmt.Printf("%d. %d bytes, key %s\n", n, len(seg), segstore.ComputeKey(seg))
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d segments, %d bytes total\n", n, total)
	return nil
}

func putCmd(env *command.Env, args []string) error {
	s, in, err := openSegmenter(env, args)
	if err != nil {
		return err
	}
	defer in.Close()
	defer s.Close()

	store, err := openStore(env)
	if err != nil {
		return err
	}
	defer store.Close(getContext(env))

	ctx := getContext(env)
	return s.Split(func(seg []byte) error {
		key, err := store.Put(ctx, seg)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	})
}

func getCmd(env *command.Env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage is: get <key>")
	}
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != len(segstore.Key{}) {
		return fmt.Errorf("invalid key %q", args[0])
	}
	var key segstore.Key
	copy(key[:], raw)

	store, err := openStore(env)
	if err != nil {
		return err
	}
	defer store.Close(getContext(env))

	data, err := store.Get(getContext(env), key)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func listCmd(env *command.Env, args []string) error {
	if len(args) != 0 {
		return errors.New("usage is: list")
	}
	cfg := env.Config.(*settings)
	store, err := openStore(env)
	if err != nil {
		return err
	}
	defer store.Close(getContext(env))

	return store.List(getContext(env), func(key segstore.Key) error {
		if cfg.Raw {
			os.Stdout.Write(key[:])
		} else {
			fmt.Println(key)
		}
		return nil
	})
}

func lenCmd(env *command.Env, args []string) error {
	if len(args) != 0 {
		return errors.New("usage is: len")
	}
	store, err := openStore(env)
	if err != nil {
		return err
	}
	defer store.Close(getContext(env))

	n, err := store.Len(getContext(env))
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}
