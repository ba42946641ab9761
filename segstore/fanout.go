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

package segstore

import (
	"context"

	"github.com/creachadair/taskgroup"
)

// maxConcurrentPuts bounds how many segments PutAll hashes, compresses, and
// writes at once, the same shape as the background writer in
// storage/wbstore uses to bound its flush concurrency.
const maxConcurrentPuts = 64

// fanOut runs a bounded number of tasks concurrently and cancels the rest
// as soon as one of them fails.
type fanOut struct {
	ctx    context.Context
	cancel context.CancelFunc
	g      *taskgroup.Group
	run    func(func() error)
}

func newFanOut(ctx context.Context) *fanOut {
	ictx, cancel := context.WithCancel(ctx)
	g, run := taskgroup.New(taskgroup.Trigger(cancel)).Limit(maxConcurrentPuts)
	return &fanOut{ctx: ictx, cancel: cancel, g: g, run: run}
}

func (f *fanOut) wait() error {
	err := f.g.Wait()
	f.cancel()
	return err
}
