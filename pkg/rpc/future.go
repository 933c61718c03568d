/*
Copyright 2017 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rpc

import (
	"context"
	"sync"
)

// Future is the promise half of the fabric. Calls on handles return one, and
// a remote method may itself return an unsettled Future to defer its response
// until the method resolves it.
//
// A future settles at most once; later settlements are ignored. Futures of
// calls into a disposed world never settle.
type Future struct {
	lock    sync.Mutex
	done    chan struct{}
	result  interface{}
	err     error
	settled bool
}

// NewFuture returns an unsettled future
func NewFuture() *Future {
	return &Future{
		done: make(chan struct{}),
	}
}

func resolvedFuture(result interface{}) *Future {
	future := NewFuture()
	future.Resolve(result)
	return future
}

func rejectedFuture(err error) *Future {
	future := NewFuture()
	future.Reject(err)
	return future
}

// Resolve settles the future with a result
func (f *Future) Resolve(result interface{}) {
	f.settle(result, nil)
}

// Reject settles the future with an error
func (f *Future) Reject(err error) {
	f.settle(nil, err)
}

// Await blocks until the future settles or the context is done
func (f *Future) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel that is closed once the future settles
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settlement, if any. The boolean reports whether the
// future has settled yet.
func (f *Future) Result() (interface{}, error, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.result, f.err, f.settled
}

func (f *Future) settle(result interface{}, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.settled {
		return
	}

	f.result = result
	f.err = err
	f.settled = true
	close(f.done)
}
