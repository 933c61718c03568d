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
	"strings"
	"sync/atomic"
)

// Handle is the proxy surface a remote (or local) object is used through.
// Any member name can be invoked; resolution happens where the object
// lives. Handles referring to the same (world, object) pair within a world
// are reference equal - the registry's dedup and the world's canonical
// handle table guarantee it.
type Handle struct {
	world    *World
	worldID  int
	objectID uint64

	// set for handles whose object lives in this world - the fast path for
	// materialization
	object interface{}

	disposed atomic.Bool
}

// WorldID returns the id of the world owning the underlying object
func (h *Handle) WorldID() int {
	return h.worldID
}

// ObjectID returns the object's id within the owning world's registry
func (h *Handle) ObjectID() uint64 {
	return h.objectID
}

// Call invokes a member on the underlying object and returns a future for
// its settlement. Member names beginning with an underscore are rejected
// locally, without touching the remote.
func (h *Handle) Call(member string, args ...interface{}) *Future {
	if strings.HasPrefix(member, "_") {
		return rejectedFuture(errPrivateMember())
	}

	if h.disposed.Load() {
		return rejectedFuture(errDisposed())
	}

	return h.world.call(h, member, args)
}

// CallWait invokes a member and awaits the result
func (h *Handle) CallWait(ctx context.Context, member string, args ...interface{}) (interface{}, error) {
	return h.Call(member, args...).Await(ctx)
}

// Invoke calls a function handle - a handle whose underlying object is a
// bare function - with the given arguments
func (h *Handle) Invoke(args ...interface{}) *Future {
	if h.disposed.Load() {
		return rejectedFuture(errDisposed())
	}

	return h.world.call(h, "", args)
}
