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
	"reflect"
	"sync"

	"github.com/nuclio/logger"
)

type registryEntry struct {
	object   interface{}
	disposed bool
}

// objectRegistry is a world's table of locally owned objects. Ids are
// monotonic and never reused; disposed entries are tombstoned rather than
// removed so that late arriving calls fail cleanly instead of racing with
// id reuse.
type objectRegistry struct {
	logger   logger.Logger
	lock     sync.Mutex
	nextID   uint64
	entries  map[uint64]*registryEntry
	identity map[uintptr]uint64
}

func newObjectRegistry(parentLogger logger.Logger) *objectRegistry {
	return &objectRegistry{
		logger:   parentLogger.GetChild("registry"),
		entries:  map[uint64]*registryEntry{},
		identity: map[uintptr]uint64{},
	}
}

// register assigns an id to the object, or returns the id it already holds.
// Registering the same object twice yields the same id - this is what makes
// a round tripped handle compare equal to the original.
//
// Bare callables are the exception: a func value's code pointer does not
// identify a closure (two closures built from the same literal share it),
// so funcs are never deduped - every registration of one yields a fresh id.
// Callers that need dedup for a callable wrap it in a pointer-identified
// object.
func (r *objectRegistry) register(object interface{}) (uint64, error) {
	if _, objectIsHandle := object.(*Handle); objectIsHandle {
		return 0, errInvalidInput(messageHandleToHandle)
	}

	identityKey, hasIdentity, err := objectIdentity(object)
	if err != nil {
		return 0, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if hasIdentity {
		if existingID, found := r.identity[identityKey]; found {
			return existingID, nil
		}
	}

	r.nextID++
	objectID := r.nextID

	r.entries[objectID] = &registryEntry{object: object}

	if hasIdentity {
		r.identity[identityKey] = objectID
	}

	r.logger.DebugWith("Registered object", "objectId", objectID)

	return objectID, nil
}

// lookup resolves an id to its object, failing on tombstoned or unknown ids
func (r *objectRegistry) lookup(objectID uint64) (interface{}, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	entry, found := r.entries[objectID]
	if !found {
		return nil, errNotFound(objectID)
	}

	if entry.disposed {
		return nil, errDisposed()
	}

	return entry.object, nil
}

// peek returns the object behind an id regardless of tombstoning. Used to
// attach the fast path reference to canonical handles.
func (r *objectRegistry) peek(objectID uint64) (interface{}, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	entry, found := r.entries[objectID]
	if !found {
		return nil, false
	}

	return entry.object, true
}

// dispose tombstones an entry. The id stays taken for the life of the world.
func (r *objectRegistry) dispose(objectID uint64) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	entry, found := r.entries[objectID]
	if !found {
		return errNotFound(objectID)
	}

	entry.disposed = true

	return nil
}

// objectIdentity derives a stable identity key for dedup. Only reference
// values can be handle targets - a by-value struct has no identity to
// round trip on. Funcs are accepted but carry no usable identity:
// Value.Pointer() yields the code entry point, which distinct closures
// share, so deduping on it would conflate them.
func objectIdentity(object interface{}) (uintptr, bool, error) {
	objectValue := reflect.ValueOf(object)

	switch objectValue.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return objectValue.Pointer(), true, nil
	case reflect.Func:
		return 0, false, nil
	default:
		return 0, false, errInvalidInput("Object must be a reference value (pointer, map, channel or function)")
	}
}
