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
	"sync"
	"sync/atomic"

	"github.com/nestarz/carlo/pkg/rpc/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

// world ids are allocated from a process wide counter, so that worlds
// spawning their own children never collide with their siblings. A world
// whose id was assigned by a peer bumps the counter past it.
var lastWorldID int64

func allocateWorldID() int {
	return int(atomic.AddInt64(&lastWorldID, 1))
}

func bumpWorldID(worldID int) {
	for {
		current := atomic.LoadInt64(&lastWorldID)
		if current >= int64(worldID) {
			return
		}

		if atomic.CompareAndSwapInt64(&lastWorldID, current, int64(worldID)) {
			return
		}
	}
}

type handleKey struct {
	worldID  int
	objectID uint64
}

// peerLink is one full duplex connection to a directly connected peer
type peerLink struct {
	id   string
	send transport.SendFunc
}

// World is an isolated execution context participating in the fabric. It
// owns an object registry, a call dispatcher and a set of links to directly
// connected peers; worlds it has no link to are reached through whichever
// peer introduced them.
type World struct {
	logger  logger.Logger
	metrics *worldMetrics

	lock          sync.Mutex
	id            int
	initialized   bool
	disposed      bool
	disposedChan  chan struct{}
	routes        map[int]*peerLink
	disposedPeers map[int]bool
	handles       map[handleKey]*Handle
	rootHandle    *Handle
	worldArgs     []interface{}
	readyWaiters  map[int]chan struct{}
	initializer   func(parent *Handle, world *World)

	registry   *objectRegistry
	dispatcher *dispatcher
}

// WorldOption configures a world at creation
type WorldOption func(*World) error

// NewRoot creates the root world of a fabric, world id 0. Children are
// spawned from it (or from each other) with CreateWorld.
func NewRoot(parentLogger logger.Logger, options ...WorldOption) (*World, error) {
	return newWorld(parentLogger, 0, true, options)
}

// InitWorld is the child side of world creation: it installs a receive
// callback on the transport and, once the parent's createWorld message
// arrives, records the assigned world id, invokes the initializer with a
// handle to the parent's root and acknowledges with worldReady.
func InitWorld(parentLogger logger.Logger,
	transportFactory transport.Factory,
	initializer func(parent *Handle, world *World),
	options ...WorldOption) (*World, error) {

	world, err := newWorld(parentLogger, -1, false, options)
	if err != nil {
		return nil, err
	}

	world.initializer = initializer

	if _, err := world.connect(transportFactory); err != nil {
		return nil, errors.Wrap(err, "Can't connect to parent")
	}

	return world, nil
}

func newWorld(parentLogger logger.Logger, id int, initialized bool, options []WorldOption) (*World, error) {
	world := &World{
		logger:        parentLogger.GetChild("rpc"),
		id:            id,
		initialized:   initialized,
		disposedChan:  make(chan struct{}),
		routes:        map[int]*peerLink{},
		disposedPeers: map[int]bool{},
		handles:       map[handleKey]*Handle{},
		readyWaiters:  map[int]chan struct{}{},
	}

	world.registry = newObjectRegistry(world.logger)
	world.dispatcher = newDispatcher(world.logger)

	for _, option := range options {
		if err := option(world); err != nil {
			return nil, err
		}
	}

	return world, nil
}

// ID returns this world's id. Child worlds report -1 until the parent's
// createWorld message has arrived.
func (w *World) ID() int {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.id
}

// WorldArgs returns the arguments the creating world passed to CreateWorld
func (w *World) WorldArgs() []interface{} {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.worldArgs
}

// SetRoot wraps an object as this world's root. A handle to the root is
// handed to children's initializers when they join.
func (w *World) SetRoot(object interface{}) (*Handle, error) {
	rootHandle, err := w.Handle(object)
	if err != nil {
		return nil, err
	}

	w.lock.Lock()
	w.rootHandle = rootHandle
	w.lock.Unlock()

	return rootHandle, nil
}

// Root returns the handle of this world's root object, if one was set
func (w *World) Root() *Handle {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.rootHandle
}

// Handle wraps a local object so it can travel to other worlds. Wrapping
// the same object twice returns the same handle, except for bare funcs,
// which get a fresh handle on every call; wrapping a handle is rejected.
func (w *World) Handle(object interface{}) (*Handle, error) {
	objectID, err := w.registry.register(object)
	if err != nil {
		return nil, err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	return w.canonicalHandle(w.id, objectID, nil), nil
}

// Object materializes a handle owned by this world back into its object.
// Cross world materialization is not offered - only member invocation is.
func (w *World) Object(handle *Handle) (interface{}, error) {
	w.lock.Lock()
	selfID := w.id
	w.lock.Unlock()

	if handle.worldID != selfID {
		return nil, errInvalidInput("Can not materialize an object from another world")
	}

	if handle.disposed.Load() {
		return nil, errDisposed()
	}

	return handle.object, nil
}

// Dispose tombstones a handle. Subsequent calls on it fail; the underlying
// registry entry, if local, is tombstoned as well so that calls arriving
// from peers fail the same way.
func (w *World) Dispose(handle *Handle) error {
	handle.disposed.Store(true)

	w.lock.Lock()
	selfID := w.id
	w.lock.Unlock()

	if handle.worldID == selfID {
		return w.registry.dispose(handle.objectID)
	}

	return nil
}

// CreateWorld spawns a child world over the given transport, assigns it a
// fresh world id and blocks until the child acknowledges with worldReady.
// The args are delivered to the child and retrievable there via WorldArgs.
func (w *World) CreateWorld(transportFactory transport.Factory, args ...interface{}) (int, error) {
	childWorldID := allocateWorldID()

	link, err := w.connect(transportFactory)
	if err != nil {
		return 0, errors.Wrap(err, "Can't connect to child world")
	}

	marshalledArgs, err := w.marshalAll(args)
	if err != nil {
		return 0, err
	}

	var marshalledParent interface{}

	w.lock.Lock()
	w.routes[childWorldID] = link
	readyChan := make(chan struct{})
	w.readyWaiters[childWorldID] = readyChan
	rootHandle := w.rootHandle
	w.lock.Unlock()

	if rootHandle != nil {
		if marshalledParent, err = w.marshal(rootHandle, 0); err != nil {
			return 0, err
		}
	}

	message := createWorldMessage{
		NewWorldID: childWorldID,
		Parent:     marshalledParent,
		Args:       marshalledArgs,
	}

	w.logger.DebugWith("Creating world", "childWorldId", childWorldID, "link", link.id)

	if err := link.send(message.toMap()); err != nil {
		return 0, errors.Wrap(err, "Can't send createWorld")
	}

	<-readyChan

	return childWorldID, nil
}

// DisposeWorld terminates the connection to a peer world: every pending
// call targeting it is rejected, and subsequent messages to or from it are
// dropped. Calls made on its handles afterwards never settle.
func (w *World) DisposeWorld(worldID int) {
	w.lock.Lock()
	w.disposedPeers[worldID] = true
	route := w.routes[worldID]
	w.lock.Unlock()

	w.dispatcher.cancelFor(worldID)

	w.logger.DebugWith("Disposed world", "worldId", worldID)

	if route != nil {
		message := disposeWorldMessage{WorldID: worldID}
		if err := route.send(message.toMap()); err != nil {
			w.logger.WarnWith("Can't notify disposed world", "worldId", worldID, "error", err)
		}
	}
}

// connect invokes a transport factory, wiring its receive side into this
// world's message demultiplexer
func (w *World) connect(transportFactory transport.Factory) (*peerLink, error) {
	link := &peerLink{
		id: xid.New().String(),
	}

	send, err := transportFactory(func(message interface{}) {
		w.handleMessage(link, message)
	})
	if err != nil {
		return nil, err
	}

	link.send = send

	return link, nil
}

// call performs the outbound half of an RPC on a handle
func (w *World) call(handle *Handle, member string, args []interface{}) *Future {
	w.lock.Lock()
	selfID := w.id
	selfDisposed := w.disposed
	peerDisposed := w.disposedPeers[handle.worldID]
	route := w.routes[handle.worldID]
	w.lock.Unlock()

	// calls into a disposed world are dropped on the issuing side: the
	// future never settles
	if selfDisposed || (handle.worldID != selfID && peerDisposed) {
		return NewFuture()
	}

	marshalledArgs, err := w.marshalAll(args)
	if err != nil {
		return rejectedFuture(err)
	}

	if handle.worldID == selfID {
		future := NewFuture()
		go w.dispatchLocal(future, handle.objectID, member, marshalledArgs)
		return future
	}

	if route == nil {
		return rejectedFuture(errInvalidInput("No route to world %d", handle.worldID))
	}

	pending, future := w.dispatcher.register(handle.worldID)

	message := callMessage{
		Seq:      pending.seq,
		From:     selfID,
		WorldID:  handle.worldID,
		ObjectID: handle.objectID,
		Member:   member,
		Args:     marshalledArgs,
	}

	w.metrics.callStarted(future, w.disposedChan)

	if err := route.send(message.toMap()); err != nil {
		w.dispatcher.settle(pending.seq, nil, errors.Wrap(err, "Can't send call"))
	}

	return future
}

// dispatchLocal services a call whose target object lives in this world.
// Arguments and results still round trip through the marshaller so that
// identity and shape semantics match the remote path.
func (w *World) dispatchLocal(future *Future, objectID uint64, member string, marshalledArgs []interface{}) {
	demarshalledArgs, err := w.demarshalAll(nil, marshalledArgs)
	if err != nil {
		future.Reject(err)
		return
	}

	object, err := w.registry.lookup(objectID)
	if err != nil {
		future.Reject(err)
		return
	}

	result, err := w.invokeAndAwait(object, member, demarshalledArgs)
	if err != nil {
		future.Reject(err)
		return
	}

	marshalledResult, err := w.marshal(result, 0)
	if err != nil {
		future.Reject(err)
		return
	}

	demarshalledResult, err := w.demarshal(nil, marshalledResult)
	if err != nil {
		future.Reject(err)
		return
	}

	future.Resolve(demarshalledResult)
}

// handleMessage is the demultiplexer installed on every link
func (w *World) handleMessage(link *peerLink, rawMessage interface{}) {
	var base baseMessage
	if err := decodeMessage(rawMessage, &base); err != nil {
		w.logger.WarnWith("Dropping malformed message", "link", link.id, "error", err)
		return
	}

	w.metrics.messageReceived(base.Type)

	switch base.Type {
	case messageTypeCall:
		w.handleCallMessage(link, rawMessage)

	case messageTypeResponse:
		w.handleResponseMessage(link, rawMessage)

	case messageTypeCreateWorld:
		w.handleCreateWorldMessage(link, rawMessage)

	case messageTypeWorldReady:
		w.handleWorldReadyMessage(rawMessage)

	case messageTypeDisposeWorld:
		w.handleDisposeWorldMessage(link, rawMessage)

	default:
		w.logger.WarnWith("Dropping message of unknown type", "type", base.Type)
	}
}

func (w *World) handleCallMessage(link *peerLink, rawMessage interface{}) {
	var message callMessage
	if err := decodeMessage(rawMessage, &message); err != nil {
		w.logger.WarnWith("Dropping malformed call", "error", err)
		return
	}

	w.lock.Lock()

	// calls from a world disposed by this one are dropped, like any other
	// traffic from it
	if w.disposed || w.disposedPeers[message.From] {
		w.lock.Unlock()
		return
	}

	selfID := w.id

	// remember which link the originator is reachable through, so the
	// response finds its way back
	if message.From != selfID && w.routes[message.From] == nil {
		w.routes[message.From] = link
	}

	if message.WorldID != selfID {

		// not ours - relay towards the owning world
		route := w.routes[message.WorldID]
		peerDisposed := w.disposedPeers[message.WorldID]
		w.lock.Unlock()

		if route == nil || peerDisposed {
			w.logger.DebugWith("Dropping call to unreachable world",
				"worldId", message.WorldID,
				"disposed", peerDisposed)
			return
		}

		if err := route.send(message.toMap()); err != nil {
			w.logger.WarnWith("Can't relay call", "worldId", message.WorldID, "error", err)
		}

		return
	}

	w.lock.Unlock()

	w.serviceCall(link, &message)
}

// serviceCall resolves the target object and invokes the member. The
// invocation itself runs in its own goroutine, since a user method may
// block on calls of its own.
func (w *World) serviceCall(link *peerLink, message *callMessage) {
	demarshalledArgs, err := w.demarshalAll(link, message.Args)
	if err != nil {
		w.respond(link, message, nil, err)
		return
	}

	object, err := w.registry.lookup(message.ObjectID)
	if err != nil {
		w.respond(link, message, nil, err)
		return
	}

	go func() {
		result, err := w.invokeAndAwait(object, message.Member, demarshalledArgs)
		w.respond(link, message, result, err)
	}()
}

// invokeAndAwait invokes a member and, if the method deferred its result by
// returning a future, waits for it to settle
func (w *World) invokeAndAwait(object interface{}, member string, args []interface{}) (interface{}, error) {
	result, err := invokeMember(object, member, args)
	if err != nil {
		return nil, err
	}

	if resultFuture, resultIsFuture := result.(*Future); resultIsFuture {
		<-resultFuture.Done()
		settledResult, settledErr, _ := resultFuture.Result()
		return settledResult, settledErr
	}

	return result, nil
}

func (w *World) respond(link *peerLink, message *callMessage, result interface{}, err error) {
	w.lock.Lock()

	// responses to a world that has been disposed in the meantime are
	// abandoned
	if w.disposed || w.disposedPeers[message.From] {
		w.lock.Unlock()
		return
	}

	route := w.routes[message.From]
	w.lock.Unlock()

	if route == nil {
		route = link
	}

	response := responseMessage{
		Seq: message.Seq,
		To:  message.From,
	}

	if err != nil {
		response.Error = &wireError{
			Message: err.Error(),
			Stack:   errors.GetErrorStackString(err, 10),
		}
	} else {
		marshalledResult, marshalErr := w.marshal(result, 0)
		if marshalErr != nil {
			response.Error = &wireError{
				Message: marshalErr.Error(),
				Stack:   errors.GetErrorStackString(marshalErr, 10),
			}
		} else {
			response.Result = marshalledResult
		}
	}

	if sendErr := route.send(response.toMap()); sendErr != nil {
		w.logger.WarnWith("Can't send response", "seq", message.Seq, "error", sendErr)
	}
}

func (w *World) handleResponseMessage(link *peerLink, rawMessage interface{}) {
	var message responseMessage
	if err := decodeMessage(rawMessage, &message); err != nil {
		w.logger.WarnWith("Dropping malformed response", "error", err)
		return
	}

	w.lock.Lock()
	selfID := w.id
	selfDisposed := w.disposed
	w.lock.Unlock()

	if selfDisposed {
		return
	}

	if message.To != selfID {

		// relay towards the originating world, unless it has been disposed
		w.lock.Lock()
		route := w.routes[message.To]
		peerDisposed := w.disposedPeers[message.To]
		w.lock.Unlock()

		if route == nil || peerDisposed {
			w.logger.DebugWith("Abandoning response to unreachable world", "worldId", message.To)
			return
		}

		if err := route.send(message.toMap()); err != nil {
			w.logger.WarnWith("Can't relay response", "worldId", message.To, "error", err)
		}

		return
	}

	if message.Error != nil {
		w.dispatcher.settle(message.Seq, nil, &RemoteError{
			Message: message.Error.Message,
			Stack:   message.Error.Stack,
		})

		return
	}

	demarshalledResult, err := w.demarshal(link, message.Result)
	if err != nil {
		w.dispatcher.settle(message.Seq, nil, err)
		return
	}

	w.dispatcher.settle(message.Seq, demarshalledResult, nil)
}

func (w *World) handleCreateWorldMessage(link *peerLink, rawMessage interface{}) {
	var message createWorldMessage
	if err := decodeMessage(rawMessage, &message); err != nil {
		w.logger.WarnWith("Dropping malformed createWorld", "error", err)
		return
	}

	w.lock.Lock()

	if w.initialized {
		w.lock.Unlock()
		w.logger.WarnWith("Dropping createWorld for an initialized world", "worldId", message.NewWorldID)
		return
	}

	w.id = message.NewWorldID
	w.initialized = true
	w.lock.Unlock()

	bumpWorldID(message.NewWorldID)

	worldArgs, err := w.demarshalAll(link, message.Args)
	if err != nil {
		w.logger.ErrorWith("Can't demarshal world args", "error", err)
		return
	}

	var parentHandle *Handle

	if message.Parent != nil {
		demarshalledParent, err := w.demarshal(link, message.Parent)
		if err != nil {
			w.logger.ErrorWith("Can't demarshal parent handle", "error", err)
			return
		}

		parentHandle, _ = demarshalledParent.(*Handle)
	}

	w.lock.Lock()
	w.worldArgs = worldArgs
	initializer := w.initializer
	w.lock.Unlock()

	w.logger.DebugWith("World initialized", "worldId", message.NewWorldID)

	// the initializer may itself await calls on the parent, so it must not
	// run on the link's receive path. worldReady is sent once it returns.
	go func() {
		if initializer != nil {
			initializer(parentHandle, w)
		}

		readyMessage := worldReadyMessage{NewWorldID: message.NewWorldID}
		if err := link.send(readyMessage.toMap()); err != nil {
			w.logger.ErrorWith("Can't acknowledge world creation", "error", err)
		}
	}()
}

func (w *World) handleWorldReadyMessage(rawMessage interface{}) {
	var message worldReadyMessage
	if err := decodeMessage(rawMessage, &message); err != nil {
		w.logger.WarnWith("Dropping malformed worldReady", "error", err)
		return
	}

	w.lock.Lock()
	readyChan := w.readyWaiters[message.NewWorldID]
	delete(w.readyWaiters, message.NewWorldID)
	w.lock.Unlock()

	if readyChan != nil {
		close(readyChan)
	}
}

func (w *World) handleDisposeWorldMessage(link *peerLink, rawMessage interface{}) {
	var message disposeWorldMessage
	if err := decodeMessage(rawMessage, &message); err != nil {
		w.logger.WarnWith("Dropping malformed disposeWorld", "error", err)
		return
	}

	w.lock.Lock()
	selfID := w.id
	w.lock.Unlock()

	if message.WorldID == selfID {

		// this world itself is being disposed: in-flight calls are
		// abandoned, their futures never settle, and nothing is sent or
		// serviced from here on. The disposed channel releases anything
		// watching those futures.
		w.lock.Lock()
		alreadyDisposed := w.disposed
		w.disposed = true
		w.lock.Unlock()

		if !alreadyDisposed {
			close(w.disposedChan)
		}

		w.dispatcher.abandon()

		w.logger.DebugWith("World disposed by peer", "worldId", selfID)

		return
	}

	w.lock.Lock()
	w.disposedPeers[message.WorldID] = true
	route := w.routes[message.WorldID]
	w.lock.Unlock()

	w.dispatcher.cancelFor(message.WorldID)

	// propagate towards the disposed world if it lies beyond us
	if route != nil && route != link {
		if err := route.send(message.toMap()); err != nil {
			w.logger.WarnWith("Can't relay disposeWorld", "worldId", message.WorldID, "error", err)
		}
	}
}

// canonicalHandle returns the single *Handle this world uses for a
// (world, object) pair, creating it on first sight. Callers must hold the
// world lock.
func (w *World) canonicalHandle(worldID int, objectID uint64, arrivalLink *peerLink) *Handle {
	key := handleKey{worldID: worldID, objectID: objectID}

	if existingHandle, found := w.handles[key]; found {
		return existingHandle
	}

	handle := &Handle{
		world:    w,
		worldID:  worldID,
		objectID: objectID,
	}

	if worldID == w.id {
		if object, found := w.registry.peek(objectID); found {
			handle.object = object
		}
	} else if w.routes[worldID] == nil && arrivalLink != nil {
		w.routes[worldID] = arrivalLink
	}

	w.handles[key] = handle

	return handle
}

// handleFor canonicalizes a demarshalled wire reference
func (w *World) handleFor(worldID int, objectID uint64, arrivalLink *peerLink) (*Handle, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.canonicalHandle(worldID, objectID, arrivalLink), nil
}

func (w *World) marshalAll(values []interface{}) ([]interface{}, error) {
	marshalledValues := make([]interface{}, len(values))

	for valueIndex, value := range values {
		marshalledValue, err := w.marshal(value, 0)
		if err != nil {
			return nil, err
		}

		marshalledValues[valueIndex] = marshalledValue
	}

	return marshalledValues, nil
}

func (w *World) demarshalAll(arrivalLink *peerLink, values []interface{}) ([]interface{}, error) {
	demarshalledValues := make([]interface{}, len(values))

	for valueIndex, value := range values {
		demarshalledValue, err := w.demarshal(arrivalLink, value)
		if err != nil {
			return nil, err
		}

		demarshalledValues[valueIndex] = demarshalledValue
	}

	return demarshalledValues, nil
}
