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

	"github.com/nuclio/logger"
)

type pendingCall struct {
	seq         uint64
	future      *Future
	targetWorld int
}

// dispatcher correlates outbound calls with inbound responses by sequence
// number, and services targeted cancellation when a peer world goes away
type dispatcher struct {
	logger  logger.Logger
	lock    sync.Mutex
	nextSeq uint64
	pending map[uint64]*pendingCall
	byPeer  map[int]map[uint64]struct{}
}

func newDispatcher(parentLogger logger.Logger) *dispatcher {
	return &dispatcher{
		logger:  parentLogger.GetChild("dispatcher"),
		pending: map[uint64]*pendingCall{},
		byPeer:  map[int]map[uint64]struct{}{},
	}
}

// register allocates a sequence number and records the pending call
func (d *dispatcher) register(targetWorld int) (*pendingCall, *Future) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.nextSeq++

	call := &pendingCall{
		seq:         d.nextSeq,
		future:      NewFuture(),
		targetWorld: targetWorld,
	}

	d.pending[call.seq] = call

	peerCalls, found := d.byPeer[targetWorld]
	if !found {
		peerCalls = map[uint64]struct{}{}
		d.byPeer[targetWorld] = peerCalls
	}
	peerCalls[call.seq] = struct{}{}

	return call, call.future
}

// settle resolves or rejects the pending call matching a response. Late
// responses - after disposal already cleared the entry - are dropped
// silently.
func (d *dispatcher) settle(seq uint64, result interface{}, err error) {
	call := d.take(seq)
	if call == nil {
		d.logger.DebugWith("Dropping late response", "seq", seq)
		return
	}

	if err != nil {
		call.future.Reject(err)
		return
	}

	call.future.Resolve(result)
}

// cancelFor rejects every pending call targeting the given peer world
func (d *dispatcher) cancelFor(peerWorldID int) {
	d.lock.Lock()

	var cancelledCalls []*pendingCall
	for seq := range d.byPeer[peerWorldID] {
		if call, found := d.pending[seq]; found {
			cancelledCalls = append(cancelledCalls, call)
			delete(d.pending, seq)
		}
	}
	delete(d.byPeer, peerWorldID)

	d.lock.Unlock()

	for _, call := range cancelledCalls {
		call.future.Reject(errPeerDisposed())
	}
}

// abandon drops every pending call without settling it, leaving the futures
// forever unsettled. Used when this world itself is disposed.
func (d *dispatcher) abandon() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.pending = map[uint64]*pendingCall{}
	d.byPeer = map[int]map[uint64]struct{}{}
}

func (d *dispatcher) take(seq uint64) *pendingCall {
	d.lock.Lock()
	defer d.lock.Unlock()

	call, found := d.pending[seq]
	if !found {
		return nil
	}

	delete(d.pending, seq)

	if peerCalls, peerFound := d.byPeer[call.targetWorld]; peerFound {
		delete(peerCalls, seq)
		if len(peerCalls) == 0 {
			delete(d.byPeer, call.targetWorld)
		}
	}

	return call
}
