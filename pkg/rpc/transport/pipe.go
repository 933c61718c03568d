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

package transport

import (
	"sync"

	"github.com/nuclio/errors"
)

const pipeQueueSize = 1024

// pipeEndpoint buffers inbound messages until its factory installs the
// receive callback, then pumps them in order
type pipeEndpoint struct {
	lock     sync.Mutex
	inbound  chan interface{}
	attached bool
}

func newPipeEndpoint() *pipeEndpoint {
	return &pipeEndpoint{
		inbound: make(chan interface{}, pipeQueueSize),
	}
}

func (pe *pipeEndpoint) attach(receive ReceiveFunc) error {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	if pe.attached {
		return errors.New("Pipe endpoint is already attached")
	}

	pe.attached = true

	go func() {
		for message := range pe.inbound {
			receive(message)
		}
	}()

	return nil
}

// Pipe returns the two factories of an in-process, asynchronous, ordered
// transport pair. Messages sent before the far side attaches are queued.
func Pipe() (Factory, Factory) {
	left := newPipeEndpoint()
	right := newPipeEndpoint()

	makeFactory := func(self *pipeEndpoint, far *pipeEndpoint) Factory {
		return func(receive ReceiveFunc) (SendFunc, error) {
			if err := self.attach(receive); err != nil {
				return nil, err
			}

			return func(message interface{}) error {
				far.inbound <- message
				return nil
			}, nil
		}
	}

	return makeFactory(left, right), makeFactory(right, left)
}
