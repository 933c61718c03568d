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

// Package transport defines the contract between the RPC fabric and the
// channels that carry its messages, plus an in-process implementation.
//
// A transport is anything that can relay structured values (maps, slices,
// scalars) losslessly, in order, full duplex. The fabric hands a factory a
// receive callback and gets back a send function; everything else is the
// transport's business.
package transport

// ReceiveFunc is installed by the fabric and invoked by the transport for
// every inbound message, in arrival order
type ReceiveFunc func(message interface{})

// SendFunc transmits one message to the peer
type SendFunc func(message interface{}) error

// Factory wires up one side of a transport: it installs the fabric's
// receive callback and returns the send function for the opposite
// direction
type Factory func(receive ReceiveFunc) (SendFunc, error)
