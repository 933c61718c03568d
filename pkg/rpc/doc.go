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

// Package rpc is a capability oriented RPC fabric: isolated worlds invoke
// members on each other's objects through handle proxies, over any full
// duplex, ordered, message oriented transport.
//
// A world wraps local objects into handles, which travel to peers as
// {worldId, objectId} references and come back as the same canonical proxy.
// Member invocation is dynamic - any string name may be called - and a call
// settles its future with the remote result, the remote error, or a fabric
// error when the handle has been disposed or the peer is disposed while the
// call is in flight. Calls issued into an already disposed world never settle.
package rpc
