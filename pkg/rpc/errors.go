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
	"fmt"

	"github.com/nuclio/errors"
)

// ErrorKind classifies the errors the fabric itself produces. User errors
// forwarded from a remote method are surfaced as *RemoteError instead.
type ErrorKind int

const (
	KindNone ErrorKind = iota

	// KindNoMember - the remote object has no member of the requested name
	KindNoMember

	// KindPrivateMember - the member name begins with an underscore
	KindPrivateMember

	// KindNotCallable - the member is a plain value and was invoked with arguments
	KindNotCallable

	// KindRefChainTooLong - the marshaller's depth cap was exceeded
	KindRefChainTooLong

	// KindDisposed - the handle or its backing registry entry has been disposed
	KindDisposed

	// KindPeerDisposed - the peer world was disposed while the call was in flight
	KindPeerDisposed

	// KindInvalidInput - the caller passed something the fabric can not service
	KindInvalidInput

	// KindNotFound - the object id was never issued by the target registry
	KindNotFound

	// KindRemoteThrew - the remote method threw; message and stack are forwarded
	KindRemoteThrew
)

// user visible messages that are part of the observable contract - changing
// them breaks consumers asserting on them. "diposed" is spelled the way the
// original source spells it.
const (
	messagePrivateMember   = "Private members are not exposed over RPC"
	messageRefChainTooLong = "Object reference chain is too long"
	messageDisposed        = "Object has been diposed"
	messagePeerDisposed    = "World has been disposed"
	messageHandleToHandle  = "Can not return handle to handle"
)

// Error is a fabric error carrying a stable, user visible message
type Error struct {
	kind    ErrorKind
	message string
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the user visible message
func (e *Error) Error() string {
	return e.message
}

// Kind returns the error's classification
func (e *Error) Kind() ErrorKind {
	return e.kind
}

// RemoteError wraps an error thrown by a remote method. The message and,
// when available, the stack trace are forwarded verbatim from the peer.
type RemoteError struct {
	Message string
	Stack   string
}

// Error returns the remote error's original message
func (re *RemoteError) Error() string {
	return re.Message
}

// GetKind returns the fabric classification of err, or KindNone for errors
// that did not originate in the fabric
func GetKind(err error) ErrorKind {
	switch typedError := errors.RootCause(err).(type) {
	case *Error:
		return typedError.kind
	case *RemoteError:
		return KindRemoteThrew
	default:
		return KindNone
	}
}

func errNoMember(member string) *Error {
	return newError(KindNoMember, "There is no member %s", member)
}

func errPrivateMember() *Error {
	return newError(KindPrivateMember, messagePrivateMember)
}

func errNotCallable(member string) *Error {
	return newError(KindNotCallable, "%s is not a function", member)
}

func errRefChainTooLong() *Error {
	return newError(KindRefChainTooLong, messageRefChainTooLong)
}

func errDisposed() *Error {
	return newError(KindDisposed, messageDisposed)
}

func errPeerDisposed() *Error {
	return newError(KindPeerDisposed, messagePeerDisposed)
}

func errInvalidInput(format string, args ...interface{}) *Error {
	return newError(KindInvalidInput, format, args...)
}

func errNotFound(objectID uint64) *Error {
	return newError(KindNotFound, "There is no object %d", objectID)
}
