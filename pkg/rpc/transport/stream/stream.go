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

// Package stream carries fabric messages over any byte stream pair - child
// process stdio, sockets, pipes - framed by a pluggable codec.
package stream

import (
	"bufio"
	"io"
	"sync"

	"github.com/nestarz/carlo/pkg/rpc/encoder"
	"github.com/nestarz/carlo/pkg/rpc/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// NewFactory returns a transport factory over a reader/writer pair. Frames
// are read on a dedicated goroutine and handed to the fabric in order; the
// factory's send side serializes writers behind a lock.
func NewFactory(parentLogger logger.Logger,
	reader io.Reader,
	writer io.Writer,
	codec encoder.Codec) transport.Factory {

	loggerInstance := parentLogger.GetChild("stream")

	return func(receive transport.ReceiveFunc) (transport.SendFunc, error) {
		frameEncoder := codec.NewEncoder(writer)
		frameDecoder := codec.NewDecoder(bufio.NewReader(reader))

		var writeLock sync.Mutex

		go func() {
			for {
				var message interface{}

				if err := frameDecoder.Decode(&message); err != nil {
					if errors.RootCause(err) != io.EOF {
						loggerInstance.WarnWith("Stream closed", "error", err)
					}

					return
				}

				receive(message)
			}
		}()

		return func(message interface{}) error {
			writeLock.Lock()
			defer writeLock.Unlock()

			if err := frameEncoder.Encode(message); err != nil {
				return errors.Wrap(err, "Can't write frame")
			}

			return nil
		}, nil
	}
}
