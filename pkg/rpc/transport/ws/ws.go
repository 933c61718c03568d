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

// Package ws carries fabric messages over websocket connections as JSON
// text frames.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/nestarz/carlo/pkg/rpc/transport"

	"github.com/gorilla/websocket"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const writeTimeout = 10 * time.Second

// NewConnectionFactory wraps an established websocket connection as a
// transport. Reads run on a dedicated goroutine; writes are serialized,
// since the underlying connection allows a single writer.
func NewConnectionFactory(parentLogger logger.Logger, connection *websocket.Conn) transport.Factory {
	loggerInstance := parentLogger.GetChild("ws")

	return func(receive transport.ReceiveFunc) (transport.SendFunc, error) {
		var writeLock sync.Mutex

		go func() {
			for {
				var message interface{}

				if err := connection.ReadJSON(&message); err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						loggerInstance.DebugWith("Connection closed", "error", err)
					}

					return
				}

				receive(message)
			}
		}()

		return func(message interface{}) error {
			writeLock.Lock()
			defer writeLock.Unlock()

			connection.SetWriteDeadline(time.Now().Add(writeTimeout)) // nolint: errcheck

			if err := connection.WriteJSON(message); err != nil {
				return errors.Wrap(err, "Can't write frame")
			}

			return nil
		}, nil
	}
}

// Dial connects to a fabric websocket endpoint and returns its transport
// factory
func Dial(parentLogger logger.Logger, url string) (transport.Factory, error) {
	connection, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't dial %q", url)
	}

	return NewConnectionFactory(parentLogger, connection), nil
}

// Server accepts fabric connections over websocket upgrades and hands each
// one to the connection handler as a transport factory
type Server struct {
	logger   logger.Logger
	upgrader websocket.Upgrader
	onAccept func(transport.Factory)
}

// NewServer returns a websocket server handing accepted connections to
// onAccept
func NewServer(parentLogger logger.Logger, onAccept func(transport.Factory)) *Server {
	return &Server{
		logger: parentLogger.GetChild("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onAccept: onAccept,
	}
}

// Handler returns the http handler performing the upgrade
func (s *Server) Handler() http.HandlerFunc {
	return func(responseWriter http.ResponseWriter, request *http.Request) {
		connection, err := s.upgrader.Upgrade(responseWriter, request, nil)
		if err != nil {
			s.logger.WarnWith("Can't upgrade connection", "error", err)
			return
		}

		s.logger.DebugWith("Accepted connection", "remoteAddr", connection.RemoteAddr().String())

		s.onAccept(NewConnectionFactory(s.logger, connection))
	}
}
