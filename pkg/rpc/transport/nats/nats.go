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

// Package nats carries fabric messages over a NATS subject pair, one
// subject per direction. NATS preserves publish order per subject, which is
// all the fabric asks of a link.
package nats

import (
	"encoding/json"

	"github.com/nestarz/carlo/pkg/rpc/transport"

	natsio "github.com/nats-io/nats.go"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const messageChanSize = 64

// NewFactory returns a transport factory publishing to sendSubject and
// subscribing to receiveSubject on an existing connection. The two sides of
// a link use mirrored subject pairs.
func NewFactory(parentLogger logger.Logger,
	connection *natsio.Conn,
	sendSubject string,
	receiveSubject string) transport.Factory {

	loggerInstance := parentLogger.GetChild("nats")

	return func(receive transport.ReceiveFunc) (transport.SendFunc, error) {
		messageChan := make(chan *natsio.Msg, messageChanSize)

		if _, err := connection.ChanSubscribe(receiveSubject, messageChan); err != nil {
			return nil, errors.Wrapf(err, "Can't subscribe to subject %q", receiveSubject)
		}

		loggerInstance.DebugWith("Subscribed",
			"sendSubject", sendSubject,
			"receiveSubject", receiveSubject)

		go func() {
			for natsMessage := range messageChan {
				var message interface{}

				if err := json.Unmarshal(natsMessage.Data, &message); err != nil {
					loggerInstance.WarnWith("Dropping undecodable message",
						"subject", receiveSubject,
						"error", err)
					continue
				}

				receive(message)
			}
		}()

		return func(message interface{}) error {
			encodedMessage, err := json.Marshal(message)
			if err != nil {
				return errors.Wrap(err, "Can't encode message")
			}

			if err := connection.Publish(sendSubject, encodedMessage); err != nil {
				return errors.Wrapf(err, "Can't publish to subject %q", sendSubject)
			}

			return nil
		}, nil
	}
}
