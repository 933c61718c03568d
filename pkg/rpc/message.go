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
	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
)

// message types as they appear on the wire
const (
	messageTypeCall         = "call"
	messageTypeResponse     = "response"
	messageTypeCreateWorld  = "createWorld"
	messageTypeWorldReady   = "worldReady"
	messageTypeDisposeWorld = "disposeWorld"
)

// wire messages travel as plain string-keyed maps so that any transport able
// to relay structured values can carry them. Inbound maps are decoded into
// the typed messages below with mapstructure.

type baseMessage struct {
	Type string `mapstructure:"type"`
}

type callMessage struct {
	Type     string        `mapstructure:"type"`
	Seq      uint64        `mapstructure:"seq"`
	From     int           `mapstructure:"from"`
	WorldID  int           `mapstructure:"worldId"`
	ObjectID uint64        `mapstructure:"objectId"`
	Member   string        `mapstructure:"member"`
	Args     []interface{} `mapstructure:"args"`
}

type wireError struct {
	Message string `mapstructure:"message"`
	Stack   string `mapstructure:"stack"`
}

type responseMessage struct {
	Type   string      `mapstructure:"type"`
	Seq    uint64      `mapstructure:"seq"`
	To     int         `mapstructure:"to"`
	Result interface{} `mapstructure:"result"`
	Error  *wireError  `mapstructure:"error"`
}

type createWorldMessage struct {
	Type       string        `mapstructure:"type"`
	NewWorldID int           `mapstructure:"newWorldId"`
	Parent     interface{}   `mapstructure:"parent"`
	Args       []interface{} `mapstructure:"args"`
}

type worldReadyMessage struct {
	Type       string `mapstructure:"type"`
	NewWorldID int    `mapstructure:"newWorldId"`
}

type disposeWorldMessage struct {
	Type    string `mapstructure:"type"`
	WorldID int    `mapstructure:"worldId"`
}

func (m *callMessage) toMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     messageTypeCall,
		"seq":      m.Seq,
		"from":     m.From,
		"worldId":  m.WorldID,
		"objectId": m.ObjectID,
		"member":   m.Member,
		"args":     m.Args,
	}
}

func (m *responseMessage) toMap() map[string]interface{} {
	encodedResponse := map[string]interface{}{
		"type": messageTypeResponse,
		"seq":  m.Seq,
		"to":   m.To,
	}

	if m.Error != nil {
		encodedResponse["error"] = map[string]interface{}{
			"message": m.Error.Message,
			"stack":   m.Error.Stack,
		}
	} else {
		encodedResponse["result"] = m.Result
	}

	return encodedResponse
}

func (m *createWorldMessage) toMap() map[string]interface{} {
	return map[string]interface{}{
		"type":       messageTypeCreateWorld,
		"newWorldId": m.NewWorldID,
		"parent":     m.Parent,
		"args":       m.Args,
	}
}

func (m *worldReadyMessage) toMap() map[string]interface{} {
	return map[string]interface{}{
		"type":       messageTypeWorldReady,
		"newWorldId": m.NewWorldID,
	}
}

func (m *disposeWorldMessage) toMap() map[string]interface{} {
	return map[string]interface{}{
		"type":    messageTypeDisposeWorld,
		"worldId": m.WorldID,
	}
}

// decodeMessage decodes an inbound structured value into the given typed
// message. Transports that serialize deliver numbers in their own types
// (floats from JSON, sized integers from msgpack), so decoding is weakly
// typed.
func decodeMessage(rawMessage interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "Can't create message decoder")
	}

	if err := decoder.Decode(rawMessage); err != nil {
		return errors.Wrap(err, "Can't decode message")
	}

	return nil
}
