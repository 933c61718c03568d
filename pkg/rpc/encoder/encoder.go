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

// Package encoder provides the frame codecs used by byte stream transports:
// a message goes in as a structured value and comes out as one, the bytes in
// between are the codec's concern.
package encoder

import (
	"io"

	"github.com/nuclio/errors"
)

// Encoder writes structured values to a stream, one frame per message
type Encoder interface {
	Encode(message interface{}) error
}

// Decoder reads structured values off a stream, one frame per message
type Decoder interface {
	Decode(message *interface{}) error
}

// Codec creates the encoder/decoder pair of a stream
type Codec interface {
	Name() string
	NewEncoder(writer io.Writer) Encoder
	NewDecoder(reader io.Reader) Decoder
}

// NewCodec returns a codec by name
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, errors.Errorf("Unknown codec %q", name)
	}
}
