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

package encoder

import (
	"encoding/json"
	"io"
)

type jsonCodec struct{}

// NewJSONCodec returns a codec framing messages as newline separated JSON
func NewJSONCodec() Codec {
	return &jsonCodec{}
}

func (c *jsonCodec) Name() string {
	return "json"
}

func (c *jsonCodec) NewEncoder(writer io.Writer) Encoder {
	return &jsonEncoder{encoder: json.NewEncoder(writer)}
}

func (c *jsonCodec) NewDecoder(reader io.Reader) Decoder {
	return &jsonDecoder{decoder: json.NewDecoder(reader)}
}

type jsonEncoder struct {
	encoder *json.Encoder
}

// Encode writes the JSON encoding of the message, followed by a newline
func (e *jsonEncoder) Encode(message interface{}) error {
	return e.encoder.Encode(message)
}

type jsonDecoder struct {
	decoder *json.Decoder
}

func (d *jsonDecoder) Decode(message *interface{}) error {
	return d.decoder.Decode(message)
}
