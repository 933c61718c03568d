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
	"bytes"
	"encoding/binary"
	"io"

	"github.com/nuclio/errors"
	"github.com/vmihailenco/msgpack/v4"
)

type msgpackCodec struct{}

// NewMsgpackCodec returns a codec framing messages as length prefixed
// msgpack
func NewMsgpackCodec() Codec {
	return &msgpackCodec{}
}

func (c *msgpackCodec) Name() string {
	return "msgpack"
}

func (c *msgpackCodec) NewEncoder(writer io.Writer) Encoder {
	msgpackEncoder := &msgpackFrameEncoder{writer: writer}
	msgpackEncoder.encoder = msgpack.NewEncoder(&msgpackEncoder.buf)

	return msgpackEncoder
}

func (c *msgpackCodec) NewDecoder(reader io.Reader) Decoder {
	return &msgpackFrameDecoder{reader: reader}
}

type msgpackFrameEncoder struct {
	writer  io.Writer
	buf     bytes.Buffer
	encoder *msgpack.Encoder
}

// Encode writes the message as a 4 byte big endian length followed by the
// msgpack payload
func (e *msgpackFrameEncoder) Encode(message interface{}) error {
	e.buf.Reset()

	if err := e.encoder.Encode(message); err != nil {
		return errors.Wrap(err, "Failed to encode message")
	}

	if err := binary.Write(e.writer, binary.BigEndian, int32(e.buf.Len())); err != nil {
		return errors.Wrap(err, "Failed to write message size")
	}

	if _, err := e.writer.Write(e.buf.Bytes()); err != nil {
		return errors.Wrap(err, "Failed to write message")
	}

	return nil
}

type msgpackFrameDecoder struct {
	reader io.Reader
}

func (d *msgpackFrameDecoder) Decode(message *interface{}) error {
	var frameLength int32
	if err := binary.Read(d.reader, binary.BigEndian, &frameLength); err != nil {
		return err
	}

	frame := make([]byte, frameLength)
	if _, err := io.ReadFull(d.reader, frame); err != nil {
		return errors.Wrap(err, "Failed to read message")
	}

	if err := msgpack.Unmarshal(frame, message); err != nil {
		return errors.Wrap(err, "Failed to decode message")
	}

	return nil
}
