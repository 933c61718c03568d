//go:build test_unit

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

package stream

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/nestarz/carlo/pkg/rpc"
	"github.com/nestarz/carlo/pkg/rpc/encoder"

	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type StreamTestSuite struct {
	suite.Suite
	logger logger.Logger
	ctx    context.Context
}

func (suite *StreamTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")

	var cancel context.CancelFunc
	suite.ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	suite.T().Cleanup(cancel)
}

// TestFabricOverStream runs a parent and child world over byte streams, the
// way a host talks to a spawned worldlet. This exercises the serializing
// path - numbers arrive as floats (JSON) or sized integers (msgpack) and
// references as plain maps.
func (suite *StreamTestSuite) TestFabricOverStream() {
	for _, codecName := range []string{"json", "msgpack"} {
		codec, err := encoder.NewCodec(codecName)
		suite.Require().NoError(err)

		parentReader, childWriter := io.Pipe()
		childReader, parentWriter := io.Pipe()

		parentFactory := NewFactory(suite.logger, parentReader, parentWriter, codec)
		childFactory := NewFactory(suite.logger, childReader, childWriter, codec)

		rootWorld, err := rpc.NewRoot(suite.logger)
		suite.Require().NoError(err)

		serviceChan := make(chan *rpc.Handle, 1)

		_, err = rootWorld.SetRoot(map[string]interface{}{
			"register": func(service *rpc.Handle) {
				serviceChan <- service
			},
		})
		suite.Require().NoError(err)

		_, err = rpc.InitWorld(suite.logger, childFactory, func(parent *rpc.Handle, childWorld *rpc.World) {
			service, err := childWorld.Handle(map[string]interface{}{
				"sum": func(a float64, b float64) float64 { return a + b },
			})
			if err != nil {
				return
			}

			parent.CallWait(suite.ctx, "register", service) // nolint: errcheck
		})
		suite.Require().NoError(err)

		_, err = rootWorld.CreateWorld(parentFactory, "streamed")
		suite.Require().NoError(err, codecName)

		service := <-serviceChan

		result, err := service.CallWait(suite.ctx, "sum", 1, 3)
		suite.Require().NoError(err, codecName)
		suite.Require().Equal(float64(4), result, codecName)
	}
}

func TestStreamTestSuite(t *testing.T) {
	suite.Run(t, new(StreamTestSuite))
}
