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

package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nestarz/carlo/pkg/rpc"
	"github.com/nestarz/carlo/pkg/rpc/transport"

	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type WSTestSuite struct {
	suite.Suite
	logger logger.Logger
	ctx    context.Context
}

func (suite *WSTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")

	var cancel context.CancelFunc
	suite.ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	suite.T().Cleanup(cancel)
}

func (suite *WSTestSuite) TestFabricOverWebsocket() {
	acceptedChan := make(chan transport.Factory, 1)

	server := NewServer(suite.logger, func(transportFactory transport.Factory) {
		acceptedChan <- transportFactory
	})

	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	// the child dials in, the parent adopts the accepted connection
	childFactory, err := Dial(suite.logger, "ws"+strings.TrimPrefix(httpServer.URL, "http"))
	suite.Require().NoError(err)

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
			"greet": func(name string) string { return "hello " + name },
		})
		if err != nil {
			return
		}

		parent.CallWait(suite.ctx, "register", service) // nolint: errcheck
	})
	suite.Require().NoError(err)

	parentFactory := <-acceptedChan

	_, err = rootWorld.CreateWorld(parentFactory, "ws")
	suite.Require().NoError(err)

	service := <-serviceChan

	greeting, err := service.CallWait(suite.ctx, "greet", "fabric")
	suite.Require().NoError(err)
	suite.Require().Equal("hello fabric", greeting)
}

func TestWSTestSuite(t *testing.T) {
	suite.Run(t, new(WSTestSuite))
}
