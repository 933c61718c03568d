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

package rpc

import (
	"testing"

	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type DispatcherTestSuite struct {
	suite.Suite
	logger     logger.Logger
	dispatcher *dispatcher
}

func (suite *DispatcherTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.dispatcher = newDispatcher(suite.logger)
}

func (suite *DispatcherTestSuite) TestSequenceNumbersAreMonotonic() {
	firstCall, _ := suite.dispatcher.register(1)
	secondCall, _ := suite.dispatcher.register(2)

	suite.Require().Less(firstCall.seq, secondCall.seq)
}

func (suite *DispatcherTestSuite) TestSettleResolves() {
	call, future := suite.dispatcher.register(1)

	suite.dispatcher.settle(call.seq, "result", nil)

	result, err, settled := future.Result()
	suite.Require().True(settled)
	suite.Require().NoError(err)
	suite.Require().Equal("result", result)
}

func (suite *DispatcherTestSuite) TestLateResponseDroppedSilently() {
	call, future := suite.dispatcher.register(1)

	suite.dispatcher.settle(call.seq, "result", nil)

	// a second response for the same seq must not repanic or resettle
	suite.dispatcher.settle(call.seq, "other", nil)

	result, _, _ := future.Result()
	suite.Require().Equal("result", result)

	// and a response for a seq never issued is dropped too
	suite.dispatcher.settle(9999, "ghost", nil)
}

func (suite *DispatcherTestSuite) TestCancelForRejectsOnlyThatPeer() {
	peerCall, peerFuture := suite.dispatcher.register(7)
	otherCall, otherFuture := suite.dispatcher.register(8)

	suite.dispatcher.cancelFor(7)

	_, err, settled := peerFuture.Result()
	suite.Require().True(settled)
	suite.Require().Error(err)
	suite.Require().Equal(KindPeerDisposed, GetKind(err))

	_, _, settled = otherFuture.Result()
	suite.Require().False(settled)

	// the cancelled call's seq is gone; the other still settles normally
	suite.dispatcher.settle(peerCall.seq, "late", nil)
	suite.dispatcher.settle(otherCall.seq, "result", nil)

	result, err, _ := otherFuture.Result()
	suite.Require().NoError(err)
	suite.Require().Equal("result", result)
}

func (suite *DispatcherTestSuite) TestAbandonLeavesFuturesUnsettled() {
	_, future := suite.dispatcher.register(1)

	suite.dispatcher.abandon()

	_, _, settled := future.Result()
	suite.Require().False(settled)
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}
