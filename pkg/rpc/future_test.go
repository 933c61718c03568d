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
	"context"
	"testing"
	"time"

	"github.com/nuclio/errors"
	"github.com/stretchr/testify/suite"
)

type FutureTestSuite struct {
	suite.Suite
}

func (suite *FutureTestSuite) TestResolve() {
	future := NewFuture()

	go future.Resolve("value")

	result, err := future.Await(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal("value", result)
}

func (suite *FutureTestSuite) TestFirstSettlementWins() {
	future := NewFuture()
	future.Resolve("first")
	future.Reject(errors.New("too late"))

	result, err, settled := future.Result()
	suite.Require().True(settled)
	suite.Require().NoError(err)
	suite.Require().Equal("first", result)
}

func (suite *FutureTestSuite) TestAwaitHonorsContext() {
	future := NewFuture()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := future.Await(ctx)
	suite.Require().Error(err)
	suite.Require().Equal(context.DeadlineExceeded, err)
}

func (suite *FutureTestSuite) TestUnsettledResult() {
	future := NewFuture()

	_, _, settled := future.Result()
	suite.Require().False(settled)
}

func TestFutureTestSuite(t *testing.T) {
	suite.Run(t, new(FutureTestSuite))
}
