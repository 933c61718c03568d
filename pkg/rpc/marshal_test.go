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

type MarshalTestSuite struct {
	suite.Suite
	logger logger.Logger
	world  *World
}

func (suite *MarshalTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")

	var err error
	suite.world, err = NewRoot(suite.logger)
	suite.Require().NoError(err)
}

func (suite *MarshalTestSuite) TestScalarsPassThrough() {
	for _, value := range []interface{}{nil, true, 3, 3.5, "three"} {
		marshalled, err := suite.world.marshal(value, 0)
		suite.Require().NoError(err)
		suite.Require().Equal(value, marshalled)
	}
}

func (suite *MarshalTestSuite) TestCompositeFidelity() {
	graph := map[string]interface{}{
		"numbers": []interface{}{1, 2, 3},
		"nested": map[string]interface{}{
			"flag": true,
		},
	}

	marshalled, err := suite.world.marshal(graph, 0)
	suite.Require().NoError(err)

	demarshalled, err := suite.world.demarshal(nil, marshalled)
	suite.Require().NoError(err)
	suite.Require().Equal(graph, demarshalled)
}

func (suite *MarshalTestSuite) TestHandleBecomesReference() {
	handle, err := suite.world.Handle(map[string]interface{}{})
	suite.Require().NoError(err)

	marshalled, err := suite.world.marshal(map[string]interface{}{"h": handle}, 0)
	suite.Require().NoError(err)

	reference := marshalled.(map[string]interface{})["h"].(map[string]interface{})[wireHandleKey]
	suite.Require().Equal(map[string]interface{}{
		"worldId":  handle.WorldID(),
		"objectId": handle.ObjectID(),
	}, reference)

	// demarshalling canonicalizes back to the very same handle
	demarshalled, err := suite.world.demarshal(nil, marshalled)
	suite.Require().NoError(err)
	suite.Require().Same(handle, demarshalled.(map[string]interface{})["h"])
}

func (suite *MarshalTestSuite) TestStructsWalkAsMappings() {
	type point struct {
		X      int
		Y      int
		hidden string
	}

	marshalled, err := suite.world.marshal(&point{X: 1, Y: 2, hidden: "no"}, 0)
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]interface{}{"X": 1, "Y": 2}, marshalled)
}

func (suite *MarshalTestSuite) TestBareFunctionsRejected() {
	_, err := suite.world.marshal(map[string]interface{}{"fn": func() {}}, 0)
	suite.Require().Error(err)
	suite.Require().Equal(KindInvalidInput, GetKind(err))
}

func (suite *MarshalTestSuite) TestDepthGuard() {
	deep := map[string]interface{}{}
	leaf := deep
	for depth := 0; depth < 25; depth++ {
		nextLeaf := map[string]interface{}{}
		leaf["down"] = nextLeaf
		leaf = nextLeaf
	}

	_, err := suite.world.marshal(deep, 0)
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "Object reference chain is too long")
	suite.Require().Equal(KindRefChainTooLong, GetKind(err))
}

func (suite *MarshalTestSuite) TestCycleHitsDepthGuard() {
	cyclic := map[string]interface{}{}
	cyclic["self"] = cyclic

	_, err := suite.world.marshal(cyclic, 0)
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "Object reference chain is too long")
}

func (suite *MarshalTestSuite) TestDepthWithinBoundsSurvives() {
	deep := map[string]interface{}{}
	leaf := deep
	for depth := 0; depth < 18; depth++ {
		nextLeaf := map[string]interface{}{}
		leaf["down"] = nextLeaf
		leaf = nextLeaf
	}

	_, err := suite.world.marshal(deep, 0)
	suite.Require().NoError(err)
}

func TestMarshalTestSuite(t *testing.T) {
	suite.Run(t, new(MarshalTestSuite))
}
