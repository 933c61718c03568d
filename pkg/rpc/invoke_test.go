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

	"github.com/stretchr/testify/suite"
)

type invokeTarget struct {
	Label string
}

func (it *invokeTarget) Sum(a int, b int) int {
	return a + b
}

func (it *invokeTarget) Fail() error {
	return &RemoteError{Message: "it failed"}
}

type InvokeTestSuite struct {
	suite.Suite
}

func (suite *InvokeTestSuite) TestMappingMember() {
	target := map[string]interface{}{
		"sum": func(a int, b int) int { return a + b },
	}

	result, err := invokeMember(target, "sum", []interface{}{1, 3})
	suite.Require().NoError(err)
	suite.Require().Equal(4, result)
}

func (suite *InvokeTestSuite) TestMissingMember() {
	_, err := invokeMember(map[string]interface{}{}, "nope", nil)
	suite.Require().Error(err)
	suite.Require().Equal("There is no member nope", err.Error())
	suite.Require().Equal(KindNoMember, GetKind(err))
}

func (suite *InvokeTestSuite) TestPropertyRead() {
	target := map[string]interface{}{"answer": 42}

	result, err := invokeMember(target, "answer", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(42, result)
}

func (suite *InvokeTestSuite) TestPropertyInvokedWithArguments() {
	target := map[string]interface{}{"answer": 42}

	_, err := invokeMember(target, "answer", []interface{}{1})
	suite.Require().Error(err)
	suite.Require().Equal("answer is not a function", err.Error())
	suite.Require().Equal(KindNotCallable, GetKind(err))
}

func (suite *InvokeTestSuite) TestStructMethodByWireName() {
	result, err := invokeMember(&invokeTarget{}, "sum", []interface{}{1, 3})
	suite.Require().NoError(err)
	suite.Require().Equal(4, result)
}

func (suite *InvokeTestSuite) TestStructFieldAsProperty() {
	result, err := invokeMember(&invokeTarget{Label: "it"}, "label", nil)
	suite.Require().NoError(err)
	suite.Require().Equal("it", result)
}

func (suite *InvokeTestSuite) TestErrorReturnSurfaces() {
	_, err := invokeMember(&invokeTarget{}, "fail", nil)
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "it failed")
}

func (suite *InvokeTestSuite) TestFunctionTarget() {
	double := func(value int) int { return value * 2 }

	result, err := invokeMember(double, "", []interface{}{21})
	suite.Require().NoError(err)
	suite.Require().Equal(42, result)
}

func (suite *InvokeTestSuite) TestPanicsBecomeErrors() {
	target := map[string]interface{}{
		"explode": func() { panic("kaboom") },
	}

	_, err := invokeMember(target, "explode", nil)
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "kaboom")
}

func (suite *InvokeTestSuite) TestLooseNumericArguments() {

	// serializing transports deliver numbers as floats
	target := map[string]interface{}{
		"sum": func(a int, b int) int { return a + b },
	}

	result, err := invokeMember(target, "sum", []interface{}{float64(1), float64(3)})
	suite.Require().NoError(err)
	suite.Require().Equal(4, result)
}

func (suite *InvokeTestSuite) TestMissingArgumentsBecomeZeroValues() {
	target := map[string]interface{}{
		"describe": func(name string, count int) string { return name },
	}

	result, err := invokeMember(target, "describe", []interface{}{"only-name"})
	suite.Require().NoError(err)
	suite.Require().Equal("only-name", result)
}

func TestInvokeTestSuite(t *testing.T) {
	suite.Run(t, new(InvokeTestSuite))
}
