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

package rpcconfig

import (
	"os"
	"path/filepath"
	"testing"

	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (suite *ConfigTestSuite) TestDefaults() {
	configuration, err := NewConfigurationFromFile("")
	suite.Require().NoError(err)

	suite.Require().Equal("stdio", configuration.Transport.Kind)
	suite.Require().Equal("json", configuration.Transport.Codec)
	suite.Require().Equal("info", configuration.Logger.Level)
	suite.Require().Equal(nucliozap.InfoLevel, configuration.ResolveLogLevel())
}

func (suite *ConfigTestSuite) TestReadFromFile() {
	configurationBody := `
transport:
  kind: ws
  address: 127.0.0.1:9555
logger:
  level: debug
metrics:
  enabled: true
  instanceName: test-fabric
worldlet:
  path: /usr/local/bin/worldlet
  args: ["-config", "child.yaml"]
`

	configurationPath := filepath.Join(suite.T().TempDir(), "fabric.yaml")
	suite.Require().NoError(os.WriteFile(configurationPath, []byte(configurationBody), 0600))

	configuration, err := NewConfigurationFromFile(configurationPath)
	suite.Require().NoError(err)

	suite.Require().Equal("ws", configuration.Transport.Kind)
	suite.Require().Equal("127.0.0.1:9555", configuration.Transport.Address)
	suite.Require().Equal(nucliozap.DebugLevel, configuration.ResolveLogLevel())
	suite.Require().True(configuration.Metrics.Enabled)
	suite.Require().Equal("test-fabric", configuration.Metrics.InstanceName)
	suite.Require().Equal("/usr/local/bin/worldlet", configuration.Worldlet.Path)
	suite.Require().Equal([]string{"-config", "child.yaml"}, configuration.Worldlet.Args)

	// unset sections keep their defaults
	suite.Require().Equal("json", configuration.Transport.Codec)
}

func (suite *ConfigTestSuite) TestMissingFileFails() {
	_, err := NewConfigurationFromFile("/does/not/exist.yaml")
	suite.Require().Error(err)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
