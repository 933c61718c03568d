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

// Package rpcconfig holds the configuration of the fabric binaries.
package rpcconfig

import (
	"github.com/nuclio/errors"
	nucliozap "github.com/nuclio/zap"
	"github.com/spf13/viper"
)

// Configuration configures a fabric binary
type Configuration struct {
	Transport TransportConfiguration `mapstructure:"transport"`
	Metrics   MetricsConfiguration   `mapstructure:"metrics"`
	Logger    LoggerConfiguration    `mapstructure:"logger"`
	Worldlet  WorldletConfiguration  `mapstructure:"worldlet"`
}

// TransportConfiguration selects how fabric messages travel
type TransportConfiguration struct {

	// Kind is one of "stdio", "ws", "nats"
	Kind string `mapstructure:"kind"`

	// Codec is "json" or "msgpack"; stream transports only
	Codec string `mapstructure:"codec"`

	// Address is the listen/dial address for networked transports
	Address string `mapstructure:"address"`

	// Subject is the NATS subject prefix; the two directions use
	// <subject>.up and <subject>.down
	Subject string `mapstructure:"subject"`
}

// MetricsConfiguration configures the optional prometheus endpoint
type MetricsConfiguration struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listenAddress"`
	InstanceName  string `mapstructure:"instanceName"`
}

// LoggerConfiguration configures log verbosity
type LoggerConfiguration struct {
	Level string `mapstructure:"level"`
}

// WorldletConfiguration tells a host how to spawn its child worlds
type WorldletConfiguration struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
}

// NewConfiguration returns a configuration with defaults applied
func NewConfiguration() *Configuration {
	return &Configuration{
		Transport: TransportConfiguration{
			Kind:  "stdio",
			Codec: "json",
		},
		Metrics: MetricsConfiguration{
			ListenAddress: ":8090",
			InstanceName:  "fabric",
		},
		Logger: LoggerConfiguration{
			Level: "info",
		},
	}
}

// NewConfigurationFromFile reads a YAML/JSON configuration file. A missing
// path yields the defaults.
func NewConfigurationFromFile(configurationPath string) (*Configuration, error) {
	configuration := NewConfiguration()

	if configurationPath == "" {
		return configuration, nil
	}

	configurationReader := viper.New()
	configurationReader.SetConfigFile(configurationPath)

	if err := configurationReader.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "Can't read configuration at %q", configurationPath)
	}

	if err := configurationReader.Unmarshal(configuration); err != nil {
		return nil, errors.Wrap(err, "Can't unmarshal configuration")
	}

	return configuration, nil
}

// ResolveLogLevel maps the configured level onto the logger's
func (c *Configuration) ResolveLogLevel() nucliozap.Level {
	switch c.Logger.Level {
	case "debug":
		return nucliozap.DebugLevel
	case "warn":
		return nucliozap.WarnLevel
	case "error":
		return nucliozap.ErrorLevel
	default:
		return nucliozap.InfoLevel
	}
}
