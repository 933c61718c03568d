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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nestarz/carlo/pkg/rpc"
	"github.com/nestarz/carlo/pkg/rpc/encoder"
	"github.com/nestarz/carlo/pkg/rpc/transport"
	"github.com/nestarz/carlo/pkg/rpc/transport/nats"
	"github.com/nestarz/carlo/pkg/rpc/transport/stream"
	"github.com/nestarz/carlo/pkg/rpc/transport/ws"
	"github.com/nestarz/carlo/pkg/rpcconfig"

	natsio "github.com/nats-io/nats.go"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
)

// worldletService is what this worldlet exposes to the fabric
type worldletService struct {
	logger logger.Logger
}

// Sum adds two numbers; the fabric invokes it as "sum"
func (s *worldletService) Sum(a float64, b float64) float64 {
	return a + b
}

// Echo returns its argument unchanged, handles included
func (s *worldletService) Echo(value interface{}) interface{} {
	return value
}

// Hello greets, so hosts have something to log
func (s *worldletService) Hello(name string) string {
	s.logger.InfoWith("Saying hello", "name", name)

	return "hello " + name
}

func run() error {
	configPath := flag.String("config", "", "Path of configuration file")
	flag.Parse()

	configuration, err := rpcconfig.NewConfigurationFromFile(*configPath)
	if err != nil {
		return err
	}

	// stdout may belong to the fabric, so logs go to stderr
	rootLogger, err := nucliozap.NewNuclioZap("worldlet",
		"console",
		nil,
		os.Stderr,
		os.Stderr,
		configuration.ResolveLogLevel())
	if err != nil {
		return errors.Wrap(err, "Can't create logger")
	}

	transportFactory, err := createTransportFactory(rootLogger, configuration)
	if err != nil {
		return err
	}

	service := &worldletService{logger: rootLogger}

	_, err = rpc.InitWorld(rootLogger, transportFactory, func(parent *rpc.Handle, world *rpc.World) {
		serviceHandle, err := world.SetRoot(service)
		if err != nil {
			rootLogger.ErrorWith("Can't wrap service", "error", err)
			return
		}

		rootLogger.InfoWith("Joined fabric",
			"worldId", world.ID(),
			"worldArgs", world.WorldArgs())

		if parent != nil {
			if _, err := parent.CallWait(context.Background(), "register", "worldlet", serviceHandle); err != nil {
				rootLogger.ErrorWith("Can't register with parent", "error", err)
			}
		}
	})
	if err != nil {
		return errors.Wrap(err, "Can't init world")
	}

	// serve until the host tears us down
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	return nil
}

func createTransportFactory(rootLogger logger.Logger,
	configuration *rpcconfig.Configuration) (transport.Factory, error) {

	switch configuration.Transport.Kind {
	case "", "stdio":
		codec, err := encoder.NewCodec(configuration.Transport.Codec)
		if err != nil {
			return nil, err
		}

		return stream.NewFactory(rootLogger, os.Stdin, os.Stdout, codec), nil

	case "ws":
		return ws.Dial(rootLogger, configuration.Transport.Address)

	case "nats":
		connection, err := natsio.Connect(configuration.Transport.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't connect to NATS server %s", configuration.Transport.Address)
		}

		// mirrored from the host: the worldlet publishes on .up, which the
		// host subscribes to, and listens on .down, which the host publishes on
		return nats.NewFactory(rootLogger,
			connection,
			configuration.Transport.Subject+".up",
			configuration.Transport.Subject+".down"), nil

	default:
		return nil, errors.Errorf("Unknown transport kind %q", configuration.Transport.Kind)
	}
}

func main() {
	if err := run(); err != nil {
		errors.PrintErrorStack(os.Stderr, err, 5)

		os.Exit(1)
	}
}
