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
	"net/http"
	"os"
	"sync"
	"time"

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const worldletReadyTimeout = 30 * time.Second

// hostService is the root object children see as their parent
type hostService struct {
	logger     logger.Logger
	lock       sync.Mutex
	worldlets  map[string]*rpc.Handle
	registered chan string
}

func newHostService(parentLogger logger.Logger) *hostService {
	return &hostService{
		logger:     parentLogger.GetChild("service"),
		worldlets:  map[string]*rpc.Handle{},
		registered: make(chan string, 16),
	}
}

// Register is invoked by joining worldlets as "register"
func (hs *hostService) Register(name string, worldlet *rpc.Handle) {
	hs.logger.InfoWith("Worldlet registered", "name", name)

	hs.lock.Lock()
	hs.worldlets[name] = worldlet
	hs.lock.Unlock()

	hs.registered <- name
}

func (hs *hostService) worldlet(name string) *rpc.Handle {
	hs.lock.Lock()
	defer hs.lock.Unlock()

	return hs.worldlets[name]
}

func run() error {
	configPath := flag.String("config", "", "Path of configuration file")
	flag.Parse()

	configuration, err := rpcconfig.NewConfigurationFromFile(*configPath)
	if err != nil {
		return err
	}

	rootLogger, err := nucliozap.NewNuclioZapCmd("host", configuration.ResolveLogLevel(), os.Stdout)
	if err != nil {
		return errors.Wrap(err, "Can't create logger")
	}

	var worldOptions []rpc.WorldOption

	if configuration.Metrics.Enabled {
		metricRegistry := prometheus.NewRegistry()
		worldOptions = append(worldOptions, rpc.WithMetrics(metricRegistry, configuration.Metrics.InstanceName))

		go serveMetrics(rootLogger, configuration, metricRegistry)
	}

	rootWorld, err := rpc.NewRoot(rootLogger, worldOptions...)
	if err != nil {
		return errors.Wrap(err, "Can't create root world")
	}

	service := newHostService(rootLogger)
	if _, err := rootWorld.SetRoot(service); err != nil {
		return errors.Wrap(err, "Can't set root service")
	}

	childWorldID, stopWorldlet, err := connectWorldlet(rootLogger, configuration, rootWorld)
	if err != nil {
		return err
	}

	defer stopWorldlet()

	// the worldlet announces itself by calling register on our root
	select {
	case name := <-service.registered:
		if err := greet(rootLogger, service.worldlet(name)); err != nil {
			return err
		}

	case <-time.After(worldletReadyTimeout):
		return errors.New("Timed out waiting for a worldlet to register")
	}

	rootWorld.DisposeWorld(childWorldID)

	return nil
}

func greet(rootLogger logger.Logger, worldlet *rpc.Handle) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sum, err := worldlet.CallWait(ctx, "sum", 1, 3)
	if err != nil {
		return errors.Wrap(err, "Can't call sum")
	}

	greeting, err := worldlet.CallWait(ctx, "hello", "fabric")
	if err != nil {
		return errors.Wrap(err, "Can't call hello")
	}

	rootLogger.InfoWith("Worldlet responded", "sum", sum, "greeting", greeting)

	return nil
}

// connectWorldlet wires a child world up according to the configured
// transport and returns its world id and a teardown function
func connectWorldlet(rootLogger logger.Logger,
	configuration *rpcconfig.Configuration,
	rootWorld *rpc.World) (int, func(), error) {

	switch configuration.Transport.Kind {
	case "", "stdio":
		codec, err := encoder.NewCodec(configuration.Transport.Codec)
		if err != nil {
			return 0, nil, err
		}

		worldletProcess, err := stream.Spawn(rootLogger,
			configuration.Worldlet.Path,
			configuration.Worldlet.Args,
			codec)
		if err != nil {
			return 0, nil, errors.Wrap(err, "Can't spawn worldlet")
		}

		childWorldID, err := rootWorld.CreateWorld(worldletProcess.Factory, "stdio")
		if err != nil {
			worldletProcess.Stop() // nolint: errcheck
			return 0, nil, errors.Wrap(err, "Can't create world")
		}

		return childWorldID, func() {
			worldletProcess.Stop() // nolint: errcheck
		}, nil

	case "ws":
		return connectOverWebsocket(rootLogger, configuration, rootWorld)

	case "nats":
		connection, err := natsio.Connect(configuration.Transport.Address)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "Can't connect to NATS server %s", configuration.Transport.Address)
		}

		transportFactory := nats.NewFactory(rootLogger,
			connection,
			configuration.Transport.Subject+".down",
			configuration.Transport.Subject+".up")

		childWorldID, err := rootWorld.CreateWorld(transportFactory, "nats")
		if err != nil {
			connection.Close()
			return 0, nil, errors.Wrap(err, "Can't create world")
		}

		return childWorldID, connection.Close, nil

	default:
		return 0, nil, errors.Errorf("Unknown transport kind %q", configuration.Transport.Kind)
	}
}

func connectOverWebsocket(rootLogger logger.Logger,
	configuration *rpcconfig.Configuration,
	rootWorld *rpc.World) (int, func(), error) {

	acceptedChan := make(chan transport.Factory, 1)

	server := ws.NewServer(rootLogger, func(transportFactory transport.Factory) {
		select {
		case acceptedChan <- transportFactory:
		default:
			rootLogger.Warn("Dropping extra fabric connection")
		}
	})

	httpServer := &http.Server{
		Addr:    configuration.Transport.Address,
		Handler: server.Handler(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rootLogger.ErrorWith("Can't listen", "address", configuration.Transport.Address, "error", err)
		}
	}()

	rootLogger.InfoWith("Awaiting worldlet connection", "address", configuration.Transport.Address)

	select {
	case transportFactory := <-acceptedChan:
		childWorldID, err := rootWorld.CreateWorld(transportFactory, "ws")
		if err != nil {
			httpServer.Close() // nolint: errcheck
			return 0, nil, errors.Wrap(err, "Can't create world")
		}

		return childWorldID, func() {
			httpServer.Close() // nolint: errcheck
		}, nil

	case <-time.After(worldletReadyTimeout):
		httpServer.Close() // nolint: errcheck
		return 0, nil, errors.New("Timed out waiting for a worldlet connection")
	}
}

func serveMetrics(rootLogger logger.Logger,
	configuration *rpcconfig.Configuration,
	metricRegistry *prometheus.Registry) {

	http.Handle("/metrics", promhttp.HandlerFor(metricRegistry, promhttp.HandlerOpts{}))

	if err := http.ListenAndServe(configuration.Metrics.ListenAddress, nil); err != nil {
		rootLogger.ErrorWith("Can't serve metrics", "error", err)
	}
}

func main() {
	if err := run(); err != nil {
		errors.PrintErrorStack(os.Stderr, err, 5)

		os.Exit(1)
	}
}
