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
	"os"
	"os/exec"

	"github.com/nestarz/carlo/pkg/rpc/encoder"
	"github.com/nestarz/carlo/pkg/rpc/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// WorldletProcess is a spawned child process participating in the fabric
// over its stdio
type WorldletProcess struct {
	logger  logger.Logger
	command *exec.Cmd

	// Factory is the transport factory for the parent side of the link
	Factory transport.Factory
}

// Spawn starts a child process and wires its stdin/stdout into a stream
// transport. The child's stderr is passed through, since its stdout belongs
// to the fabric.
func Spawn(parentLogger logger.Logger,
	binaryPath string,
	binaryArgs []string,
	codec encoder.Codec) (*WorldletProcess, error) {

	loggerInstance := parentLogger.GetChild("spawn")

	command := exec.Command(binaryPath, binaryArgs...)
	command.Stderr = os.Stderr

	childStdin, err := command.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "Can't open child stdin")
	}

	childStdout, err := command.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "Can't open child stdout")
	}

	if err := command.Start(); err != nil {
		return nil, errors.Wrapf(err, "Can't start %q", binaryPath)
	}

	loggerInstance.DebugWith("Spawned worldlet",
		"path", binaryPath,
		"pid", command.Process.Pid)

	return &WorldletProcess{
		logger:  loggerInstance,
		command: command,
		Factory: NewFactory(loggerInstance, childStdout, childStdin, codec),
	}, nil
}

// Stop kills the child process and reaps it
func (wp *WorldletProcess) Stop() error {
	if err := wp.command.Process.Kill(); err != nil {
		return errors.Wrap(err, "Can't kill worldlet process")
	}

	// the error is the kill signal, nothing to learn from it
	wp.command.Wait() // nolint: errcheck

	return nil
}

// Wait blocks until the child process exits on its own
func (wp *WorldletProcess) Wait() error {
	return wp.command.Wait()
}
