//go:build !windows

/*
 * Copyright 2012-2020 Jason Woods and contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/mattn/go-isatty"
	"gopkg.in/op/go-logging.v1"
)

// registerSignals registers shutdown and reload signals with the signal
// channel
func (a *App) registerSignals() {
	signal.Notify(a.signalChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

// isShutdownSignal returns true if the signal provided is a shutdown signal
func isShutdownSignal(signal os.Signal) bool {
	return signal != syscall.SIGHUP
}

// configureLoggingPlatform enables platform specific logging backends in the
// logging configuration
func (a *App) configureLoggingPlatform(backends *[]logging.Backend) error {
	general := a.config.General()

	// Make it color if it's a TTY
	if general.LogStdout && isatty.IsTerminal(os.Stdout.Fd()) {
		(*backends)[0].(*logging.LogBackend).Color = true
	}

	if general.LogSyslog {
		syslogBackend, err := logging.NewSyslogBackend(path.Base(os.Args[0]))
		if err != nil {
			return fmt.Errorf("failed to open syslog: %s", err)
		}
		*backends = append(*backends, syslogBackend)
	}

	return nil
}
