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
	"io"
	golog "log"
	"os"

	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

func init() {
	log = logging.MustGetLogger("core")
}

// defaultLogBackend writes to a file that can be reopened, such as after
// rotation
type defaultLogBackend struct {
	file   *os.File
	path   string
	logger *golog.Logger
}

func newDefaultLogBackend(path string, prefix string, flag int) (*defaultLogBackend, error) {
	ret := &defaultLogBackend{
		path:   path,
		logger: golog.New(io.Discard, prefix, flag),
	}

	if err := ret.Reopen(); err != nil {
		return nil, err
	}

	return ret, nil
}

func (f *defaultLogBackend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	return f.logger.Output(calldepth+2, rec.Formatted(calldepth+1))
}

// Reopen the log file
func (f *defaultLogBackend) Reopen() error {
	newFile, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return err
	}

	// Switch to new output before closing
	f.logger.SetOutput(newFile)

	if f.file != nil {
		f.file.Close()
	}

	f.file = newFile
	return nil
}

// Close the log file, discarding any further logs
func (f *defaultLogBackend) Close() {
	f.logger.SetOutput(io.Discard)

	if f.file != nil {
		f.file.Close()
	}

	f.file = nil
}
