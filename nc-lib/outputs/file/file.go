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

// Package file provides an output that appends records to a file as JSON
// lines
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

// Factory holds the configuration of a file output
type Factory struct {
	Path string `config:"path" validate:"required"`
	Mode int    `config:"mode"`
}

// NewFactory parses the configuration of a file output
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.OutputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.Mode = 0o640
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	return config.ValidateStruct(configPath, f)
}

// NewOutput creates a new file output
func (f *Factory) NewOutput(name string) plugins.Output {
	return &Output{name: name, factory: f}
}

// Output appends records to a file, one JSON document per line
type Output struct {
	name    string
	factory *Factory

	mutex  sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// Name returns the instance name
func (o *Output) Name() string {
	return o.name
}

// Startup opens the file for appending
func (o *Output) Startup(ctx context.Context) error {
	file, err := os.OpenFile(o.factory.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, os.FileMode(o.factory.Mode))
	if err != nil {
		return fmt.Errorf("failed to open %s: %s", o.factory.Path, err)
	}

	log.Infof("[%s] Writing records to %s", o.name, o.factory.Path)
	o.file = file
	o.writer = bufio.NewWriter(file)
	return nil
}

// Store appends the record and flushes it to the file
func (o *Output) Store(ctx context.Context, record *metrics.Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.writer == nil {
		return fmt.Errorf("%s is not open", o.factory.Path)
	}
	o.writer.Write(encoded)
	o.writer.WriteByte('\n')
	return o.writer.Flush()
}

// Shutdown closes the file
func (o *Output) Shutdown() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.file == nil {
		return nil
	}
	err := o.writer.Flush()
	if closeErr := o.file.Close(); err == nil {
		err = closeErr
	}
	o.file, o.writer = nil, nil
	return err
}

func init() {
	log = logging.MustGetLogger("file")
	plugins.RegisterOutput("file", NewFactory)
}
