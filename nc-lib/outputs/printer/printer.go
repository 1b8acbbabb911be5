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

// Package printer provides an output that prints each record to stdout
package printer

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

// Factory holds the configuration of a printer output
type Factory struct {
	Pretty bool `config:"pretty"`
}

// NewFactory parses the configuration of a printer output
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.OutputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// NewOutput creates a new printer output
func (f *Factory) NewOutput(name string) plugins.Output {
	return newOutput(name, f, os.Stdout)
}

// Output writes records as JSON lines
type Output struct {
	name    string
	mutex   sync.Mutex
	encoder *json.Encoder
}

func newOutput(name string, factory *Factory, writer io.Writer) *Output {
	encoder := json.NewEncoder(writer)
	if factory.Pretty {
		encoder.SetIndent("", "  ")
	}
	return &Output{name: name, encoder: encoder}
}

// Name returns the instance name
func (o *Output) Name() string {
	return o.name
}

// Startup is a no-op
func (o *Output) Startup(ctx context.Context) error {
	return nil
}

// Store prints the record
func (o *Output) Store(ctx context.Context, record *metrics.Record) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.encoder.Encode(record)
}

// Shutdown is a no-op
func (o *Output) Shutdown() error {
	return nil
}

func init() {
	plugins.RegisterOutput("printer", NewFactory)
	plugins.RegisterOutput("Printer", NewFactory)
}
