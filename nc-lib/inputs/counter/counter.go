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

// Package counter provides a deterministic input that counts collections,
// used for self tests and for checking a pipeline end to end
package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"go.uber.org/atomic"
)

// Factory holds the configuration of a counter input
type Factory struct {
	Start  int64                  `config:"start"`
	Step   int64                  `config:"step"`
	Fail   int64                  `config:"fail every"`
	Values map[string]interface{} `config:"values"`
}

// NewFactory parses the configuration of a counter input
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.InputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.Step = 1
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if f.Fail < 0 {
		return fmt.Errorf("%sfail every cannot be negative", configPath)
	}
	return p.FixMapKeys(configPath+"values", f.Values)
}

// NewInput creates a new counter input
func (f *Factory) NewInput(name string) plugins.Input {
	ret := &Input{name: name, factory: f}
	ret.count.Store(f.Start)
	return ret
}

// Input reports an increasing counter on every collection
type Input struct {
	name    string
	factory *Factory
	count   atomic.Int64
	calls   atomic.Int64
}

// Name returns the instance name
func (i *Input) Name() string {
	return i.name
}

// Startup is a no-op
func (i *Input) Startup(ctx context.Context) error {
	return nil
}

// Collect increments and reports the counter
// When "fail every" is set, every Nth call returns a failed status
func (i *Input) Collect(ctx context.Context, interval time.Duration) (*metrics.Response, error) {
	calls := i.calls.Inc()
	if i.factory.Fail != 0 && calls%i.factory.Fail == 0 {
		return &metrics.Response{StatusCode: 1}, nil
	}

	values := metrics.Values{}
	for key, value := range i.factory.Values {
		values[key] = metrics.Normalize(value)
	}
	values["counter"] = i.count.Add(i.factory.Step)
	return metrics.NewResponse(values), nil
}

// Shutdown is a no-op
func (i *Input) Shutdown() error {
	return nil
}

func init() {
	plugins.RegisterInput("counter", NewFactory)
}
