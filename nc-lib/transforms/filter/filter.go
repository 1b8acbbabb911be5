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

// Package filter provides a transform that keeps or drops values by key
// using glob patterns
package filter

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

// Factory holds the configuration of a filter transform
type Factory struct {
	Include []string `config:"include"`
	Exclude []string `config:"exclude"`
}

// NewFactory parses the configuration of a filter transform
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.TransformFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if len(f.Include) == 0 && len(f.Exclude) == 0 {
		return fmt.Errorf("%sinclude or %sexclude must be specified", configPath, configPath)
	}
	for n, pattern := range f.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%sinclude[%d] is not a valid pattern: %s", configPath, n, pattern)
		}
	}
	for n, pattern := range f.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%sexclude[%d] is not a valid pattern: %s", configPath, n, pattern)
		}
	}
	return nil
}

// NewTransform creates a new filter transform
func (f *Factory) NewTransform(name string) plugins.Transform {
	return &Transform{name: name, factory: f}
}

// Transform removes values whose keys are not included, or are excluded
// Include is applied first, an empty include list keeping everything
type Transform struct {
	name    string
	factory *Factory
}

// Name returns the instance name
func (t *Transform) Name() string {
	return t.name
}

// Transform filters the record values
func (t *Transform) Transform(record *metrics.Record) (*metrics.Record, error) {
	ret := record.Copy()
	for key := range ret.Values {
		if !t.keep(key) {
			delete(ret.Values, key)
		}
	}
	return ret, nil
}

func (t *Transform) keep(key string) bool {
	if len(t.factory.Include) != 0 && !matchAny(t.factory.Include, key) {
		return false
	}
	return !matchAny(t.factory.Exclude, key)
}

func matchAny(patterns []string, key string) bool {
	for _, pattern := range patterns {
		// Patterns are validated on load
		if matched, _ := doublestar.Match(pattern, key); matched {
			return true
		}
	}
	return false
}

func init() {
	plugins.RegisterTransform("filter", NewFactory)
}
