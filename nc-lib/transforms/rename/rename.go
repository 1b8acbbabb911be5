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

// Package rename provides a transform that renames value keys
package rename

import (
	"fmt"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

// Factory holds the configuration of a rename transform
type Factory struct {
	Prefix string            `config:"prefix"`
	Fields map[string]string `config:"fields"`
}

// NewFactory parses the configuration of a rename transform
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.TransformFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if f.Prefix == "" && len(f.Fields) == 0 {
		return fmt.Errorf("%sprefix or %sfields must be specified", configPath, configPath)
	}
	for from, to := range f.Fields {
		if to == "" {
			return fmt.Errorf("%sfields/%s cannot be renamed to an empty key", configPath, from)
		}
		if metrics.IsReserved(from) || metrics.IsReserved(to) {
			return fmt.Errorf("%sfields/%s cannot rename a reserved key", configPath, from)
		}
	}
	return nil
}

// NewTransform creates a new rename transform
func (f *Factory) NewTransform(name string) plugins.Transform {
	return &Transform{name: name, factory: f}
}

// Transform applies explicit renames, then adds the prefix to every key
type Transform struct {
	name    string
	factory *Factory
}

// Name returns the instance name
func (t *Transform) Name() string {
	return t.name
}

// Transform renames the record values
func (t *Transform) Transform(record *metrics.Record) (*metrics.Record, error) {
	ret := record.Copy()
	ret.Values = make(metrics.Values, len(record.Values))
	for key, value := range record.Values {
		if renamed, ok := t.factory.Fields[key]; ok {
			key = renamed
		}
		ret.Values[t.factory.Prefix+key] = value
	}
	return ret, nil
}

func init() {
	plugins.RegisterTransform("rename", NewFactory)
}
