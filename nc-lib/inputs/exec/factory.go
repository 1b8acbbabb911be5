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

package exec

import (
	"fmt"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

const (
	defaultTimeout time.Duration = 10 * time.Second
	defaultFormat  string        = "auto"
)

// Factory holds the configuration of an exec input
type Factory struct {
	Command string            `config:"command" validate:"required"`
	Args    []string          `config:"args"`
	Env     map[string]string `config:"env"`
	Timeout time.Duration     `config:"timeout"`
	Format  string            `config:"format" validate:"oneof=auto json lines"`
}

// NewFactory parses the configuration of an exec input
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.InputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.Timeout = defaultTimeout
	f.Format = defaultFormat
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if err := config.ValidateStruct(configPath, f); err != nil {
		return err
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("%stimeout must be greater than 0", configPath)
	}
	return nil
}

// NewInput creates a new exec input
func (f *Factory) NewInput(name string) plugins.Input {
	return &Input{name: name, factory: f}
}

func init() {
	plugins.RegisterInput("exec", NewFactory)
}
