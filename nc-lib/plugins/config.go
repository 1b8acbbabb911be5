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

package plugins

import (
	"fmt"

	"github.com/nuodb/nuoca/nc-lib/config"
)

// PluginStub is a configured plugin: its name, an optional alias and the
// options the plugin itself parses
type PluginStub struct {
	Name  string `config:"name"`
	Alias string `config:"alias"`

	Factory interface{}
	Unused  map[string]interface{}

	// unprefixed inputs merge their values without the instance name
	unprefixed bool
}

// InstanceName is the name the plugin instance reports values under
func (s *PluginStub) InstanceName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

func (s *PluginStub) checkName(path string, kind string) error {
	if s.Name == "" {
		return fmt.Errorf("%sname is required for the %s plugin", path, kind)
	}
	return nil
}

// InputStub is a configured input plugin
type InputStub PluginStub

// Init creates the factory for the named input plugin
func (s *InputStub) Init(p *config.Parser, path string) (err error) {
	stub := (*PluginStub)(s)
	if err = stub.checkName(path, "input"); err != nil {
		return
	}

	registrar, ok := registeredInputs[s.Name]
	if !ok {
		return fmt.Errorf("Unrecognised input plugin '%s' for %s", s.Name, path)
	}

	if value, ok := s.Unused["prefix"]; ok {
		prefix, isBool := value.(bool)
		if !isBool {
			return fmt.Errorf("Option %sprefix must be true or false", path)
		}
		s.unprefixed = !prefix
		delete(s.Unused, "prefix")
	}

	s.Factory, err = registrar(p, path, s.Unused, stub.InstanceName())
	return
}

// Prefixed returns true if the input's values are namespaced with its
// instance name, which is the default
func (s *InputStub) Prefixed() bool {
	return !s.unprefixed
}

// SetPrefixed changes whether the input's values are namespaced
func (s *InputStub) SetPrefixed(prefixed bool) {
	s.unprefixed = !prefixed
}

// NewInput creates an instance of the input
func (s *InputStub) NewInput() Input {
	return s.Factory.(InputFactory).NewInput((*PluginStub)(s).InstanceName())
}

// TransformStub is a configured transform plugin
type TransformStub PluginStub

// Init creates the factory for the named transform plugin
func (s *TransformStub) Init(p *config.Parser, path string) (err error) {
	stub := (*PluginStub)(s)
	if err = stub.checkName(path, "transform"); err != nil {
		return
	}

	registrar, ok := registeredTransforms[s.Name]
	if !ok {
		return fmt.Errorf("Unrecognised transform plugin '%s' for %s", s.Name, path)
	}
	s.Factory, err = registrar(p, path, s.Unused, stub.InstanceName())
	return
}

// NewTransform creates an instance of the transform
func (s *TransformStub) NewTransform() Transform {
	return s.Factory.(TransformFactory).NewTransform((*PluginStub)(s).InstanceName())
}

// OutputStub is a configured output plugin
type OutputStub PluginStub

// Init creates the factory for the named output plugin
func (s *OutputStub) Init(p *config.Parser, path string) (err error) {
	stub := (*PluginStub)(s)
	if err = stub.checkName(path, "output"); err != nil {
		return
	}

	registrar, ok := registeredOutputs[s.Name]
	if !ok {
		return fmt.Errorf("Unrecognised output plugin '%s' for %s", s.Name, path)
	}
	s.Factory, err = registrar(p, path, s.Unused, stub.InstanceName())
	return
}

// NewOutput creates an instance of the output
func (s *OutputStub) NewOutput() Output {
	return s.Factory.(OutputFactory).NewOutput((*PluginStub)(s).InstanceName())
}

// Config holds the configured plugins, read from the top level of the
// configuration file
type Config struct {
	Inputs     []InputStub     `config:"inputs"`
	Transforms []TransformStub `config:"transforms"`
	Outputs    []OutputStub    `config:"outputs"`
}

// Validate the plugin configuration
func (c *Config) Validate(p *config.Parser, path string) error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("At least one input plugin must be configured (%sinputs)", path)
	}
	if len(c.Outputs) == 0 {
		return fmt.Errorf("At least one output plugin must be configured (%soutputs)", path)
	}

	// Input values are namespaced by instance name so they must not clash
	names := make(map[string]int, len(c.Inputs))
	for n := range c.Inputs {
		if !c.Inputs[n].Prefixed() {
			continue
		}
		name := (*PluginStub)(&c.Inputs[n]).InstanceName()
		if prev, ok := names[name]; ok {
			return fmt.Errorf("%sinputs[%d] and %sinputs[%d] both use the name '%s', set an alias on one of them", path, prev, path, n, name)
		}
		names[name] = n
	}

	return nil
}

// FetchConfig returns the plugin configuration from a Config structure
func FetchConfig(cfg *config.Config) *Config {
	return cfg.RootPart("plugins").(*Config)
}

func init() {
	config.RegisterRootPart("plugins", func() interface{} {
		return &Config{}
	})
}
