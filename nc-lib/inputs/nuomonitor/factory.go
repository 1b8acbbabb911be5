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

package nuomonitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

const (
	defaultInterval time.Duration = 10 * time.Second
	defaultTimeout  time.Duration = 5 * time.Second
	defaultPath     string        = "/api/v1/metrics/latest"
)

// legacyOptions maps the option names of the mpNuoMonitor plugin onto ours
var legacyOptions = map[string]string{
	"nuomonitor_host":     "host",
	"nuomonitor_port":     "port",
	"nuomonitor_interval": "interval",
}

// Factory holds the configuration of a nuomonitor input
type Factory struct {
	Broker   string        `config:"broker" validate:"required"`
	Host     string        `config:"host" validate:"required"`
	Port     int           `config:"port" validate:"min=1,max=65535"`
	Interval time.Duration `config:"interval"`
	Timeout  time.Duration `config:"timeout"`
	Path     string        `config:"path"`
}

// NewFactory parses the configuration of a nuomonitor input
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.InputFactory, error) {
	if err := upgradeLegacyOptions(configPath, unUsed); err != nil {
		return nil, err
	}

	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// upgradeLegacyOptions renames mpNuoMonitor options in place
func upgradeLegacyOptions(configPath string, unUsed map[string]interface{}) error {
	for legacy, option := range legacyOptions {
		value, ok := unUsed[legacy]
		if !ok {
			continue
		}
		if _, ok := unUsed[option]; ok {
			return fmt.Errorf("%s%s and %s%s cannot both be specified", configPath, legacy, configPath, option)
		}

		// mpNuoMonitor configurations often quote the port
		if text, ok := value.(string); ok && option == "port" {
			port, err := strconv.Atoi(text)
			if err != nil {
				return fmt.Errorf("%s%s must be a port number", configPath, legacy)
			}
			value = port
		}

		unUsed[option] = value
		delete(unUsed, legacy)
	}
	return nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.Interval = defaultInterval
	f.Timeout = defaultTimeout
	f.Path = defaultPath
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if err := config.ValidateStruct(configPath, f); err != nil {
		return err
	}
	if f.Interval < time.Second {
		return fmt.Errorf("%sinterval must be at least 1s", configPath)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("%stimeout must be greater than 0", configPath)
	}
	return nil
}

// URL returns the address of the latest metrics endpoint
func (f *Factory) URL() string {
	return fmt.Sprintf("http://%s:%d%s", f.Host, f.Port, f.Path)
}

// NewInput creates a new nuomonitor input
func (f *Factory) NewInput(name string) plugins.Input {
	return newInput(name, f)
}

func init() {
	plugins.RegisterInput("nuomonitor", NewFactory)
	plugins.RegisterInput("mpNuoMonitor", NewFactory)
}
