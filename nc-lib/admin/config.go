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

package admin

import (
	"fmt"

	"github.com/nuodb/nuoca/nc-lib/config"
)

const (
	defaultEnabled     = false
	defaultHistorySize = 60
)

// DefaultBind is the default listen address when admin is enabled
var DefaultBind = "tcp:127.0.0.1:12346"

// Config holds the admin configuration
type Config struct {
	Enabled     bool   `config:"enabled"`
	Bind        string `config:"listen address"`
	JWTSecret   string `config:"jwt secret"`
	HistorySize int    `config:"history size" validate:"min=1,max=100000"`
}

// Validate the configuration
func (c *Config) Validate(p *config.Parser, path string) error {
	if err := config.ValidateStruct(path, c); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if c.Bind == "" {
		return fmt.Errorf("%slisten address must be specified if %senabled is true", path, path)
	}
	bind := splitAdminConnectString(c.Bind)
	if _, ok := registeredListeners[bind[0]]; !ok {
		return fmt.Errorf("%slisten address has an unknown transport '%s'", path, bind[0])
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return fmt.Errorf("%sjwt secret must be at least 16 characters", path)
	}
	return nil
}

// FetchConfig returns the admin configuration from a Config structure
func FetchConfig(cfg *config.Config) *Config {
	return cfg.Section("admin").(*Config)
}

func init() {
	config.RegisterSection("admin", func() interface{} {
		return &Config{
			Enabled:     defaultEnabled,
			Bind:        DefaultBind,
			HistorySize: defaultHistorySize,
		}
	})
}
