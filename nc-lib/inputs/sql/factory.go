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

package sql

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

const (
	defaultConnectTimeout time.Duration = 5 * time.Second
	defaultMaxOpenConns   int           = 2
)

// Query is a named query whose first row is reported
type Query struct {
	Name  string `config:"name" validate:"required"`
	Query string `config:"query" validate:"required"`
}

// Factory holds the configuration of a sql input
type Factory struct {
	DSN            string        `config:"dsn" validate:"required"`
	Queries        []Query       `config:"queries" validate:"min=1,dive"`
	ConnectTimeout time.Duration `config:"connect timeout"`
	MaxOpenConns   int           `config:"max open connections" validate:"min=1"`

	dsnConfig *mysql.Config
}

// NewFactory parses the configuration of a sql input
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.InputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.ConnectTimeout = defaultConnectTimeout
	f.MaxOpenConns = defaultMaxOpenConns
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) (err error) {
	if err = config.ValidateStruct(configPath, f); err != nil {
		return
	}

	if f.dsnConfig, err = mysql.ParseDSN(f.DSN); err != nil {
		return fmt.Errorf("%sdsn is invalid: %s", configPath, err)
	}
	if f.dsnConfig.Timeout == 0 {
		f.dsnConfig.Timeout = f.ConnectTimeout
	}

	names := make(map[string]bool, len(f.Queries))
	for n, query := range f.Queries {
		if names[query.Name] {
			return fmt.Errorf("%squeries[%d]/name '%s' is used more than once", configPath, n, query.Name)
		}
		names[query.Name] = true
	}
	return nil
}

// NewInput creates a new sql input
func (f *Factory) NewInput(name string) plugins.Input {
	return &Input{name: name, factory: f}
}

func init() {
	plugins.RegisterInput("sql", NewFactory)
}
