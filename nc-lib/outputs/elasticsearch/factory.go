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

package elasticsearch

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/plugins"
)

const (
	defaultIndex         string        = "nuoca-%{+2006.01.02}"
	defaultTemplateName  string        = "nuoca"
	defaultFlushInterval time.Duration = 5 * time.Second
	defaultFlushBytes    int           = 5 * 1024 * 1024
	defaultWorkers       int           = 1
	defaultTimeout       time.Duration = 30 * time.Second
)

// Factory holds the configuration of an elasticsearch output
type Factory struct {
	Addresses       []string      `config:"addresses" validate:"min=1,dive,url"`
	Username        string        `config:"username"`
	Password        string        `config:"password"`
	SSLCA           string        `config:"ssl ca"`
	Index           string        `config:"index" validate:"required"`
	TemplateInstall bool          `config:"template install"`
	TemplateName    string        `config:"template name"`
	FlushInterval   time.Duration `config:"flush interval"`
	FlushBytes      int           `config:"flush bytes" validate:"min=1024"`
	Workers         int           `config:"workers" validate:"min=1,max=16"`
	Timeout         time.Duration `config:"timeout"`

	caCert  []byte
	pattern *indexPattern
}

// NewFactory parses the configuration of an elasticsearch output
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.OutputFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Defaults sets the default configuration values
func (f *Factory) Defaults() {
	f.Addresses = []string{"http://127.0.0.1:9200"}
	f.Index = defaultIndex
	f.TemplateInstall = true
	f.TemplateName = defaultTemplateName
	f.FlushInterval = defaultFlushInterval
	f.FlushBytes = defaultFlushBytes
	f.Workers = defaultWorkers
	f.Timeout = defaultTimeout
}

// Validate the configuration
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if err := config.ValidateStruct(configPath, f); err != nil {
		return err
	}
	pattern, err := parseIndexPattern(f.Index)
	if err != nil {
		return fmt.Errorf("%sindex %s", configPath, err)
	}
	f.pattern = pattern
	if f.TemplateInstall && f.TemplateName == "" {
		return fmt.Errorf("%stemplate name must be specified when template install is enabled", configPath)
	}
	if f.FlushInterval <= 0 {
		return fmt.Errorf("%sflush interval must be greater than 0", configPath)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("%stimeout must be greater than 0", configPath)
	}
	if f.SSLCA != "" {
		pem, err := os.ReadFile(f.SSLCA)
		if err != nil {
			return fmt.Errorf("%sssl ca could not be read: %s", configPath, err)
		}
		if !strings.Contains(string(pem), "-----BEGIN CERTIFICATE-----") {
			return fmt.Errorf("%sssl ca does not contain a PEM certificate", configPath)
		}
		f.caCert = pem
	}
	return nil
}

// NewOutput creates a new elasticsearch output
func (f *Factory) NewOutput(name string) plugins.Output {
	return newOutput(name, f)
}

func init() {
	plugins.RegisterOutput("elasticsearch", NewFactory)
}
