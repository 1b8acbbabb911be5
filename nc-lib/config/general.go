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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/op/go-logging.v1"
)

const (
	defaultGeneralHost               string        = "localhost.localdomain"
	defaultGeneralCollectionInterval time.Duration = 30 * time.Second
	defaultGeneralPluginTimeout      time.Duration = 5 * time.Second
	defaultGeneralShutdownTimeout    time.Duration = 5 * time.Second
	defaultGeneralSelfTestLoops      int           = 5
	defaultGeneralTmpDirectory       string        = "/tmp/nuoca"
	defaultGeneralLogLevel           logging.Level = logging.INFO
	defaultGeneralLogStdout          bool          = true
	defaultGeneralLogSyslog          bool          = false
)

// General holds the general configuration
type General struct {
	CollectionInterval time.Duration          `config:"collection interval"`
	GlobalFields       map[string]interface{} `config:"global fields"`
	Host               string                 `config:"host"`
	LogFile            string                 `config:"log file"`
	LogLevel           logging.Level          `config:"log level"`
	LogStdout          bool                   `config:"log stdout"`
	LogSyslog          bool                   `config:"log syslog"`
	PluginTimeout      time.Duration          `config:"plugin timeout"`
	SelfTestLoops      int                    `config:"self test loops"`
	ShutdownTimeout    time.Duration          `config:"shutdown timeout"`
	StartTime          int64                  `config:"start time"`
	TmpDirectory       string                 `config:"tmp directory"`
	Verbose            bool                   `config:"verbose"`
}

// Validate the configuration
func (gc *General) Validate(p *Parser, path string) (err error) {
	// Boundaries are aligned to epoch seconds
	if gc.CollectionInterval < time.Second {
		return fmt.Errorf("%scollection interval must be at least 1s", path)
	}
	if gc.CollectionInterval%time.Second != 0 {
		return fmt.Errorf("%scollection interval must be a whole number of seconds", path)
	}

	if gc.PluginTimeout <= 0 {
		return fmt.Errorf("%splugin timeout must be greater than 0", path)
	}
	if gc.ShutdownTimeout <= 0 {
		return fmt.Errorf("%sshutdown timeout must be greater than 0", path)
	}
	if gc.SelfTestLoops < 1 {
		return fmt.Errorf("%sself test loops must be at least 1", path)
	}
	if gc.StartTime < 0 {
		return fmt.Errorf("%sstart time must be an epoch time in seconds", path)
	}
	if gc.TmpDirectory == "" {
		return fmt.Errorf("%stmp directory must be specified", path)
	}

	if gc.Host == "" {
		ret, hostErr := os.Hostname()
		if hostErr == nil {
			gc.Host = ret
		} else {
			gc.Host = defaultGeneralHost
			log.Warningf("Failed to determine the FQDN: %s", hostErr)
			log.Warningf("Falling back to using default hostname: %s", gc.Host)
		}
	}

	// Global fields are copied into JSON documents so need string keys
	return p.FixMapKeys(path+"global fields", gc.GlobalFields)
}

// IntervalSeconds returns the collection interval as whole seconds
func (gc *General) IntervalSeconds() int64 {
	return int64(gc.CollectionInterval / time.Second)
}

// General returns the general configuration
func (c *Config) General() *General {
	return c.Sections["general"].(*General)
}

func init() {
	RegisterSection("general", func() interface{} {
		return &General{
			CollectionInterval: defaultGeneralCollectionInterval,
			LogLevel:           defaultGeneralLogLevel,
			LogStdout:          defaultGeneralLogStdout,
			LogSyslog:          defaultGeneralLogSyslog,
			PluginTimeout:      defaultGeneralPluginTimeout,
			SelfTestLoops:      defaultGeneralSelfTestLoops,
			ShutdownTimeout:    defaultGeneralShutdownTimeout,
			TmpDirectory:       defaultGeneralTmpDirectory,
		}
	})
}
