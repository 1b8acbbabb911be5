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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/op/go-logging.v1"
)

var (
	log *logging.Logger

	// DefaultConfigurationFile is a path to the default configuration file to
	// load, this can be changed during init()
	DefaultConfigurationFile = ""

	// maxConfigSize is the largest configuration file we will read
	maxConfigSize int64 = 10 << 20

	envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// SectionCreator creates a new, defaulted, configuration structure for a
// registered section or root part
type SectionCreator func() interface{}

var (
	registeredSections  = make(map[string]SectionCreator)
	registeredRootParts = make(map[string]SectionCreator)
)

// Config holds all the configuration for the agent
// Sections are keyed by their name in the configuration file, whereas root
// parts read their entries directly from the top level of the file
type Config struct {
	Sections  map[string]interface{} `config:",dynamic"`
	RootParts map[string]interface{} `config:",embed_dynamic"`
}

// NewConfig creates a new configuration structure with every registered
// section and root part populated with its defaults
func NewConfig() *Config {
	c := &Config{
		Sections:  make(map[string]interface{}),
		RootParts: make(map[string]interface{}),
	}

	for name, creator := range registeredSections {
		c.Sections[name] = creator()
	}
	for name, creator := range registeredRootParts {
		c.RootParts[name] = creator()
	}

	return c
}

// Section returns the requested section
func (c *Config) Section(name string) interface{} {
	ret, ok := c.Sections[name]
	if !ok {
		return nil
	}
	return ret
}

// RootPart returns the requested root part
func (c *Config) RootPart(name string) interface{} {
	ret, ok := c.RootParts[name]
	if !ok {
		return nil
	}
	return ret
}

// Load the configuration from the given file, reporting unknown options as
// errors when reportUnused is set
func (c *Config) Load(path string, reportUnused bool) error {
	rawConfig := make(map[string]interface{})
	if err := loadFile(path, &rawConfig); err != nil {
		return err
	}

	return parseConfiguration(c, rawConfig, reportUnused)
}

// LoadFile creates a new configuration and loads the given file into it
func LoadFile(path string) (*Config, error) {
	c := NewConfig()
	if err := c.Load(path, true); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadEnvFile loads environment variables from a dotenv style file so they
// can be referenced from the configuration as ${NAME}
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("Failed to load environment file %s: %s", path, err)
	}
	return nil
}

// loadFile reads the given file, expands environment references, and decodes
// it according to its extension
func loadFile(path string, rawConfig interface{}) error {
	data, err := readConfigFile(path)
	if err != nil {
		return err
	}

	data = expandEnv(data)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".conf":
		return loadJSON(data, rawConfig)
	case ".yaml", ".yml":
		return loadYAML(data, rawConfig)
	}

	return fmt.Errorf("File extension '%s' is not within the known extensions: conf, json, yaml, yml", filepath.Ext(path))
}

func readConfigFile(path string) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to open config file: %s", err)
	}
	if stat.Size() == 0 {
		return nil, fmt.Errorf("Empty configuration file")
	}
	if stat.Size() > maxConfigSize {
		return nil, fmt.Errorf("Config file too large (%d)", stat.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to read config file: %s", err)
	}
	return data, nil
}

// expandEnv replaces ${NAME} references with the value of the environment
// variable. Unset variables expand to an empty string. A bare $ is left alone
// so passwords and expressions survive.
func expandEnv(data []byte) []byte {
	return envReference.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envReference.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// RegisterSection registers a new section which will be populated from the
// configuration file key of the same name
func RegisterSection(name string, creator SectionCreator) {
	registeredSections[name] = creator
}

// RegisterRootPart registers a structure that is populated from entries at
// the top level of the configuration file
func RegisterRootPart(name string, creator SectionCreator) {
	registeredRootParts[name] = creator
}

func init() {
	log = logging.MustGetLogger("config")
}
