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
	"bytes"
	"fmt"

	"gopkg.in/yaml.v2"
)

// loadYAML decodes YAML configuration data into rawConfig
// Nested mappings arrive as map[interface{}]interface{}, which the Parser
// handles, and FixMapKeys converts for free-form fields
func loadYAML(data []byte, rawConfig interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("Empty configuration file")
	}

	if err := yaml.Unmarshal(data, rawConfig); err != nil {
		return fmt.Errorf("yaml: %s", err)
	}

	return nil
}
