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
	"encoding/json"

	"github.com/nuodb/nuoca/nc-lib/metrics"
)

// templateBody returns a composable index template for record indices.
// Collected strings are mapped as keywords since they are labels rather
// than text, and floats as doubles so means keep their precision.
func templateBody(indexWildcard string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"index_patterns": []string{indexWildcard},
		"priority":       100,
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 1,
			},
			"mappings": map[string]interface{}{
				"dynamic_templates": []interface{}{
					map[string]interface{}{
						"strings_as_keyword": map[string]interface{}{
							"match_mapping_type": "string",
							"mapping": map[string]interface{}{
								"type":         "keyword",
								"ignore_above": 1024,
							},
						},
					},
					map[string]interface{}{
						"longs_as_long": map[string]interface{}{
							"match_mapping_type": "long",
							"mapping":            map[string]interface{}{"type": "long"},
						},
					},
					map[string]interface{}{
						"doubles_as_double": map[string]interface{}{
							"match_mapping_type": "double",
							"mapping":            map[string]interface{}{"type": "double"},
						},
					},
				},
				"properties": map[string]interface{}{
					"@timestamp": map[string]interface{}{"type": "date"},
					metrics.KeyTimestamp: map[string]interface{}{
						"type":   "date",
						"format": "epoch_second",
					},
					metrics.KeyCollectionInterval: map[string]interface{}{"type": "integer"},
					metrics.KeyHost:               map[string]interface{}{"type": "keyword"},
				},
			},
		},
		"_meta": map[string]interface{}{
			"description": "Records stored by nuoca",
		},
	})
}
