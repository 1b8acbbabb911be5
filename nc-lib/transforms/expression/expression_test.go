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

package expression

import (
	"testing"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransform(t *testing.T, fields ...map[string]interface{}) (*Transform, error) {
	list := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		list = append(list, field)
	}

	p := config.NewParser(nil)
	factory, err := NewFactory(p, "/transforms[0]/", map[string]interface{}{"fields": list}, "expression")
	require.NoError(t, err)
	if err := factory.(*Factory).Validate(p, "/transforms[0]/"); err != nil {
		return nil, err
	}
	return factory.NewTransform("expression").(*Transform), nil
}

func TestExpressionFields(t *testing.T) {
	transform, err := newTestTransform(t,
		map[string]interface{}{"field": "commit_rate", "expression": `values["NuoMonitor.Commits"] / values.CollectionInterval`},
		map[string]interface{}{"field": "busy", "expression": `values.commit_rate > 2`},
		map[string]interface{}{"field": "label", "expression": `values["nuoca.host"] + "-" + values["NuoMonitor.State"].lowerAscii()`},
		map[string]interface{}{"field": "load", "expression": `values["NuoMonitor.Load"] * 2.0`},
	)
	require.NoError(t, err)

	record := metrics.NewRecord(1500000030, 30, "db1")
	record.Values["NuoMonitor.Commits"] = int64(90)
	record.Values["NuoMonitor.State"] = "RUNNING"
	record.Values["NuoMonitor.Load"] = 0.25

	result, err := transform.Transform(record)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Values["commit_rate"])
	assert.Equal(t, true, result.Values["busy"])
	assert.Equal(t, "db1-running", result.Values["label"])
	assert.Equal(t, 0.5, result.Values["load"])
	assert.NotContains(t, record.Values, "commit_rate")
}

func TestExpressionEvaluationFailureSkipsField(t *testing.T) {
	transform, err := newTestTransform(t,
		map[string]interface{}{"field": "missing", "expression": `values["absent"] + 1`},
		map[string]interface{}{"field": "present", "expression": `1 + 1`},
	)
	require.NoError(t, err)

	result, err := transform.Transform(metrics.NewRecord(1, 1, "h"))
	require.NoError(t, err)
	assert.NotContains(t, result.Values, "missing")
	assert.Equal(t, int64(2), result.Values["present"])
}

func TestExpressionValidation(t *testing.T) {
	_, err := newTestTransform(t, map[string]interface{}{"field": "x", "expression": "1 +"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/transforms[0]/fields[0]/expression failed to compile")

	_, err = newTestTransform(t, map[string]interface{}{"field": "timestamp", "expression": "1"})
	assert.EqualError(t, err, "/transforms[0]/fields[0]/field cannot be the reserved key timestamp")

	_, err = newTestTransform(t, map[string]interface{}{"expression": "1"})
	assert.EqualError(t, err, "/transforms[0]/fields[0]/field must be specified")

	_, err = newTestTransform(t)
	assert.EqualError(t, err, "/transforms[0]/fields must have at least 1 entries")
}
