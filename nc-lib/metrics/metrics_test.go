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

package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateIntegerMeanTruncates(t *testing.T) {
	result := Aggregate([]Values{
		{"Connections": 1},
		{"Connections": 2},
	})
	assert.Equal(t, int64(1), result["Connections"])
}

func TestAggregateFloatMean(t *testing.T) {
	result := Aggregate([]Values{
		{"Load": 1.0},
		{"Load": 2.0},
		{"Load": 4.5},
	})
	assert.InDelta(t, 2.5, result["Load"], 1e-9)
}

func TestAggregateFirstIntegerThenFloat(t *testing.T) {
	result := Aggregate([]Values{
		{"Mixed": 3},
		{"Mixed": 4.5},
	})
	assert.Equal(t, int64(3), result["Mixed"])
}

func TestAggregateNonNumericTakesLast(t *testing.T) {
	result := Aggregate([]Values{
		{"State": "RUNNING", "Broken": 1},
		{"State": "SHUTDOWN", "Broken": "n/a"},
	})
	assert.Equal(t, "SHUTDOWN", result["State"])
	assert.Equal(t, "n/a", result["Broken"])
}

func TestAggregateMissingKeys(t *testing.T) {
	result := Aggregate([]Values{
		{"A": 10},
		{"A": 20, "B": 7},
	})
	assert.Equal(t, int64(15), result["A"])
	assert.Equal(t, int64(7), result["B"])
}

func TestAggregateJSONNumbers(t *testing.T) {
	result := Aggregate([]Values{
		{"Count": json.Number("10"), "Rate": json.Number("0.5")},
		{"Count": json.Number("13"), "Rate": json.Number("1.5")},
	})
	assert.Equal(t, int64(11), result["Count"])
	assert.InDelta(t, 1.0, result["Rate"], 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestPrefix(t *testing.T) {
	result := Prefix("NuoMon", Values{"Commits": 5})
	assert.Equal(t, Values{"NuoMon.Commits": 5}, result)
}

func TestParseNumeric(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumeric("42"))
	assert.Equal(t, 4.25, ParseNumeric(" 4.25 "))
	assert.Equal(t, "fast", ParseNumeric("fast"))
	assert.Equal(t, "NaN", ParseNumeric("NaN"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, int64(5), Normalize(5))
	assert.Equal(t, int64(5), Normalize(json.Number("5")))
	assert.Equal(t, 5.5, Normalize(json.Number("5.5")))
	assert.Equal(t, int64(12), Normalize([]byte("12")))
	assert.Equal(t, true, Normalize(true))
}

func TestResponseJSON(t *testing.T) {
	encoded, err := json.Marshal(NewResponse(Values{"a": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"StatusCode":0,"Collected_Values":{"a":1}}`, string(encoded))

	var missing Response
	require.NoError(t, json.Unmarshal([]byte(`{"StatusCode":0}`), &missing))
	assert.Nil(t, missing.CollectedValues)
}

func TestRecordJSON(t *testing.T) {
	record := NewRecord(1500000030, 30, "db1")
	record.Values["NuoMon.Commits"] = int64(9)

	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":1500000030,"CollectionInterval":30,"nuoca.host":"db1","NuoMon.Commits":9}`, string(encoded))

	decoded := &Record{}
	require.NoError(t, json.Unmarshal(encoded, decoded))
	assert.Equal(t, record, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &Record{}))
}

func TestRecordCopy(t *testing.T) {
	record := NewRecord(1, 1, "h")
	record.Values["a"] = 1

	copied := record.Copy()
	copied.Values["b"] = 2

	assert.NotContains(t, record.Values, "b")
	assert.True(t, IsReserved(KeyHost))
	assert.False(t, IsReserved("a"))
}
