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
	"math"
	"sort"
	"strconv"
	"strings"
)

// Values holds collected values keyed by name
type Values map[string]interface{}

// Keys returns the keys of the values in sorted order
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies all entries of other into v, replacing existing keys
func (v Values) Merge(other Values) {
	for key, value := range other {
		v[key] = value
	}
}

// Copy returns a shallow copy of the values
func (v Values) Copy() Values {
	ret := make(Values, len(v))
	ret.Merge(v)
	return ret
}

// Prefix returns a copy of values with every key namespaced as
// "<name>.<key>"
func Prefix(name string, values Values) Values {
	ret := make(Values, len(values))
	for key, value := range values {
		ret[name+"."+key] = value
	}
	return ret
}

// Normalize converts decoded numbers into int64 where they are integral and
// float64 otherwise. Strings and other types are returned unchanged.
func Normalize(value interface{}) interface{} {
	switch vt := value.(type) {
	case json.Number:
		if i, err := vt.Int64(); err == nil {
			return i
		}
		if f, err := vt.Float64(); err == nil {
			return f
		}
		return vt.String()
	case int:
		return int64(vt)
	case int8:
		return int64(vt)
	case int16:
		return int64(vt)
	case int32:
		return int64(vt)
	case uint:
		return Normalize(uint64(vt))
	case uint8:
		return int64(vt)
	case uint16:
		return int64(vt)
	case uint32:
		return int64(vt)
	case uint64:
		if vt <= math.MaxInt64 {
			return int64(vt)
		}
		return float64(vt)
	case float32:
		return float64(vt)
	case []byte:
		return ParseNumeric(string(vt))
	}
	return value
}

// NormalizeValues normalizes every entry of values in place
func NormalizeValues(values Values) Values {
	for key, value := range values {
		values[key] = Normalize(value)
	}
	return values
}

// ParseNumeric returns the int64 or float64 represented by s, or s itself if
// it is not a number
func ParseNumeric(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// asInteger and asFloat report numeric values after normalization
func asInteger(value interface{}) (int64, bool) {
	i, ok := Normalize(value).(int64)
	return i, ok
}

func asFloat(value interface{}) (float64, bool) {
	switch vt := Normalize(value).(type) {
	case int64:
		return float64(vt), true
	case float64:
		return vt, true
	}
	return 0, false
}
