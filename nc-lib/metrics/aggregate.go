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
	"math"
	"math/big"
)

// Aggregate combines queued samples into one set of values. For each key,
// the type of the first sample decides the result:
//
//   - an integer gives the mean of all samples truncated to an integer
//   - a float gives the mean of all samples
//   - anything else gives the value of the last sample
//
// A key missing from some samples is aggregated over those that have it, and
// a key whose samples are not all numeric falls back to the last value.
func Aggregate(samples []Values) Values {
	series := make(map[string][]interface{})
	order := make([]string, 0)
	for _, sample := range samples {
		for key, value := range sample {
			if _, ok := series[key]; !ok {
				order = append(order, key)
			}
			series[key] = append(series[key], value)
		}
	}

	ret := make(Values, len(series))
	for _, key := range order {
		ret[key] = aggregateSeries(series[key])
	}
	return ret
}

func aggregateSeries(series []interface{}) interface{} {
	last := Normalize(series[len(series)-1])

	switch Normalize(series[0]).(type) {
	case int64:
		if mean, ok := integerMean(series); ok {
			return mean
		}
		if mean, ok := floatMean(series); ok {
			return int64(math.Trunc(mean))
		}
	case float64:
		if mean, ok := floatMean(series); ok {
			return mean
		}
	}

	return last
}

// integerMean calculates the mean of all-integer samples without overflow,
// truncating toward zero
func integerMean(series []interface{}) (int64, bool) {
	sum := new(big.Int)
	for _, value := range series {
		i, ok := asInteger(value)
		if !ok {
			return 0, false
		}
		sum.Add(sum, big.NewInt(i))
	}
	return sum.Quo(sum, big.NewInt(int64(len(series)))).Int64(), true
}

func floatMean(series []interface{}) (float64, bool) {
	var sum float64
	for _, value := range series {
		f, ok := asFloat(value)
		if !ok {
			return 0, false
		}
		sum += f
	}
	return sum / float64(len(series)), true
}
