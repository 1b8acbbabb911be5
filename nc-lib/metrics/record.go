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
	"bytes"
	"encoding/json"
	"fmt"
)

// Keys reserved for record metadata
const (
	KeyTimestamp          = "timestamp"
	KeyCollectionInterval = "CollectionInterval"
	KeyHost               = "nuoca.host"
)

// IsReserved returns true if the key holds record metadata rather than a
// collected value
func IsReserved(key string) bool {
	return key == KeyTimestamp || key == KeyCollectionInterval || key == KeyHost
}

// Response is the reply of an input plugin to a collect request
// StatusCode is zero on success, and CollectedValues is nil if the plugin
// returned nothing
type Response struct {
	StatusCode      int    `json:"StatusCode"`
	CollectedValues Values `json:"Collected_Values,omitempty"`
}

// NewResponse returns a successful response carrying values
func NewResponse(values Values) *Response {
	if values == nil {
		values = Values{}
	}
	return &Response{CollectedValues: values}
}

// Record is the merged result of one collection interval. It encodes as a
// single flat JSON object of the collected values plus the metadata keys.
type Record struct {
	// Timestamp is the epoch second at the end of the interval
	Timestamp int64
	// Interval is the collection interval in seconds
	Interval int64
	Host     string
	Values   Values
}

// NewRecord creates an empty record
func NewRecord(timestamp int64, interval int64, host string) *Record {
	return &Record{
		Timestamp: timestamp,
		Interval:  interval,
		Host:      host,
		Values:    Values{},
	}
}

// Flatten returns the values together with the metadata keys
func (r *Record) Flatten() Values {
	ret := r.Values.Copy()
	ret[KeyTimestamp] = r.Timestamp
	ret[KeyCollectionInterval] = r.Interval
	ret[KeyHost] = r.Host
	return ret
}

// Copy returns a copy of the record that can be modified without affecting
// the original
func (r *Record) Copy() *Record {
	ret := *r
	ret.Values = r.Values.Copy()
	return &ret
}

// MarshalJSON encodes the flattened record
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

// UnmarshalJSON decodes a flattened record
func (r *Record) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var values Values
	if err := decoder.Decode(&values); err != nil {
		return err
	}
	NormalizeValues(values)

	timestamp, ok := values[KeyTimestamp].(int64)
	if !ok {
		return fmt.Errorf("record is missing %s", KeyTimestamp)
	}
	interval, _ := values[KeyCollectionInterval].(int64)
	host, _ := values[KeyHost].(string)

	delete(values, KeyTimestamp)
	delete(values, KeyCollectionInterval)
	delete(values, KeyHost)

	r.Timestamp = timestamp
	r.Interval = interval
	r.Host = host
	r.Values = values
	return nil
}
