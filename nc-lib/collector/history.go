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

package collector

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/nuodb/nuoca/nc-lib/metrics"
)

// History keeps the most recent records, oldest evicted first
type History struct {
	cache *lru.Cache
}

// NewHistory creates a history holding up to size records
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &History{cache: cache}
}

// Add stores a record, replacing any earlier record with the same timestamp
func (h *History) Add(record *metrics.Record) {
	h.cache.Add(record.Timestamp, record)
}

// Records returns up to n of the most recent records, oldest first. A
// non-positive n returns all of them.
func (h *History) Records(n int) []*metrics.Record {
	keys := h.cache.Keys()
	if n > 0 && len(keys) > n {
		keys = keys[len(keys)-n:]
	}
	ret := make([]*metrics.Record, 0, len(keys))
	for _, key := range keys {
		if value, ok := h.cache.Peek(key); ok {
			ret = append(ret, value.(*metrics.Record))
		}
	}
	return ret
}

// Latest returns the most recent record, or nil if there is none
func (h *History) Latest() *metrics.Record {
	records := h.Records(1)
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

// Resize changes the number of records kept
func (h *History) Resize(size int) {
	if size < 1 {
		size = 1
	}
	h.cache.Resize(size)
}
