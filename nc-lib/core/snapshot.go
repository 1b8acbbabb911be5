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

package core

// Snapshot is a named tree of status values
type Snapshot struct {
	Description string                 `json:"description"`
	Entries     map[string]interface{} `json:"entries,omitempty"`
	Subs        []*Snapshot            `json:"subs,omitempty"`
}

// NewSnapshot creates a new, empty, snapshot
func NewSnapshot(description string) *Snapshot {
	return &Snapshot{
		Description: description,
		Entries:     make(map[string]interface{}),
	}
}

// AddEntry sets a status value
func (s *Snapshot) AddEntry(name string, value interface{}) {
	s.Entries[name] = value
}

// AddSub adds a nested snapshot
func (s *Snapshot) AddSub(sub *Snapshot) {
	s.Subs = append(s.Subs, sub)
}

// Sub returns the first nested snapshot with the given description, or nil
func (s *Snapshot) Sub(description string) *Snapshot {
	for _, sub := range s.Subs {
		if sub.Description == description {
			return sub
		}
	}
	return nil
}
