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

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatEntry(t *testing.T) {
	assert.Equal(t, "never", formatEntry("Last Record Timestamp", float64(0)))
	assert.Equal(t, "1,234,567", formatEntry("Cycles", float64(1234567)))
	assert.Equal(t, "30s", formatEntry("Collection Interval", "30s"))

	past := float64(time.Now().Add(-3 * time.Hour).Unix())
	assert.Equal(t, "3 hours ago", formatEntry("Last Record Timestamp", past))
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"status", "plugins", "records", "reload", "token"} {
		cmd, _, err := root.Find([]string{name})
		if assert.NoError(t, err) {
			assert.Equal(t, name, cmd.Name())
		}
	}
}
