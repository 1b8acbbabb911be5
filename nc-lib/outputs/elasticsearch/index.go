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
	"errors"
	"strings"
	"time"
)

// indexPattern is an index name containing date placeholders of the form
// %{+layout}, where layout is a Go time layout applied to the record time in
// UTC
type indexPattern struct {
	parts   []string
	layouts []string
}

func parseIndexPattern(pattern string) (*indexPattern, error) {
	ret := &indexPattern{}
	rest := pattern
	for {
		start := strings.Index(rest, "%{")
		if start == -1 {
			ret.parts = append(ret.parts, rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			return nil, errors.New("has an unterminated %{ placeholder")
		}
		placeholder := rest[start+2 : start+end]
		if !strings.HasPrefix(placeholder, "+") || len(placeholder) == 1 {
			return nil, errors.New("placeholders must be a date layout such as %{+2006.01.02}")
		}
		ret.parts = append(ret.parts, rest[:start])
		ret.layouts = append(ret.layouts, placeholder[1:])
		rest = rest[start+end+1:]
	}

	if ret.parts[0] == "" && len(ret.layouts) != 0 {
		return nil, errors.New("must not start with a placeholder")
	}
	if strings.ToLower(pattern) != pattern {
		return nil, errors.New("must be lowercase")
	}
	return ret, nil
}

// Name returns the index name for the given time
func (p *indexPattern) Name(t time.Time) string {
	t = t.UTC()
	var builder strings.Builder
	for i, part := range p.parts {
		builder.WriteString(part)
		if i < len(p.layouts) {
			builder.WriteString(t.Format(p.layouts[i]))
		}
	}
	return builder.String()
}

// Wildcard returns an index pattern matching every index the pattern can
// produce
func (p *indexPattern) Wildcard() string {
	if len(p.layouts) == 0 {
		return p.parts[0]
	}
	return p.parts[0] + "*"
}
