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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// comment stripping states
const (
	stateBody = iota
	stateDoubleQuote
	stateSingleQuote
	stateLineComment
	stateSlash
	stateDoubleEscape
	stateSingleEscape
	stateBlockComment
	stateBlockStar
)

// stripComments removes # line comments and /* */ block comments from JSON
// data while leaving quoted strings intact
func stripComments(data []byte) []byte {
	stripped := new(bytes.Buffer)
	state, start := stateBody, 0

	for p := 0; p < len(data); p++ {
		b := data[p]
		switch state {
		case stateBody:
			switch b {
			case '"':
				state = stateDoubleQuote
			case '\'':
				state = stateSingleQuote
			case '#':
				state = stateLineComment
				stripped.Write(data[start:p])
			case '/':
				state = stateSlash
			}
		case stateDoubleQuote:
			if b == '\\' {
				state = stateDoubleEscape
			} else if b == '"' {
				state = stateBody
			}
		case stateSingleQuote:
			if b == '\\' {
				state = stateSingleEscape
			} else if b == '\'' {
				state = stateBody
			}
		case stateLineComment:
			if b == '\r' || b == '\n' {
				state = stateBody
				start = p + 1
			}
		case stateSlash:
			if b == '*' {
				state = stateBlockComment
				stripped.Write(data[start : p-1])
			} else {
				// Not a comment, so look at this byte again as body
				state = stateBody
				p--
			}
		case stateDoubleEscape:
			state = stateDoubleQuote
		case stateSingleEscape:
			state = stateSingleQuote
		case stateBlockComment:
			if b == '*' {
				state = stateBlockStar
			}
		case stateBlockStar:
			if b == '/' {
				state = stateBody
				start = p + 1
			} else if b != '*' {
				state = stateBlockComment
			}
		}
	}

	if state != stateLineComment && state != stateBlockComment && state != stateBlockStar {
		stripped.Write(data[start:])
	}

	return stripped.Bytes()
}

// loadJSON decodes JSON configuration data, after stripping comments, into
// rawConfig
func loadJSON(data []byte, rawConfig interface{}) error {
	stripped := stripComments(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return fmt.Errorf("Empty configuration file")
	}

	if err := json.Unmarshal(stripped, rawConfig); err != nil {
		return parseJSONSyntaxError(stripped, err)
	}

	return nil
}

// parseJSONSyntaxError turns a JSON syntax error into a message that shows
// the offending line with a marker under the failing position
func parseJSONSyntaxError(js []byte, err error) error {
	jsonErr, ok := err.(*json.SyntaxError)
	if !ok {
		return err
	}

	start := bytes.LastIndex(js[:jsonErr.Offset], []byte("\n")) + 1
	end := bytes.Index(js[start:], []byte("\n"))
	if end >= 0 {
		end += start
	} else {
		end = len(js)
	}

	line, pos := bytes.Count(js[:start], []byte("\n")), int(jsonErr.Offset)-start-1

	posStr := ""
	if pos > 0 {
		posStr = strings.Repeat(" ", pos)
	}

	return fmt.Errorf("json: %s on line %d\n%s\n%s^", err, line, js[start:end], posStr)
}
