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
	"fmt"
	"math"
	"reflect"
	"time"

	"gopkg.in/op/go-logging.v1"
)

type converter func(vEntry reflect.Value, entryPath string) (reflect.Value, error)

// converters handle field types that need more than a plain assignment,
// keyed by the field type's string form
var converters = map[string]converter{
	"time.Duration": convertDuration,
	"logging.Level": convertLevel,
}

// convertDuration accepts a Go duration string such as "30s", or a number of
// seconds
func convertDuration(vEntry reflect.Value, entryPath string) (reflect.Value, error) {
	switch vEntry.Kind() {
	case reflect.String:
		duration, err := time.ParseDuration(vEntry.String())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("Option %s is not a valid duration: %s", entryPath, err)
		}
		return reflect.ValueOf(duration), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(time.Duration(vEntry.Int()) * time.Second), nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(time.Duration(vEntry.Float() * float64(time.Second))), nil
	}
	return reflect.Value{}, fmt.Errorf("Option %s is not a valid duration", entryPath)
}

func convertLevel(vEntry reflect.Value, entryPath string) (reflect.Value, error) {
	if vEntry.Kind() != reflect.String {
		return reflect.Value{}, fmt.Errorf("Option %s is not a valid log level", entryPath)
	}
	level, err := logging.LogLevel(vEntry.String())
	if err != nil {
		return reflect.Value{}, fmt.Errorf("Option %s is not a valid log level (%s)", entryPath, vEntry.String())
	}
	return reflect.ValueOf(level), nil
}

// convertInteger returns an int64 Value. JSON delivers every number as a
// float64, so whole floats are accepted.
func convertInteger(vEntry reflect.Value, entryPath string) (reflect.Value, error) {
	switch vEntry.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(vEntry.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(int64(vEntry.Uint())), nil
	case reflect.Float32, reflect.Float64:
		f := vEntry.Float()
		if f == math.Trunc(f) {
			return reflect.ValueOf(int64(f)), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("Option %s is not a valid integer", entryPath)
}

func convertFloat(vEntry reflect.Value, entryPath string) (reflect.Value, error) {
	switch vEntry.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(float64(vEntry.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(float64(vEntry.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(vEntry.Float()), nil
	}
	return reflect.Value{}, fmt.Errorf("Option %s is not a valid number", entryPath)
}
