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
	"reflect"
	"testing"
	"time"

	"gopkg.in/op/go-logging.v1"
)

type TestParserFixture struct {
	Value        string
	ValueWithKey int `config:"keyed"`
}

func TestParserPopulateStruct(t *testing.T) {
	parser := NewParser(nil)

	input := map[string]interface{}{
		"keyed": 678,
	}

	item := &TestParserFixture{}
	err := parser.Populate(item, input, "/", false)
	if err != nil {
		t.Errorf("Parsing failed unexpectedly: %s", err)
		t.FailNow()
	}

	if item.Value != "" {
		t.Errorf("Unexpected parse of unkeyed Value property: %s", item.Value)
	}
	if item.ValueWithKey != 678 {
		t.Errorf("Unexpected value of ValueWithKey property: %d", item.ValueWithKey)
	}
}

func TestParserPopulateReportUnused(t *testing.T) {
	parser := NewParser(nil)

	input := map[string]interface{}{
		"unused": 123,
		"keyed":  678,
	}

	item := &TestParserFixture{}
	err := parser.Populate(item, input, "/", true)
	if err == nil {
		t.Errorf("Parsing with unused succeeded unexpectedly")
		t.FailNow()
	}
	if err.Error() != "Option /unused is not available" {
		t.Errorf("Unexpected error: %s", err)
	}

	// Consumed entries are removed from the input
	if _, ok := input["keyed"]; ok {
		t.Errorf("Parsing did not remove used value from map")
	}
	if _, ok := input["unused"]; !ok {
		t.Errorf("Parsing removed unexpected value from map")
	}
}

type TestParserUnusedFixture struct {
	Name   string `config:"name"`
	Unused map[string]interface{}
}

func TestParserPopulateUnusedField(t *testing.T) {
	parser := NewParser(nil)

	input := map[string]interface{}{
		"name":  "counter",
		"start": 10,
	}

	item := &TestParserUnusedFixture{}
	if err := parser.Populate(item, input, "/", true); err != nil {
		t.Errorf("Parsing failed unexpectedly: %s", err)
		t.FailNow()
	}

	if item.Name != "counter" {
		t.Errorf("Unexpected name: %s", item.Name)
	}
	if item.Unused["start"] != 10 {
		t.Errorf("Unused entry was not stored: %v", item.Unused)
	}
	if len(input) != 0 {
		t.Errorf("Unused entries were left in the input: %v", input)
	}
}

var TestParserCallbacksCalled []string

type TestParserCallbacksFixture struct {
	ValueWithKey int `config:"keyed"`
	DefaultsTest int
	InitTest     int
	ValidateTest int
}

func (f *TestParserCallbacksFixture) Defaults() {
	f.DefaultsTest = 3
	TestParserCallbacksCalled = append(TestParserCallbacksCalled, "defaults")
}

func (f *TestParserCallbacksFixture) Init(p *Parser, path string) error {
	f.InitTest = 2
	TestParserCallbacksCalled = append(TestParserCallbacksCalled, "init")
	return nil
}

func (f *TestParserCallbacksFixture) Validate(p *Parser, path string) error {
	f.ValidateTest = 1
	TestParserCallbacksCalled = append(TestParserCallbacksCalled, "validate")
	return nil
}

func TestParserPopulateStructCallbacks(t *testing.T) {
	parser := NewParser(nil)
	TestParserCallbacksCalled = nil

	item := &TestParserCallbacksFixture{}
	err := parser.Populate(item, map[string]interface{}{"keyed": 678}, "/", false)
	if err != nil {
		t.Errorf("Parsing failed unexpectedly: %s", err)
		t.FailNow()
	}

	if err = parser.validate(); err != nil {
		t.Errorf("Unexpected validation error: %s", err)
	}

	expected := []string{"defaults", "init", "validate"}
	if !reflect.DeepEqual(TestParserCallbacksCalled, expected) {
		t.Errorf("Unexpected or missing callback; Expected: %v Received: %v", expected, TestParserCallbacksCalled)
	}
	if item.DefaultsTest != 3 || item.InitTest != 2 || item.ValidateTest != 1 {
		t.Errorf("Assignment from callbacks did not persist: %+v", item)
	}
}

type TestParserTypesFixture struct {
	Interval time.Duration          `config:"interval"`
	Level    logging.Level          `config:"level"`
	Count    int64                  `config:"count"`
	Ratio    float64                `config:"ratio"`
	Enabled  bool                   `config:"enabled"`
	Fields   map[string]interface{} `config:"fields"`
	Names    []string               `config:"names"`
	Optional *int                   `config:"optional"`
}

func TestParserPopulateTypes(t *testing.T) {
	parser := NewParser(nil)

	input := map[string]interface{}{
		"interval": 30,
		"level":    "debug",
		"count":    float64(12),
		"ratio":    2,
		"enabled":  true,
		"fields":   map[interface{}]interface{}{"a": 1},
		"names":    []interface{}{"one", "two"},
		"optional": 5,
	}

	item := &TestParserTypesFixture{}
	if err := parser.Populate(item, input, "/", true); err != nil {
		t.Errorf("Parsing failed unexpectedly: %s", err)
		t.FailNow()
	}

	if item.Interval != 30*time.Second {
		t.Errorf("Unexpected interval: %s", item.Interval)
	}
	if item.Level != logging.DEBUG {
		t.Errorf("Unexpected level: %s", item.Level)
	}
	if item.Count != 12 {
		t.Errorf("Unexpected count: %d", item.Count)
	}
	if item.Ratio != 2.0 {
		t.Errorf("Unexpected ratio: %f", item.Ratio)
	}
	if !item.Enabled {
		t.Errorf("Enabled was not set")
	}
	if item.Fields["a"] != 1 {
		t.Errorf("Unexpected fields: %v", item.Fields)
	}
	if !reflect.DeepEqual(item.Names, []string{"one", "two"}) {
		t.Errorf("Unexpected names: %v", item.Names)
	}
	if item.Optional == nil || *item.Optional != 5 {
		t.Errorf("Unexpected optional: %v", item.Optional)
	}
}

func TestParserPopulateDurationString(t *testing.T) {
	parser := NewParser(nil)

	item := &TestParserTypesFixture{}
	if err := parser.Populate(item, map[string]interface{}{"interval": "1m30s"}, "/", true); err != nil {
		t.Errorf("Parsing failed unexpectedly: %s", err)
		t.FailNow()
	}
	if item.Interval != 90*time.Second {
		t.Errorf("Unexpected interval: %s", item.Interval)
	}

	err := parser.Populate(&TestParserTypesFixture{}, map[string]interface{}{"interval": "soon"}, "/", true)
	if err == nil {
		t.Errorf("Parsing of invalid duration succeeded unexpectedly")
	}
}

func TestParserPopulateInvalidTypes(t *testing.T) {
	cases := []map[string]interface{}{
		{"count": 1.5},
		{"enabled": "yes"},
		{"names": "one"},
		{"level": "chatty"},
		{"fields": []interface{}{1}},
	}

	for _, input := range cases {
		parser := NewParser(nil)
		if err := parser.Populate(&TestParserTypesFixture{}, input, "/", true); err == nil {
			t.Errorf("Parsing of %v succeeded unexpectedly", input)
		}
	}
}

type TestParserSliceItem struct {
	Name string `config:"name"`
}

type TestParserSliceFixture struct {
	Items []TestParserSliceItem `config:"items"`
}

func TestParserPopulateSliceOfStruct(t *testing.T) {
	parser := NewParser(nil)

	input := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "first"},
			map[interface{}]interface{}{"name": "second"},
		},
	}

	item := &TestParserSliceFixture{}
	if err := parser.Populate(item, input, "/", true); err != nil {
		t.Errorf("Parsing failed unexpectedly: %s", err)
		t.FailNow()
	}

	if len(item.Items) != 2 || item.Items[0].Name != "first" || item.Items[1].Name != "second" {
		t.Errorf("Unexpected items: %v", item.Items)
	}

	err := NewParser(nil).Populate(&TestParserSliceFixture{}, map[string]interface{}{
		"items": []interface{}{map[string]interface{}{"nmae": "typo"}},
	}, "/", true)
	if err == nil || err.Error() != "Option /items[0]/nmae is not available" {
		t.Errorf("Unexpected error for typo: %v", err)
	}
}

func TestParserFixMapKeys(t *testing.T) {
	parser := NewParser(nil)

	input := map[string]interface{}{
		"nested": map[interface{}]interface{}{
			"inner": []interface{}{map[interface{}]interface{}{"deep": 1}},
		},
	}
	if err := parser.FixMapKeys("/fields", input); err != nil {
		t.Errorf("Unexpected error: %s", err)
		t.FailNow()
	}

	nested, ok := input["nested"].(map[string]interface{})
	if !ok {
		t.Errorf("Nested map was not converted: %T", input["nested"])
		t.FailNow()
	}
	if _, ok := nested["inner"].([]interface{})[0].(map[string]interface{}); !ok {
		t.Errorf("Map within slice was not converted")
	}

	err := parser.FixMapKeys("/fields", map[string]interface{}{
		"bad": map[interface{}]interface{}{1: "one"},
	})
	if err == nil {
		t.Errorf("Non-string key was accepted unexpectedly")
	}
}
