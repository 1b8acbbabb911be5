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
	"os"
	"path/filepath"
	"testing"
	"time"
)

// resetSections clears registrations made by other tests, restoring only
// the general section
func resetSections() {
	general := registeredSections["general"]
	registeredSections = make(map[string]SectionCreator)
	registeredRootParts = make(map[string]SectionCreator)
	registeredSections["general"] = general
}

func writeTestFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test configuration: %s", err)
	}
	return path
}

type TestConfigFirst struct {
	Value string `config:"value"`
}

type TestConfigSecond struct {
	Value int `config:"value"`
}

func TestConfigMultipleSections(t *testing.T) {
	resetSections()
	RegisterSection("first", func() interface{} {
		return &TestConfigFirst{}
	})
	RegisterSection("second", func() interface{} {
		return &TestConfigSecond{Value: 7}
	})

	config, err := LoadFile(writeTestFile(t, "test.json", `{"first":{"value":"testing"}}`))
	if err != nil {
		t.Errorf("Failed to parse configuration: %s", err)
		t.FailNow()
	}

	valueFirst := config.Section("first").(*TestConfigFirst).Value
	if valueFirst != "testing" {
		t.Errorf("Expected 'testing' received: %s", valueFirst)
	}

	valueSecond := config.Section("second").(*TestConfigSecond).Value
	if valueSecond != 7 {
		t.Errorf("Expected default 7 received: %d", valueSecond)
	}

	if config.Section("missing") != nil {
		t.Errorf("Unregistered section returned a value")
	}
}

type TestConfigRootPart struct {
	Items []string `config:"items"`
}

func TestConfigRootPartItems(t *testing.T) {
	resetSections()
	RegisterRootPart("items", func() interface{} {
		return &TestConfigRootPart{}
	})

	config, err := LoadFile(writeTestFile(t, "test.yaml", "items:\n  - a\n  - b\n"))
	if err != nil {
		t.Errorf("Failed to parse configuration: %s", err)
		t.FailNow()
	}

	items := config.RootPart("items").(*TestConfigRootPart).Items
	if len(items) != 2 || items[0] != "a" || items[1] != "b" {
		t.Errorf("Unexpected items: %v", items)
	}
}

func TestConfigUnknownTopLevel(t *testing.T) {
	resetSections()

	_, err := LoadFile(writeTestFile(t, "test.yaml", "genral:\n  host: x\n"))
	if err == nil || err.Error() != "Option /genral is not available" {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestConfigGeneralDefaults(t *testing.T) {
	resetSections()

	config, err := LoadFile(writeTestFile(t, "test.yaml", "general:\n  host: db1\n"))
	if err != nil {
		t.Errorf("Failed to parse configuration: %s", err)
		t.FailNow()
	}

	general := config.General()
	if general.Host != "db1" {
		t.Errorf("Unexpected host: %s", general.Host)
	}
	if general.CollectionInterval != 30*time.Second {
		t.Errorf("Unexpected collection interval: %s", general.CollectionInterval)
	}
	if general.PluginTimeout != 5*time.Second || general.ShutdownTimeout != 5*time.Second {
		t.Errorf("Unexpected timeouts: %s %s", general.PluginTimeout, general.ShutdownTimeout)
	}
	if general.SelfTestLoops != 5 {
		t.Errorf("Unexpected self test loops: %d", general.SelfTestLoops)
	}
	if general.TmpDirectory != "/tmp/nuoca" {
		t.Errorf("Unexpected tmp directory: %s", general.TmpDirectory)
	}
	if general.IntervalSeconds() != 30 {
		t.Errorf("Unexpected interval seconds: %d", general.IntervalSeconds())
	}
}

func TestConfigGeneralValidation(t *testing.T) {
	cases := map[string]string{
		"general:\n  collection interval: 0\n":      "/general/collection interval must be at least 1s",
		"general:\n  collection interval: 1.5\n":    "/general/collection interval must be a whole number of seconds",
		"general:\n  self test loops: 0\n":          "/general/self test loops must be at least 1",
		"general:\n  plugin timeout: -1\n":          "/general/plugin timeout must be greater than 0",
		"general:\n  collection interval: never\n":  "",
		"general:\n  start time: -5\n":              "/general/start time must be an epoch time in seconds",
	}

	for content, expected := range cases {
		resetSections()
		_, err := LoadFile(writeTestFile(t, "test.yaml", content))
		if err == nil {
			t.Errorf("Configuration %q succeeded unexpectedly", content)
			continue
		}
		if expected != "" && err.Error() != expected {
			t.Errorf("Unexpected error for %q: %s", content, err)
		}
	}
}

func TestConfigEnvironmentExpansion(t *testing.T) {
	resetSections()
	t.Setenv("NUOCA_TEST_HOST", "expanded")

	config, err := LoadFile(writeTestFile(t, "test.json", `{"general":{"host":"${NUOCA_TEST_HOST}"}}`))
	if err != nil {
		t.Errorf("Failed to parse configuration: %s", err)
		t.FailNow()
	}
	if config.General().Host != "expanded" {
		t.Errorf("Unexpected host: %s", config.General().Host)
	}
}

func TestConfigEnvFile(t *testing.T) {
	resetSections()
	os.Unsetenv("NUOCA_TEST_FROM_FILE")
	t.Cleanup(func() { os.Unsetenv("NUOCA_TEST_FROM_FILE") })

	if err := LoadEnvFile(writeTestFile(t, "test.env", "NUOCA_TEST_FROM_FILE=fromfile\n")); err != nil {
		t.Errorf("Failed to load environment file: %s", err)
		t.FailNow()
	}

	config, err := LoadFile(writeTestFile(t, "test.yaml", "general:\n  host: ${NUOCA_TEST_FROM_FILE}\n"))
	if err != nil {
		t.Errorf("Failed to parse configuration: %s", err)
		t.FailNow()
	}
	if config.General().Host != "fromfile" {
		t.Errorf("Unexpected host: %s", config.General().Host)
	}
}

func TestConfigUnknownExtension(t *testing.T) {
	resetSections()
	if _, err := LoadFile(writeTestFile(t, "test.ini", "host=x")); err == nil {
		t.Errorf("Unknown extension succeeded unexpectedly")
	}
}

func TestConfigJSONComments(t *testing.T) {
	stripped := string(stripComments([]byte("{\n# comment\n\"a\": \"#not/*\", /* block */ \"b\": 1/2\n}")))
	expected := "{\n\n\"a\": \"#not/*\",  \"b\": 1/2\n}"
	if stripped != expected {
		t.Errorf("Unexpected stripped output:\n%s\nExpected:\n%s", stripped, expected)
	}
}

func TestConfigJSONSyntaxError(t *testing.T) {
	resetSections()
	_, err := LoadFile(writeTestFile(t, "test.json", "{\n\"general\": {,}\n}"))
	if err == nil {
		t.Errorf("Invalid JSON succeeded unexpectedly")
	}
}
