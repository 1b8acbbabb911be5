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
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

// Parser holds the parsing state for configuration population
type Parser struct {
	cfg         *Config
	validations []validation
}

type validation struct {
	fn   reflect.Value
	path string
}

// NewParser returns a new parser for the given configuration structure
func NewParser(cfg *Config) *Parser {
	return &Parser{cfg: cfg}
}

// parseConfiguration populates cfg from rawConfig and runs all validations
func parseConfiguration(cfg *Config, rawConfig interface{}, reportUnused bool) error {
	p := NewParser(cfg)
	if err := p.Populate(cfg, rawConfig, "/", reportUnused); err != nil {
		return err
	}

	err := p.validate()
	if log.IsEnabledFor(logging.DEBUG) {
		if rendered, renderErr := json.MarshalIndent(cfg, "", "\t"); renderErr == nil {
			log.Debugf("Final configuration: %s", rendered)
		}
	}
	return err
}

// Config returns the root Config currently being parsed
func (p *Parser) Config() *Config {
	return p.cfg
}

// Populate fills the structure pointed to by config from rawConfig
//
// Each structure field with a `config:"name"` tag reads the entry of that name.
// Entries are removed from rawConfig as they are consumed, so that anything
// remaining was not understood. Remaining entries move to an "Unused" map
// field if the structure has one, otherwise they are reported as errors when
// reportUnused is set.
//
// Structures may implement Defaults(), Init(*Parser, string) error and
// Validate(*Parser, string) error. Validate calls are deferred until the whole
// configuration is populated.
func (p *Parser) Populate(config interface{}, rawConfig interface{}, configPath string, reportUnused bool) error {
	return p.populateStruct(reflect.ValueOf(config), reflect.ValueOf(rawConfig), configPath, reportUnused)
}

// validate calls all queued validations, repeating if validation triggered
// further population
func (p *Parser) validate() error {
	for len(p.validations) != 0 {
		pending := p.validations
		p.validations = nil

		for _, v := range pending {
			log.Debugf("Calling validation: %s", v.path)
			if err := callLifecycle(v.fn, p, v.path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Parser) populateStruct(vConfig reflect.Value, vRawConfig reflect.Value, configPath string, reportUnused bool) error {
	log.Debugf("populateStruct: %s (%s)", vConfig.Type().String(), configPath)

	p.prepareValue(vConfig, configPath)

	if err := p.populateFields(vConfig, vRawConfig, configPath); err != nil {
		return err
	}

	if err := p.callInit(vConfig, configPath); err != nil {
		return err
	}

	if reportUnused {
		return p.reportUnusedConfig(vRawConfig, configPath)
	}
	return nil
}

// populateFields walks the fields of a structure and fills them
func (p *Parser) populateFields(vConfig reflect.Value, vRawConfig reflect.Value, configPath string) error {
	for vConfig.Kind() == reflect.Ptr {
		vConfig = vConfig.Elem()
	}
	if vConfig.Kind() != reflect.Struct {
		panic(fmt.Sprintf("Object passed to populateStruct is not a struct: %s", vConfig.Kind().String()))
	}

	if vRawConfig.IsValid() && vRawConfig.Kind() != reflect.Map {
		return fmt.Errorf("Option %s must be a hash", configPath)
	}

	for i := 0; i < vConfig.NumField(); i++ {
		vField := vConfig.Field(i)
		if !vField.CanSet() {
			continue
		}

		tag, mods := splitTag(vConfig.Type().Field(i).Tag.Get("config"))

		switch {
		case mods["embed"]:
			if vField.Kind() != reflect.Struct {
				panic(fmt.Sprintf("Embedded configuration field is not a struct: %s", vField.Kind().String()))
			}
			if err := p.populateStruct(vField.Addr(), vRawConfig, configPath, false); err != nil {
				return err
			}
		case mods["dynamic"]:
			if vField.Kind() != reflect.Map {
				panic(fmt.Sprintf("Dynamic configuration field is not a map: %s", vField.Kind().String()))
			}
			for _, key := range vField.MapKeys() {
				retValue, err := p.populateEntry(vField.MapIndex(key).Elem(), vRawConfig, configPath, key.String())
				if err != nil {
					return err
				}
				if retValue.IsValid() {
					vField.SetMapIndex(key, retValue)
				}
			}
		case mods["embed_dynamic"]:
			if vField.Kind() != reflect.Map {
				panic(fmt.Sprintf("Embedded dynamic configuration field is not a map: %s", vField.Kind().String()))
			}
			for _, key := range vField.MapKeys() {
				if err := p.populateStruct(vField.MapIndex(key).Elem(), vRawConfig, configPath, false); err != nil {
					return err
				}
			}
		case tag != "":
			retValue, err := p.populateEntry(vField, vRawConfig, configPath, tag)
			if err != nil {
				return err
			}
			if retValue.IsValid() {
				vField.Set(retValue)
			}
		}
	}

	p.moveUnused(vConfig, vRawConfig, configPath)
	return nil
}

// moveUnused stores any remaining configuration entries in the "Unused" field
// of the structure, if it has one, so that they can be handed to a plugin
// selected by another value
func (p *Parser) moveUnused(vConfig reflect.Value, vRawConfig reflect.Value, configPath string) {
	unUsed := vConfig.FieldByName("Unused")
	if !unUsed.IsValid() {
		return
	}

	log.Debugf("Saving unused configuration entries: %s", configPath)
	if unUsed.IsNil() {
		unUsed.Set(reflect.MakeMap(unUsed.Type()))
	}
	if !vRawConfig.IsValid() {
		return
	}

	for _, vKey := range vRawConfig.MapKeys() {
		vValue := vRawConfig.MapIndex(vKey)
		vKey = unwrap(vKey)
		unUsed.SetMapIndex(reflect.ValueOf(fmt.Sprint(vKey.Interface())), vValue)
		vRawConfig.SetMapIndex(vKey, reflect.Value{})
	}
}

// takeEntry returns the raw value for tag and removes it from the raw map
func (p *Parser) takeEntry(vRawConfig reflect.Value, tag string) reflect.Value {
	if !vRawConfig.IsValid() {
		// No configuration data here, we are only recursing to apply defaults
		return vRawConfig
	}

	vTag := reflect.ValueOf(tag)
	vEntry := unwrap(vRawConfig.MapIndex(vTag))
	vRawConfig.SetMapIndex(vTag, reflect.Value{})
	return vEntry
}

// populateEntry handles a single configuration entry, returning the value to
// store, or the zero Value if the configuration did not provide one
func (p *Parser) populateEntry(vField reflect.Value, vRawConfig reflect.Value, configPath string, tag string) (reflect.Value, error) {
	log.Debugf("populateEntry: %s (%s%s)", vField.Type().String(), configPath, tag)

	// Pointers to scalars are populated through their element, pointers to
	// structures are kept so that lifecycle methods on the pointer are found
	if vField.Kind() == reflect.Ptr && vField.Type().Elem().Kind() != reflect.Struct {
		if vField.IsNil() {
			vField = reflect.New(vField.Type().Elem())
		}
		inner, err := p.populateEntry(vField.Elem(), vRawConfig, configPath, tag)
		if err != nil || !inner.IsValid() {
			return inner, err
		}
		ret := reflect.New(inner.Type())
		ret.Elem().Set(inner)
		return ret, nil
	}

	vEntry := vRawConfig
	if tag != "" {
		vEntry = p.takeEntry(vRawConfig, tag)
	}
	entryPath := configPath + tag

	switch {
	case vField.Kind() == reflect.Struct:
		ptr := reflect.New(vField.Type())
		ptr.Elem().Set(vField)
		if err := p.populateStruct(ptr, vEntry, entryPath+"/", true); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	case vField.Kind() == reflect.Ptr:
		ptr := vField
		if ptr.IsNil() {
			ptr = reflect.New(vField.Type().Elem())
		}
		if err := p.populateStruct(ptr, vEntry, entryPath+"/", true); err != nil {
			return reflect.Value{}, err
		}
		return ptr, nil
	case vField.Kind() == reflect.Slice && vField.Type().Elem().Kind() != reflect.Uint8:
		return p.populateSlice(vField, vEntry, entryPath)
	}

	// Nothing provided, leave the default
	if !vEntry.IsValid() {
		return reflect.Value{}, nil
	}

	if converter, ok := converters[vField.Type().String()]; ok {
		return converter(vEntry, entryPath)
	}

	if vEntry.Type().AssignableTo(vField.Type()) {
		log.Debugf("populateEntry value: %v (%s)", vEntry.Interface(), entryPath)
		return vEntry, nil
	}

	switch vField.Kind() {
	case reflect.Map:
		return p.populateMap(vField, vEntry, entryPath)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		number, err := convertInteger(vEntry, entryPath)
		if err != nil {
			return reflect.Value{}, err
		}
		return number.Convert(vField.Type()), nil
	case reflect.Float32, reflect.Float64:
		number, err := convertFloat(vEntry, entryPath)
		if err != nil {
			return reflect.Value{}, err
		}
		return number.Convert(vField.Type()), nil
	case reflect.String:
		return reflect.Value{}, fmt.Errorf("Option %s must be a string", entryPath)
	case reflect.Bool:
		return reflect.Value{}, fmt.Errorf("Option %s must be a boolean", entryPath)
	}

	panic(fmt.Sprintf("Unrecognised configuration structure encountered: %s (Kind: %s)", vField.Type().Name(), vField.Kind().String()))
}

// populateMap copies a key-value hash into a typed map
func (p *Parser) populateMap(vField reflect.Value, vEntry reflect.Value, entryPath string) (reflect.Value, error) {
	if vEntry.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("Option %s must be a key-value hash", entryPath)
	}

	retValue := reflect.MakeMapWithSize(vField.Type(), vEntry.Len())
	for _, vKey := range vEntry.MapKeys() {
		vItem := unwrap(vEntry.MapIndex(vKey))
		vKey = unwrap(vKey)
		if vKey.Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("Option %s has an invalid non-string key: %v", entryPath, vKey.Interface())
		}

		if !vItem.IsValid() {
			if vField.Type().Elem().Kind() != reflect.Interface {
				return reflect.Value{}, fmt.Errorf("Option %s/%s must be %s or similar", entryPath, vKey.String(), vField.Type().Elem())
			}
			retValue.SetMapIndex(vKey, reflect.Zero(vField.Type().Elem()))
			continue
		}
		if !vItem.Type().AssignableTo(vField.Type().Elem()) {
			return reflect.Value{}, fmt.Errorf("Option %s/%s must be %s or similar", entryPath, vKey.String(), vField.Type().Elem())
		}

		log.Debugf("populateEntry value: map[%s][%v] (%s)", vKey.String(), vItem.Interface(), entryPath)
		retValue.SetMapIndex(vKey, vItem)
	}
	return retValue, nil
}

// populateSlice populates a slice from an array in the configuration
func (p *Parser) populateSlice(vSlice reflect.Value, vRawConfig reflect.Value, configPath string) (reflect.Value, error) {
	log.Debugf("populateSlice: %s (%s)", vSlice.Type().String(), configPath)

	if vRawConfig.IsValid() && vRawConfig.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("Option %s must be an array", configPath)
	}

	p.prepareValue(vSlice, configPath)

	if vRawConfig.IsValid() {
		// Configuration replaces any default entries
		vSlice = reflect.MakeSlice(vSlice.Type(), 0, vRawConfig.Len())
		for i := 0; i < vRawConfig.Len(); i++ {
			vItem := reflect.New(vSlice.Type().Elem()).Elem()
			retValue, err := p.populateEntry(vItem, unwrap(vRawConfig.Index(i)), fmt.Sprintf("%s[%d]", configPath, i), "")
			if err != nil {
				return reflect.Value{}, err
			}
			if !retValue.IsValid() {
				return reflect.Value{}, fmt.Errorf("Option %s[%d] must not be empty", configPath, i)
			}
			vSlice = reflect.Append(vSlice, retValue)
		}
	} else if vSlice.IsNil() {
		vSlice = reflect.MakeSlice(vSlice.Type(), 0, 0)
	}

	if err := p.callInit(vSlice, configPath); err != nil {
		return reflect.Value{}, err
	}

	return vSlice, nil
}

// prepareValue calls Defaults, if present, and queues Validate, if present
func (p *Parser) prepareValue(value reflect.Value, configPath string) {
	if defaultsFunc := value.MethodByName("Defaults"); defaultsFunc.IsValid() {
		log.Debugf("Initialising defaults: %s (%s)", value.Type().String(), configPath)
		defaultsFunc.Call(nil)
	}

	if validateFunc := value.MethodByName("Validate"); validateFunc.IsValid() {
		log.Debugf("Registering validation: %s (%s)", value.Type().String(), configPath)
		p.validations = append(p.validations, validation{fn: validateFunc, path: configPath})
	}
}

// callInit calls the Init lifecycle method, if any, which usually consumes
// the Unused entries by selecting a factory based on other values
func (p *Parser) callInit(value reflect.Value, configPath string) error {
	initFunc := value.MethodByName("Init")
	if !initFunc.IsValid() {
		return nil
	}

	log.Debugf("Calling initialisation: %s (%s)", value.Type().String(), configPath)
	return callLifecycle(initFunc, p, configPath)
}

// ReportUnusedConfig returns an error if the given configuration map still
// contains entries after population
func (p *Parser) ReportUnusedConfig(rawConfig map[string]interface{}, configPath string) error {
	return p.reportUnusedConfig(reflect.ValueOf(rawConfig), configPath)
}

func (p *Parser) reportUnusedConfig(vRawConfig reflect.Value, configPath string) error {
	if !vRawConfig.IsValid() {
		return nil
	}

	for _, vKey := range vRawConfig.MapKeys() {
		return fmt.Errorf("Option %s%v is not available", configPath, unwrap(vKey).Interface())
	}
	return nil
}

// FixMapKeys converts nested map[interface{}]interface{} values, as produced
// by the YAML decoder, into map[string]interface{} so that they can be
// encoded as JSON. Any non-string key is an error.
func (p *Parser) FixMapKeys(path string, value map[string]interface{}) error {
	for k, v := range value {
		fixed, err := fixValue(path+"/"+k, v)
		if err != nil {
			return err
		}
		value[k] = fixed
	}
	return nil
}

func fixValue(path string, value interface{}) (interface{}, error) {
	switch vt := value.(type) {
	case map[string]interface{}:
		for k, v := range vt {
			fixed, err := fixValue(path+"/"+k, v)
			if err != nil {
				return nil, err
			}
			vt[k] = fixed
		}
		return vt, nil
	case map[interface{}]interface{}:
		fixedMap := make(map[string]interface{}, len(vt))
		for k, v := range vt {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("Invalid non-string key at %s", path)
			}
			fixed, err := fixValue(path+"/"+ks, v)
			if err != nil {
				return nil, err
			}
			fixedMap[ks] = fixed
		}
		return fixedMap, nil
	case []interface{}:
		for i, v := range vt {
			fixed, err := fixValue(fmt.Sprintf("%s[%d]", path, i), v)
			if err != nil {
				return nil, err
			}
			vt[i] = fixed
		}
		return vt, nil
	}
	return value, nil
}

func callLifecycle(fn reflect.Value, p *Parser, configPath string) error {
	result := fn.Call([]reflect.Value{reflect.ValueOf(p), reflect.ValueOf(configPath)})
	if err := result[0].Interface(); err != nil {
		return err.(error)
	}
	return nil
}

// splitTag splits a config tag into the entry name and its modifiers
func splitTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	mods := make(map[string]bool, len(parts)-1)
	for _, mod := range parts[1:] {
		mods[mod] = true
	}
	return parts[0], mods
}

// unwrap removes the interface{} wrapper from a reflected map key or value
func unwrap(v reflect.Value) reflect.Value {
	if v.IsValid() && v.Kind() == reflect.Interface {
		return v.Elem()
	}
	return v
}
