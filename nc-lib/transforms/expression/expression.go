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

// Package expression provides a transform that sets values from CEL
// expressions evaluated against the record
package expression

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	celext "github.com/google/cel-go/ext"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("expression")

var celEnv *cel.Env

// Field is a value to set from an expression
type Field struct {
	Field      string `config:"field" validate:"required"`
	Expression string `config:"expression" validate:"required"`

	program cel.Program
}

// Factory holds the configuration of an expression transform
type Factory struct {
	Fields []Field `config:"fields" validate:"min=1,dive"`
}

// NewFactory parses the configuration of an expression transform
func NewFactory(p *config.Parser, configPath string, unUsed map[string]interface{}, name string) (plugins.TransformFactory, error) {
	ret := &Factory{}
	if err := p.Populate(ret, unUsed, configPath, true); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate the configuration and compile the expressions
func (f *Factory) Validate(p *config.Parser, configPath string) error {
	if err := config.ValidateStruct(configPath, f); err != nil {
		return err
	}

	for n := range f.Fields {
		if metrics.IsReserved(f.Fields[n].Field) {
			return fmt.Errorf("%sfields[%d]/field cannot be the reserved key %s", configPath, n, f.Fields[n].Field)
		}

		program, err := ParseExpression(f.Fields[n].Expression)
		if err != nil {
			return fmt.Errorf("%sfields[%d]/expression failed to compile: %s", configPath, n, err)
		}
		f.Fields[n].program = program
	}
	return nil
}

// NewTransform creates a new expression transform
func (f *Factory) NewTransform(name string) plugins.Transform {
	return &Transform{name: name, factory: f}
}

// ParseExpression compiles an expression that can refer to the record as
// "values", for example: values["NuoMonitor.Commits"] / values.CollectionInterval
func ParseExpression(expression string) (cel.Program, error) {
	parsed, issues := celEnv.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	checked, issues := celEnv.Check(parsed)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	return celEnv.Program(checked)
}

// Transform sets the configured fields in order, so later expressions can
// use the results of earlier ones
type Transform struct {
	name    string
	factory *Factory
}

// Name returns the instance name
func (t *Transform) Name() string {
	return t.name
}

// Transform evaluates the expressions against the record
// A failing expression is logged and its field left unset
func (t *Transform) Transform(record *metrics.Record) (*metrics.Record, error) {
	ret := record.Copy()
	for _, field := range t.factory.Fields {
		val, _, err := field.program.Eval(map[string]interface{}{"values": map[string]interface{}(ret.Flatten())})
		if err != nil {
			log.Warningf("[%s] Expression for %s failed: %s", t.name, field.Field, err)
			continue
		}

		switch native := val.Value().(type) {
		case int64, uint64, float64, string, bool:
			ret.Values[field.Field] = metrics.Normalize(native)
		default:
			log.Warningf("[%s] Expression for %s returned unsupported type %s", t.name, field.Field, val.Type().TypeName())
		}
	}
	return ret, nil
}

func init() {
	var err error
	celEnv, err = cel.NewEnv(
		cel.Declarations(
			decls.NewVar("values", decls.NewMapType(decls.String, decls.Dyn)),
		),
		celext.Strings(),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to create expression environment: %s", err))
	}

	plugins.RegisterTransform("expression", NewFactory)
}
