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

package plugins

import (
	"context"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"golang.org/x/exp/slices"
)

// Input gathers values. Collect is called once per collection interval and
// may be called concurrently with other inputs, but never concurrently with
// itself.
type Input interface {
	Name() string
	Startup(ctx context.Context) error
	Collect(ctx context.Context, interval time.Duration) (*metrics.Response, error)
	Shutdown() error
}

// IntervalChecker is implemented by inputs that cannot serve every
// collection interval. CheckInterval is called before Startup and an error
// disables the input.
type IntervalChecker interface {
	CheckInterval(interval time.Duration) error
}

// Transform modifies a record before it reaches the outputs
type Transform interface {
	Name() string
	Transform(record *metrics.Record) (*metrics.Record, error)
}

// Output stores records
type Output interface {
	Name() string
	Startup(ctx context.Context) error
	Store(ctx context.Context, record *metrics.Record) error
	Shutdown() error
}

// InputFactory holds the configuration of an input and creates instances of
// it
type InputFactory interface {
	NewInput(name string) Input
}

// TransformFactory holds the configuration of a transform and creates
// instances of it
type TransformFactory interface {
	NewTransform(name string) Transform
}

// OutputFactory holds the configuration of an output and creates instances
// of it
type OutputFactory interface {
	NewOutput(name string) Output
}

// InputRegistrarFunc parses the options of an input plugin and returns its
// factory
type InputRegistrarFunc func(p *config.Parser, path string, unused map[string]interface{}, name string) (InputFactory, error)

// TransformRegistrarFunc parses the options of a transform plugin and
// returns its factory
type TransformRegistrarFunc func(p *config.Parser, path string, unused map[string]interface{}, name string) (TransformFactory, error)

// OutputRegistrarFunc parses the options of an output plugin and returns its
// factory
type OutputRegistrarFunc func(p *config.Parser, path string, unused map[string]interface{}, name string) (OutputFactory, error)

var (
	registeredInputs     = make(map[string]InputRegistrarFunc)
	registeredTransforms = make(map[string]TransformRegistrarFunc)
	registeredOutputs    = make(map[string]OutputRegistrarFunc)
)

// RegisterInput registers an input plugin
func RegisterInput(name string, registrar InputRegistrarFunc) {
	registeredInputs[name] = registrar
}

// RegisterTransform registers a transform plugin
func RegisterTransform(name string, registrar TransformRegistrarFunc) {
	registeredTransforms[name] = registrar
}

// RegisterOutput registers an output plugin
func RegisterOutput(name string, registrar OutputRegistrarFunc) {
	registeredOutputs[name] = registrar
}

// AvailableInputs returns the sorted names of the registered input plugins
func AvailableInputs() []string {
	return sortedKeys(registeredInputs)
}

// AvailableTransforms returns the sorted names of the registered transform
// plugins
func AvailableTransforms() []string {
	return sortedKeys(registeredTransforms)
}

// AvailableOutputs returns the sorted names of the registered output plugins
func AvailableOutputs() []string {
	return sortedKeys(registeredOutputs)
}

func sortedKeys[V any](registry map[string]V) []string {
	ret := make([]string, 0, len(registry))
	for name := range registry {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}
