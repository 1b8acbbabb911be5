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

package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"go.uber.org/atomic"
)

var (
	errNoInputs  = errors.New("no input plugin started")
	errNoOutputs = errors.New("no output plugin started")
)

type activeInput struct {
	plugin   plugins.Input
	prefixed bool
	busy     atomic.Bool
	failures atomic.Uint64
}

type activeOutput struct {
	plugin   plugins.Output
	failures atomic.Uint64
}

// pluginSet is the set of plugins started from one configuration
type pluginSet struct {
	inputs     []*activeInput
	transforms []plugins.Transform
	outputs    []*activeOutput
	disabled   []string
}

// startPlugins creates and starts the configured plugins. Plugins that fail
// to start, or cannot serve the collection interval, are disabled and their
// errors returned alongside the set. A nil set is returned when no input or
// no output could be started.
func startPlugins(ctx context.Context, cfg *plugins.Config, opts *settings) (*pluginSet, error) {
	var result *multierror.Error
	set := &pluginSet{}
	timeout := opts.pluginTimeout

	for n := range cfg.Inputs {
		input := cfg.Inputs[n].NewInput()
		if checker, ok := input.(plugins.IntervalChecker); ok {
			if err := checker.CheckInterval(opts.interval); err != nil {
				log.Errorf("[%s] Input cannot collect every %s, disabling: %s", input.Name(), opts.interval, err)
				result = multierror.Append(result, fmt.Errorf("input %s: %w", input.Name(), err))
				set.disabled = append(set.disabled, input.Name())
				continue
			}
		}
		if err := startWithTimeout(ctx, timeout, input.Startup); err != nil {
			log.Errorf("[%s] Input startup failed, disabling: %s", input.Name(), err)
			result = multierror.Append(result, fmt.Errorf("input %s: %w", input.Name(), err))
			set.disabled = append(set.disabled, input.Name())
			continue
		}
		log.Debugf("[%s] Input started", input.Name())
		set.inputs = append(set.inputs, &activeInput{plugin: input, prefixed: cfg.Inputs[n].Prefixed()})
	}

	for n := range cfg.Transforms {
		set.transforms = append(set.transforms, cfg.Transforms[n].NewTransform())
	}

	for n := range cfg.Outputs {
		output := cfg.Outputs[n].NewOutput()
		if err := startWithTimeout(ctx, timeout, output.Startup); err != nil {
			log.Errorf("[%s] Output startup failed, disabling: %s", output.Name(), err)
			result = multierror.Append(result, fmt.Errorf("output %s: %w", output.Name(), err))
			set.disabled = append(set.disabled, output.Name())
			continue
		}
		log.Debugf("[%s] Output started", output.Name())
		set.outputs = append(set.outputs, &activeOutput{plugin: output})
	}

	if len(set.inputs) == 0 || len(set.outputs) == 0 {
		if len(set.inputs) == 0 {
			result = multierror.Append(result, errNoInputs)
		}
		if len(set.outputs) == 0 {
			result = multierror.Append(result, errNoOutputs)
		}
		set.shutdown(timeout)
		return nil, result.ErrorOrNil()
	}

	return set, result.ErrorOrNil()
}

func startWithTimeout(ctx context.Context, timeout time.Duration, startup func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return startup(ctx)
}

// shutdown stops every plugin concurrently, waiting at most timeout for them
// all to finish
func (s *pluginSet) shutdown(timeout time.Duration) {
	var group sync.WaitGroup
	stop := func(name string, shutdown func() error) {
		group.Add(1)
		go func() {
			defer group.Done()
			if err := shutdown(); err != nil {
				log.Warningf("[%s] Shutdown failed: %s", name, err)
			}
		}()
	}

	for _, input := range s.inputs {
		stop(input.plugin.Name(), input.plugin.Shutdown)
	}
	for _, output := range s.outputs {
		stop(output.plugin.Name(), output.plugin.Shutdown)
	}

	done := make(chan struct{})
	go func() {
		group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warningf("Plugins did not shut down within %s", timeout)
	}
}
