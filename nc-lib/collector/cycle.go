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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nuodb/nuoca/nc-lib/metrics"
)

var (
	errBusy            = errors.New("still collecting from the previous interval")
	errTimeout         = errors.New("timed out waiting for values")
	errNoResponse      = errors.New("returned no response")
	errMissingValues   = errors.New("response has no Collected_Values")
	errFailedTransform = errors.New("transform returned no record")
)

type inputResult struct {
	index    int
	response *metrics.Response
	err      error
	done     bool
}

// settings are the general options a cycle runs with
type settings struct {
	interval      time.Duration
	host          string
	globalFields  metrics.Values
	pluginTimeout time.Duration
	verbose       bool
}

// cycle runs one collection for the interval starting at boundary, returning
// the stored record and whether any plugin failed
func (c *Collector) cycle(ctx context.Context, set *pluginSet, opts *settings, boundary time.Time) (*metrics.Record, bool) {
	started := time.Now()
	intervalSeconds := int64(opts.interval / time.Second)

	log.Infof("Starting collection interval: %d", boundary.Unix())

	record := metrics.NewRecord(boundary.Unix()+intervalSeconds, intervalSeconds, opts.host)
	record.Values.Merge(opts.globalFields)

	failed := false
	for n, result := range c.gather(ctx, set, opts) {
		input := set.inputs[n]
		values, err := c.checkResult(input.plugin.Name(), result, opts.verbose)
		if err != nil {
			log.Errorf("[%s] Collection failed: %s", input.plugin.Name(), err)
			input.failures.Inc()
			failed = true
			continue
		}
		if input.prefixed {
			values = metrics.Prefix(input.plugin.Name(), values)
		}
		record.Values.Merge(values)
	}

	for _, transform := range set.transforms {
		transformed, err := transform.Transform(record.Copy())
		if err == nil && transformed == nil {
			err = errFailedTransform
		}
		if err != nil {
			log.Errorf("[%s] Transform failed, passing the record on unchanged: %s", transform.Name(), err)
			failed = true
			continue
		}
		record = transformed
	}

	for _, output := range set.outputs {
		storeCtx, cancel := context.WithTimeout(ctx, opts.pluginTimeout)
		err := output.plugin.Store(storeCtx, record)
		cancel()
		if err != nil {
			log.Errorf("[%s] Store failed: %s", output.plugin.Name(), err)
			output.failures.Inc()
			failed = true
		}
	}

	duration := time.Since(started)
	c.stats.cycles.Inc()
	if failed {
		c.stats.failedCycles.Inc()
	}
	c.stats.lastDuration.Store(duration)
	c.stats.lastTimestamp.Store(record.Timestamp)
	c.history.Add(record)

	log.Debugf("Collection interval %d completed in %s with %d values", boundary.Unix(), duration, len(record.Values))
	return record, failed
}

// gather calls Collect on every input concurrently, waiting at most the
// plugin timeout. The results are in input order.
func (c *Collector) gather(ctx context.Context, set *pluginSet, opts *settings) []inputResult {
	ctx, cancel := context.WithTimeout(ctx, opts.pluginTimeout)
	defer cancel()

	results := make([]inputResult, len(set.inputs))
	resultChan := make(chan inputResult, len(set.inputs))
	pending := 0

	for n, input := range set.inputs {
		// An input that overran its timeout is never called concurrently
		if !input.busy.CompareAndSwap(false, true) {
			results[n] = inputResult{index: n, err: errBusy, done: true}
			continue
		}

		pending++
		go func(n int, input *activeInput) {
			defer input.busy.Store(false)
			response, err := input.plugin.Collect(ctx, opts.interval)
			resultChan <- inputResult{index: n, response: response, err: err, done: true}
		}(n, input)
	}

	for pending > 0 {
		select {
		case result := <-resultChan:
			results[result.index] = result
			pending--
		case <-ctx.Done():
			for n := range results {
				if !results[n].done {
					results[n] = inputResult{index: n, err: errTimeout, done: true}
				}
			}
			pending = 0
		}
	}

	return results
}

// checkResult returns the values of a successful collection
func (c *Collector) checkResult(name string, result inputResult, verbose bool) (metrics.Values, error) {
	if result.err != nil {
		return nil, result.err
	}
	if result.response == nil {
		return nil, errNoResponse
	}

	if verbose {
		encoded, err := json.Marshal(result.response)
		if err == nil {
			fmt.Fprintf(c.verboseOut, "%s:%s\n", name, encoded)
		}
	}

	if result.response.StatusCode != 0 {
		return nil, fmt.Errorf("plugin reported status %d", result.response.StatusCode)
	}
	if result.response.CollectedValues == nil {
		return nil, errMissingValues
	}
	return result.response.CollectedValues, nil
}
