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
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInput struct {
	name        string
	response    *metrics.Response
	err         error
	startupErr  error
	delay       time.Duration
	minInterval time.Duration
	calls       int
	shutdown    bool
	mutex       sync.Mutex

	// stubborn inputs ignore cancellation, like a hung plugin
	stubborn bool
}

func (f *fakeInput) NewInput(name string) plugins.Input { f.name = name; return f }
func (f *fakeInput) Name() string                      { return f.name }
func (f *fakeInput) Startup(ctx context.Context) error { return f.startupErr }

func (f *fakeInput) CheckInterval(interval time.Duration) error {
	if interval < f.minInterval {
		return errors.New("interval too small")
	}
	return nil
}

func (f *fakeInput) Calls() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

func (f *fakeInput) Collect(ctx context.Context, interval time.Duration) (*metrics.Response, error) {
	f.mutex.Lock()
	f.calls++
	f.mutex.Unlock()
	if f.stubborn {
		time.Sleep(f.delay)
	} else if f.delay != 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeInput) Shutdown() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.shutdown = true
	return nil
}

type fakeOutput struct {
	name     string
	err      error
	records  []*metrics.Record
	shutdown bool
	mutex    sync.Mutex
}

func (f *fakeOutput) NewOutput(name string) plugins.Output { f.name = name; return f }
func (f *fakeOutput) Name() string                        { return f.name }
func (f *fakeOutput) Startup(ctx context.Context) error   { return nil }

func (f *fakeOutput) Store(ctx context.Context, record *metrics.Record) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.records = append(f.records, record)
	return f.err
}

func (f *fakeOutput) Shutdown() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.shutdown = true
	return nil
}

func (f *fakeOutput) Records() []*metrics.Record {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]*metrics.Record(nil), f.records...)
}

type doubleTransform struct {
	err error
}

func (u *doubleTransform) NewTransform(name string) plugins.Transform { return u }
func (u *doubleTransform) Name() string                             { return "double" }

func (u *doubleTransform) Transform(record *metrics.Record) (*metrics.Record, error) {
	if u.err != nil {
		return nil, u.err
	}
	for key, value := range record.Values {
		if number, ok := value.(int64); ok {
			record.Values[key] = number * 2
		}
	}
	return record, nil
}

func newTestConfig(inputs map[string]plugins.InputFactory, order []string, outputs ...plugins.OutputFactory) *config.Config {
	cfg := config.NewConfig()
	general := cfg.General()
	general.Host = "db1"
	general.CollectionInterval = time.Second
	general.PluginTimeout = 200 * time.Millisecond
	general.ShutdownTimeout = time.Second

	pluginConfig := plugins.FetchConfig(cfg)
	for _, name := range order {
		pluginConfig.Inputs = append(pluginConfig.Inputs, plugins.InputStub{Name: name, Factory: inputs[name]})
	}
	for _, output := range outputs {
		pluginConfig.Outputs = append(pluginConfig.Outputs, plugins.OutputStub{Name: "fake", Factory: output})
	}
	return cfg
}

func startTestSet(t *testing.T, c *Collector) *pluginSet {
	set, err := startPlugins(context.Background(), plugins.FetchConfig(c.config), c.opts)
	require.NoError(t, err)
	require.NotNil(t, set)
	c.set = set
	return set
}

func TestCycleMergesInputs(t *testing.T) {
	first := &fakeInput{response: metrics.NewResponse(metrics.Values{"commits": int64(5), "name": "a"})}
	second := &fakeInput{response: metrics.NewResponse(metrics.Values{"commits": int64(7)})}
	output := &fakeOutput{}

	cfg := newTestConfig(map[string]plugins.InputFactory{"first": first, "second": second}, []string{"first", "second"}, output)
	cfg.General().GlobalFields = map[string]interface{}{"datacenter": "east"}
	c := newCollector(cfg, func(int) {}, false, 10)
	set := startTestSet(t, c)

	record, failed := c.cycle(context.Background(), set, c.opts, time.Unix(1500000000, 0))
	assert.False(t, failed)

	assert.Equal(t, int64(1500000001), record.Timestamp)
	assert.Equal(t, int64(1), record.Interval)
	assert.Equal(t, "db1", record.Host)
	assert.Equal(t, metrics.Values{
		"first.commits":  int64(5),
		"first.name":     "a",
		"second.commits": int64(7),
		"datacenter":     "east",
	}, record.Values)

	require.Len(t, output.Records(), 1)
	assert.Same(t, record, c.History().Latest())
	assert.Equal(t, uint64(1), c.stats.cycles.Load())
}

func TestCycleSkipsFailedInputs(t *testing.T) {
	inputs := map[string]plugins.InputFactory{
		"good":    &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(1)})},
		"status":  &fakeInput{response: &metrics.Response{StatusCode: 2}},
		"missing": &fakeInput{response: &metrics.Response{}},
		"nil":     &fakeInput{},
		"error":   &fakeInput{err: errors.New("broken")},
		"slow":    &fakeInput{delay: time.Minute, response: metrics.NewResponse(metrics.Values{"v": int64(2)})},
	}
	order := []string{"good", "status", "missing", "nil", "error", "slow"}
	output := &fakeOutput{}

	c := newCollector(newTestConfig(inputs, order, output), func(int) {}, false, 10)
	set := startTestSet(t, c)

	started := time.Now()
	record, failed := c.cycle(context.Background(), set, c.opts, time.Unix(1500000000, 0))
	assert.Less(t, time.Since(started), 10*time.Second)

	assert.True(t, failed)
	assert.Equal(t, metrics.Values{"good.v": int64(1)}, record.Values)
	for _, input := range set.inputs[1:] {
		assert.Equal(t, uint64(1), input.failures.Load(), input.plugin.Name())
	}
	assert.Equal(t, uint64(1), c.stats.failedCycles.Load())
}

func TestCycleSkipsBusyInput(t *testing.T) {
	hung := &fakeInput{delay: 5 * time.Second, stubborn: true, response: metrics.NewResponse(metrics.Values{"v": int64(1)})}
	good := &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(2)})}
	cfg := newTestConfig(map[string]plugins.InputFactory{"hung": hung, "good": good}, []string{"hung", "good"}, &fakeOutput{})

	c := newCollector(cfg, func(int) {}, false, 10)
	set := startTestSet(t, c)

	record, failed := c.cycle(context.Background(), set, c.opts, time.Unix(1500000000, 0))
	assert.True(t, failed)
	assert.Equal(t, metrics.Values{"good.v": int64(2)}, record.Values)

	// The first Collect is still running so the next interval skips it
	record, failed = c.cycle(context.Background(), set, c.opts, time.Unix(1500000001, 0))
	assert.True(t, failed)
	assert.Equal(t, metrics.Values{"good.v": int64(2)}, record.Values)

	results := c.gather(context.Background(), set, c.opts)
	assert.ErrorIs(t, results[0].err, errBusy)
	assert.NoError(t, results[1].err)

	assert.Equal(t, 1, hung.Calls())
	assert.Equal(t, 3, good.Calls())
	assert.Equal(t, uint64(2), set.inputs[0].failures.Load())
	assert.Zero(t, set.inputs[1].failures.Load())
}

func TestCycleUnprefixedInput(t *testing.T) {
	bare := &fakeInput{response: metrics.NewResponse(metrics.Values{"Commits": int64(4)})}
	named := &fakeInput{response: metrics.NewResponse(metrics.Values{"Commits": int64(5)})}
	cfg := newTestConfig(map[string]plugins.InputFactory{"bare": bare, "named": named}, []string{"bare", "named"}, &fakeOutput{})
	plugins.FetchConfig(cfg).Inputs[0].SetPrefixed(false)

	c := newCollector(cfg, func(int) {}, false, 10)
	set := startTestSet(t, c)

	record, failed := c.cycle(context.Background(), set, c.opts, time.Unix(0, 0))
	assert.False(t, failed)
	assert.Equal(t, metrics.Values{"Commits": int64(4), "named.Commits": int64(5)}, record.Values)
}

func TestCycleLaterInputWins(t *testing.T) {
	inputs := map[string]plugins.InputFactory{
		"a": &fakeInput{response: metrics.NewResponse(metrics.Values{"x": int64(1)})},
		"b": &fakeInput{response: metrics.NewResponse(metrics.Values{"x": int64(2)})},
	}
	output := &fakeOutput{}
	cfg := newTestConfig(inputs, []string{"a", "b"}, output)
	pluginConfig := plugins.FetchConfig(cfg)
	// Aliases make both instances report under the same name
	pluginConfig.Inputs[0].Alias = "same"
	pluginConfig.Inputs[1].Alias = "same"

	c := newCollector(cfg, func(int) {}, false, 10)
	set := startTestSet(t, c)

	record, _ := c.cycle(context.Background(), set, c.opts, time.Unix(0, 0))
	assert.Equal(t, int64(2), record.Values["same.x"])
}

func TestCycleTransformsAndOutputs(t *testing.T) {
	input := &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(3)})}
	failing := &fakeOutput{err: errors.New("unavailable")}
	working := &fakeOutput{}

	cfg := newTestConfig(map[string]plugins.InputFactory{"in": input}, []string{"in"}, failing, working)
	pluginConfig := plugins.FetchConfig(cfg)
	pluginConfig.Transforms = []plugins.TransformStub{
		{Name: "double", Factory: &doubleTransform{}},
		{Name: "broken", Factory: &doubleTransform{err: errors.New("bad")}},
	}

	c := newCollector(cfg, func(int) {}, false, 10)
	set := startTestSet(t, c)

	record, failed := c.cycle(context.Background(), set, c.opts, time.Unix(0, 0))
	assert.True(t, failed)
	assert.Equal(t, int64(6), record.Values["in.v"])

	// A failing output does not stop the others
	require.Len(t, working.Records(), 1)
	assert.Equal(t, int64(6), working.Records()[0].Values["in.v"])
	assert.Equal(t, uint64(1), set.outputs[0].failures.Load())
}

func TestCycleVerbose(t *testing.T) {
	input := &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(3)})}
	cfg := newTestConfig(map[string]plugins.InputFactory{"in": input}, []string{"in"}, &fakeOutput{})
	cfg.General().Verbose = true

	c := newCollector(cfg, func(int) {}, false, 10)
	buffer := new(bytes.Buffer)
	c.verboseOut = buffer
	set := startTestSet(t, c)

	c.cycle(context.Background(), set, c.opts, time.Unix(0, 0))
	assert.Equal(t, "in:{\"StatusCode\":0,\"Collected_Values\":{\"v\":3}}\n", buffer.String())
}

func TestStartPluginsDisablesFailures(t *testing.T) {
	inputs := map[string]plugins.InputFactory{
		"good": &fakeInput{response: metrics.NewResponse(nil)},
		"bad":  &fakeInput{startupErr: errors.New("refused")},
	}
	cfg := newTestConfig(inputs, []string{"good", "bad"}, &fakeOutput{})

	set, err := startPlugins(context.Background(), plugins.FetchConfig(cfg), settingsFromConfig(cfg))
	require.NotNil(t, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input bad: refused")
	assert.Len(t, set.inputs, 1)
	assert.Equal(t, []string{"bad"}, set.disabled)
}

func TestStartPluginsDisablesIntervalMismatch(t *testing.T) {
	slow := &fakeInput{minInterval: 10 * time.Second}
	cfg := newTestConfig(map[string]plugins.InputFactory{
		"good": &fakeInput{response: metrics.NewResponse(nil)},
		"slow": slow,
	}, []string{"good", "slow"}, &fakeOutput{})

	set, err := startPlugins(context.Background(), plugins.FetchConfig(cfg), settingsFromConfig(cfg))
	require.NotNil(t, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input slow: interval too small")
	assert.Len(t, set.inputs, 1)
	assert.Equal(t, []string{"slow"}, set.disabled)
	assert.Zero(t, slow.Calls())
}

func TestStartPluginsNoInputs(t *testing.T) {
	output := &fakeOutput{}
	cfg := newTestConfig(map[string]plugins.InputFactory{
		"bad": &fakeInput{startupErr: errors.New("refused")},
	}, []string{"bad"}, output)

	set, err := startPlugins(context.Background(), plugins.FetchConfig(cfg), settingsFromConfig(cfg))
	assert.Nil(t, set)
	assert.ErrorIs(t, err, errNoInputs)
	assert.True(t, output.shutdown)
}

func TestSelfTest(t *testing.T) {
	input := &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(1)})}
	output := &fakeOutput{}
	cfg := newTestConfig(map[string]plugins.InputFactory{"in": input}, []string{"in"}, output)
	cfg.General().SelfTestLoops = 3

	exitCode := make(chan int, 1)
	c := newCollector(cfg, func(code int) { exitCode <- code }, true, 10)

	pipeline := core.NewPipeline()
	pipeline.Add(c)
	pipeline.Start()

	select {
	case code := <-exitCode:
		assert.Equal(t, 0, code)
	case <-time.After(10 * time.Second):
		t.Fatal("Self test did not complete")
	}

	pipeline.Shutdown()
	pipeline.Wait()

	records := output.Records()
	require.Len(t, records, 3)
	assert.Equal(t, records[0].Timestamp+1, records[1].Timestamp)
	assert.True(t, input.shutdown)
}

func TestSelfTestCountsFailures(t *testing.T) {
	input := &fakeInput{err: errors.New("down")}
	cfg := newTestConfig(map[string]plugins.InputFactory{"in": input}, []string{"in"}, &fakeOutput{})
	cfg.General().SelfTestLoops = 2

	exitCode := make(chan int, 1)
	c := newCollector(cfg, func(code int) { exitCode <- code }, true, 10)
	startTestSet(t, c)
	exitCode <- c.runSelfTest(context.Background())
	assert.Equal(t, 2, <-exitCode)
}

func TestRunCollectsOnBoundaries(t *testing.T) {
	input := &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(1)})}
	output := &fakeOutput{}
	cfg := newTestConfig(map[string]plugins.InputFactory{"in": input}, []string{"in"}, output)

	c := newCollector(cfg, func(int) {}, false, 10)
	pipeline := core.NewPipeline()
	pipeline.Add(c)
	pipeline.Start()

	require.Eventually(t, func() bool {
		return len(output.Records()) >= 2
	}, 10*time.Second, 50*time.Millisecond)

	pipeline.Shutdown()
	pipeline.Wait()

	records := output.Records()
	assert.Equal(t, records[0].Timestamp+1, records[1].Timestamp)
	assert.True(t, output.shutdown)

	snap := pipeline.Snapshot().Sub("Collector")
	require.NotNil(t, snap)
	assert.GreaterOrEqual(t, snap.Entries["Cycles"], uint64(2))
	assert.NotNil(t, snap.Sub("Inputs").Sub("in"))
}

func TestRunStartTimeInPast(t *testing.T) {
	input := &fakeInput{response: metrics.NewResponse(nil)}
	output := &fakeOutput{}
	cfg := newTestConfig(map[string]plugins.InputFactory{"in": input}, []string{"in"}, output)
	cfg.General().StartTime = 1000

	exitCode := make(chan int, 1)
	c := newCollector(cfg, func(code int) { exitCode <- code }, false, 10)
	pipeline := core.NewPipeline()
	pipeline.Add(c)
	pipeline.Start()

	select {
	case code := <-exitCode:
		assert.Equal(t, 1, code)
	case <-time.After(10 * time.Second):
		t.Fatal("Collector did not stop")
	}
	pipeline.Shutdown()
	pipeline.Wait()
	assert.Empty(t, output.Records())
}

func TestReloadReplacesPlugins(t *testing.T) {
	oldOutput := &fakeOutput{}
	cfg := newTestConfig(map[string]plugins.InputFactory{
		"old": &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(1)})},
	}, []string{"old"}, oldOutput)

	c := newCollector(cfg, func(int) {}, false, 10)
	startTestSet(t, c)

	newOutput := &fakeOutput{}
	newCfg := newTestConfig(map[string]plugins.InputFactory{
		"new": &fakeInput{response: metrics.NewResponse(metrics.Values{"v": int64(2)})},
	}, []string{"new"}, newOutput)

	c.reloadConfig(context.Background(), newCfg)
	assert.True(t, oldOutput.shutdown)
	assert.Equal(t, "new", c.set.inputs[0].plugin.Name())

	// A configuration whose plugins cannot start leaves the running set
	brokenCfg := newTestConfig(map[string]plugins.InputFactory{
		"broken": &fakeInput{startupErr: errors.New("refused")},
	}, []string{"broken"}, &fakeOutput{})
	c.reloadConfig(context.Background(), brokenCfg)
	assert.Equal(t, "new", c.set.inputs[0].plugin.Name())
	assert.False(t, newOutput.shutdown)
}
