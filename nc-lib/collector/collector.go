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

// Package collector implements the collection agent: on every collection
// interval it gathers values from the inputs, builds a record, runs it
// through the transforms and hands it to the outputs
package collector

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nuodb/nuoca/nc-lib/admin"
	"github.com/nuodb/nuoca/nc-lib/config"
	"github.com/nuodb/nuoca/nc-lib/core"
	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/plugins"
	"github.com/nuodb/nuoca/nc-lib/scheduler"
	"go.uber.org/atomic"
	"gopkg.in/op/go-logging.v1"
)

var log *logging.Logger

// boundaryKey identifies the next collection in the scheduler
const boundaryKey = "collect"

type stats struct {
	cycles        atomic.Uint64
	failedCycles  atomic.Uint64
	skipped       atomic.Uint64
	lastDuration  atomic.Duration
	lastTimestamp atomic.Int64
	nextBoundary  atomic.Int64
}

// Collector is the pipeline segment that runs collection intervals
type Collector struct {
	core.PipelineSegment
	core.PipelineConfigReceiver

	stop       func(int)
	selfTest   bool
	verboseOut io.Writer

	mutex  sync.RWMutex
	config *config.Config
	opts   *settings
	set    *pluginSet

	scheduler *scheduler.Scheduler
	boundary  time.Time
	history   *History
	stats     stats
	now       func() time.Time
}

// NewCollector creates the collector for the application
func NewCollector(app *core.App) *Collector {
	cfg := app.Config()
	return newCollector(cfg, app.Stop, app.SelfTest(), admin.FetchConfig(cfg).HistorySize)
}

func newCollector(cfg *config.Config, stop func(int), selfTest bool, historySize int) *Collector {
	return &Collector{
		stop:       stop,
		selfTest:   selfTest,
		verboseOut: os.Stdout,
		config:     cfg,
		opts:       settingsFromConfig(cfg),
		scheduler:  scheduler.NewScheduler(),
		history:    NewHistory(historySize),
		now:        time.Now,
	}
}

func settingsFromConfig(cfg *config.Config) *settings {
	general := cfg.General()
	return &settings{
		interval:      general.CollectionInterval,
		host:          general.Host,
		globalFields:  metrics.NormalizeValues(metrics.Values(general.GlobalFields)),
		pluginTimeout: general.PluginTimeout,
		verbose:       general.Verbose,
	}
}

// History returns the recent records
func (c *Collector) History() *History {
	return c.history
}

// Run the collector until shutdown
func (c *Collector) Run() {
	defer func() {
		c.Done()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	set, err := startPlugins(ctx, plugins.FetchConfig(c.config), c.opts)
	if set == nil {
		log.Critical("Failed to start plugins: %s", err)
		c.stop(1)
		return
	}
	if err != nil {
		log.Warningf("Some plugins are disabled: %s", err)
	}

	c.mutex.Lock()
	c.set = set
	c.mutex.Unlock()

	if c.selfTest {
		c.stop(c.runSelfTest(ctx))
		c.shutdownPlugins()
		return
	}

	first, err := firstBoundary(c.now(), c.config.General().StartTime)
	if err != nil {
		log.Critical("%s", err)
		c.shutdownPlugins()
		c.stop(1)
		return
	}
	c.schedule(first)

	log.Noticef("Collecting every %s from %d inputs", c.opts.interval, len(set.inputs))

	for {
		select {
		case <-c.OnShutdown():
			c.shutdownPlugins()
			return
		case cfg := <-c.OnConfig():
			c.reloadConfig(ctx, cfg)
		case <-c.scheduler.OnNext():
			if c.scheduler.Next() != nil {
				c.runBoundary(ctx)
			}
			c.scheduler.Reschedule()
		}
	}
}

func (c *Collector) schedule(boundary time.Time) {
	c.boundary = boundary
	c.stats.nextBoundary.Store(boundary.Unix())
	c.scheduler.SetAt(boundaryKey, boundary)
}

// runBoundary runs the due collection and schedules the next
func (c *Collector) runBoundary(ctx context.Context) {
	c.mutex.RLock()
	set, opts := c.set, c.opts
	c.mutex.RUnlock()

	c.cycle(ctx, set, opts, c.boundary)

	next, missed := nextBoundary(c.boundary, c.now(), opts.interval)
	if missed != 0 {
		log.Warningf("Collection overran, skipping %d collection intervals", missed)
		c.stats.skipped.Add(uint64(missed))
	}
	c.schedule(next)
}

// runSelfTest runs the configured number of collections back to back and
// returns how many failed
func (c *Collector) runSelfTest(ctx context.Context) int {
	loops := c.config.General().SelfTestLoops
	log.Noticef("Running self test with %d collections", loops)

	boundary, _ := firstBoundary(c.now(), 0)
	failures := 0
	for loop := 0; loop < loops; loop++ {
		select {
		case <-c.OnShutdown():
			log.Warning("Self test interrupted")
			return failures + loops - loop
		default:
		}

		if _, failed := c.cycle(ctx, c.set, c.opts, boundary); failed {
			failures++
		}
		boundary = boundary.Add(c.opts.interval)
	}

	log.Noticef("Self test completed: %d of %d collections failed", failures, loops)
	return failures
}

// reloadConfig starts the plugins of a new configuration, replacing the
// running set only if the new one starts
func (c *Collector) reloadConfig(ctx context.Context, cfg *config.Config) {
	opts := settingsFromConfig(cfg)

	set, err := startPlugins(ctx, plugins.FetchConfig(cfg), opts)
	if set == nil {
		log.Errorf("Keeping the running plugins, the new configuration failed to start: %s", err)
		return
	}
	if err != nil {
		log.Warningf("Some plugins are disabled: %s", err)
	}

	c.mutex.Lock()
	previous, previousOpts := c.set, c.opts
	c.config, c.set, c.opts = cfg, set, opts
	c.mutex.Unlock()

	previous.shutdown(cfg.General().ShutdownTimeout)
	c.history.Resize(admin.FetchConfig(cfg).HistorySize)

	if opts.interval != previousOpts.interval {
		// The next collection stays where it is, and the new interval
		// applies from then on
		log.Noticef("Collection interval changed from %s to %s", previousOpts.interval, opts.interval)
	}

	log.Noticef("Plugins reloaded, collecting from %d inputs", len(set.inputs))
}

func (c *Collector) shutdownPlugins() {
	c.mutex.RLock()
	set, cfg := c.set, c.config
	c.mutex.RUnlock()

	if set != nil {
		set.shutdown(cfg.General().ShutdownTimeout)
	}
	log.Info("Collector shutdown complete")
}

// Snapshot returns the collector status
func (c *Collector) Snapshot() []*core.Snapshot {
	c.mutex.RLock()
	set, opts := c.set, c.opts
	c.mutex.RUnlock()

	snap := core.NewSnapshot("Collector")
	snap.AddEntry("Collection Interval", opts.interval.String())
	snap.AddEntry("Host", opts.host)
	snap.AddEntry("Cycles", c.stats.cycles.Load())
	snap.AddEntry("Failed Cycles", c.stats.failedCycles.Load())
	snap.AddEntry("Skipped Intervals", c.stats.skipped.Load())
	snap.AddEntry("Last Cycle Duration", c.stats.lastDuration.Load().String())
	snap.AddEntry("Last Record Timestamp", c.stats.lastTimestamp.Load())
	snap.AddEntry("Next Collection", c.stats.nextBoundary.Load())

	if set == nil {
		return []*core.Snapshot{snap}
	}

	inputs := core.NewSnapshot("Inputs")
	for _, input := range set.inputs {
		sub := core.NewSnapshot(input.plugin.Name())
		sub.AddEntry("Status", "Active")
		sub.AddEntry("Failures", input.failures.Load())
		inputs.AddSub(sub)
	}
	snap.AddSub(inputs)

	transforms := core.NewSnapshot("Transforms")
	for _, transform := range set.transforms {
		transforms.AddEntry(transform.Name(), "Active")
	}
	snap.AddSub(transforms)

	outputs := core.NewSnapshot("Outputs")
	for _, output := range set.outputs {
		sub := core.NewSnapshot(output.plugin.Name())
		sub.AddEntry("Status", "Active")
		sub.AddEntry("Failures", output.failures.Load())
		outputs.AddSub(sub)
	}
	snap.AddSub(outputs)

	if len(set.disabled) != 0 {
		snap.AddEntry("Disabled Plugins", set.disabled)
	}

	return []*core.Snapshot{snap}
}

func init() {
	log = logging.MustGetLogger("collector")
}
