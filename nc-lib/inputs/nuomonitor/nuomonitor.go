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

package nuomonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nuodb/nuoca/nc-lib/metrics"
	"github.com/nuodb/nuoca/nc-lib/scheduler"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("nuomonitor")

// maxRetainedPolls bounds the queue, in poll intervals, when the collection
// interval is not known
const maxRetainedPolls = 60

// pollKey identifies the poll in the scheduler
type pollKey struct{}

type sample struct {
	received time.Time
	values   metrics.Values
}

// Input polls nuomonitor on its own interval and queues the samples until
// the next collection
type Input struct {
	name    string
	factory *Factory
	url     string
	client  *http.Client

	mutex              sync.Mutex
	queue              []sample
	collectionInterval time.Duration
	now                func() time.Time

	shutdownFunc context.CancelFunc
	done         chan struct{}
}

func newInput(name string, factory *Factory) *Input {
	return &Input{
		name:    name,
		factory: factory,
		url:     factory.URL(),
		client:  &http.Client{Timeout: factory.Timeout},
		now:     time.Now,
	}
}

// Name returns the instance name
func (i *Input) Name() string {
	return i.name
}

// CheckInterval rejects a collection interval shorter than the poll
// interval, which would leave collections without samples
func (i *Input) CheckInterval(interval time.Duration) error {
	if interval < i.factory.Interval {
		return fmt.Errorf("collection interval %s is smaller than the nuomonitor interval %s", interval, i.factory.Interval)
	}

	i.mutex.Lock()
	i.collectionInterval = interval
	i.mutex.Unlock()
	return nil
}

// Startup starts polling
func (i *Input) Startup(ctx context.Context) error {
	log.Infof("[%s] Polling %s every %s for broker %s", i.name, i.url, i.factory.Interval, i.factory.Broker)

	// Polling outlives the startup context
	pollCtx, shutdownFunc := context.WithCancel(context.Background())
	i.shutdownFunc = shutdownFunc
	i.done = make(chan struct{})
	go i.poll(pollCtx)
	return nil
}

// poll fetches samples on interval boundaries relative to startup
func (i *Input) poll(ctx context.Context) {
	defer close(i.done)

	sched := scheduler.NewScheduler()
	next := time.Now().Add(i.factory.Interval)
	sched.SetAt(pollKey{}, next)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sched.OnNext():
		}

		if sched.Next() == nil {
			sched.Reschedule()
			continue
		}

		i.pollOnce(ctx)

		now := time.Now()
		for !next.After(now) {
			next = next.Add(i.factory.Interval)
		}
		sched.SetAt(pollKey{}, next)
		sched.Reschedule()
	}
}

// pollOnce fetches and queues one set of samples
func (i *Input) pollOnce(ctx context.Context) {
	samples, err := i.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Errorf("[%s] %s", i.name, err)
		}
		return
	}

	now := i.now()

	i.mutex.Lock()
	dropped := i.trim(now)
	for _, values := range samples {
		i.queue = append(i.queue, sample{received: now, values: values})
	}
	i.mutex.Unlock()

	if dropped != 0 {
		log.Warningf("[%s] Dropped %d samples that were not collected in time", i.name, dropped)
	}
	log.Debugf("[%s] Queued %d samples", i.name, len(samples))
}

// trim drops samples older than one collection interval, returning how many
// were dropped. The mutex must be held.
func (i *Input) trim(now time.Time) int {
	retention := i.collectionInterval
	if retention == 0 {
		retention = maxRetainedPolls * i.factory.Interval
	}
	cutoff := now.Add(-retention)

	stale := 0
	for stale < len(i.queue) && i.queue[stale].received.Before(cutoff) {
		stale++
	}
	if stale != 0 {
		i.queue = append(i.queue[:0], i.queue[stale:]...)
	}
	return stale
}

// fetch requests the latest metrics, which are a JSON array of objects
func (i *Input) fetch(ctx context.Context) ([]metrics.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nuomonitor returned non-200 response: %s", resp.Status)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var samples []metrics.Values
	if err := decoder.Decode(&samples); err != nil {
		return nil, fmt.Errorf("invalid response from nuomonitor: %s", err)
	}
	for _, sample := range samples {
		metrics.NormalizeValues(sample)
	}
	return samples, nil
}

// Collect aggregates and drains the queued samples
func (i *Input) Collect(ctx context.Context, interval time.Duration) (*metrics.Response, error) {
	i.mutex.Lock()
	queued := i.queue
	i.queue = nil
	i.mutex.Unlock()

	if interval < i.factory.Interval {
		return nil, fmt.Errorf("collection interval %s is smaller than the nuomonitor interval %s", interval, i.factory.Interval)
	}

	if len(queued) == 0 {
		return metrics.NewResponse(nil), nil
	}

	samples := make([]metrics.Values, len(queued))
	for n := range queued {
		samples[n] = queued[n].values
	}
	values := metrics.Aggregate(samples)
	values["broker"] = i.factory.Broker
	return metrics.NewResponse(values), nil
}

// Shutdown stops polling
func (i *Input) Shutdown() error {
	if i.shutdownFunc == nil {
		return nil
	}
	i.shutdownFunc()
	<-i.done
	return nil
}
