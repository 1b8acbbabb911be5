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

package core

import (
	"sync"

	"github.com/nuodb/nuoca/nc-lib/config"
)

// Pipeline runs a set of segments, distributing configuration reloads and
// collecting their status snapshots
type Pipeline struct {
	segments    []IPipelineSegment
	signal      chan interface{}
	group       sync.WaitGroup
	configSinks []chan *config.Config
	providers   []IPipelineSnapshotProvider
}

// NewPipeline creates a new, empty, pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		segments: make([]IPipelineSegment, 0, 2),
		signal:   make(chan interface{}),
	}
}

// Add registers a segment with the pipeline
func (p *Pipeline) Add(segment IPipelineSegment) {
	p.group.Add(1)

	base := segment.getStruct()
	base.signal = p.signal
	base.group = &p.group

	p.segments = append(p.segments, segment)

	if receiver, ok := segment.(IPipelineConfigReceiver); ok {
		sink := make(chan *config.Config)
		receiver.getConfigReceiverStruct().configChan = sink
		p.configSinks = append(p.configSinks, sink)
	}

	if provider, ok := segment.(IPipelineSnapshotProvider); ok {
		p.providers = append(p.providers, provider)
	}
}

// Start runs all the segments
func (p *Pipeline) Start() {
	for _, segment := range p.segments {
		go segment.Run()
	}
}

// Shutdown signals all segments to stop
func (p *Pipeline) Shutdown() {
	close(p.signal)
}

// Wait for all segments to complete shutdown
func (p *Pipeline) Wait() {
	p.group.Wait()
}

// SendConfig passes a new configuration to every segment that receives them
func (p *Pipeline) SendConfig(cfg *config.Config) {
	for _, sink := range p.configSinks {
		select {
		case sink <- cfg:
		case <-p.signal:
			return
		}
	}
}

// Snapshot gathers the status of every segment that provides one
func (p *Pipeline) Snapshot() *Snapshot {
	snap := NewSnapshot("Pipeline")
	for _, provider := range p.providers {
		for _, sub := range provider.Snapshot() {
			snap.AddSub(sub)
		}
	}
	return snap
}
