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

// IPipelineSegment is the interface a segment exposes
// Including PipelineSegment into the segment struct and defining a Run() method
// will provide this
type IPipelineSegment interface {
	Run()
	getStruct() *PipelineSegment
}

// PipelineSegment is included into pipeline segment structures and allows them
// to be registered with a Pipeline
type PipelineSegment struct {
	signal <-chan interface{}
	group  *sync.WaitGroup
}

func (s *PipelineSegment) getStruct() *PipelineSegment {
	return s
}

// OnShutdown returns a channel, that when closed, signals the shutdown of the
// pipeline. All segments MUST pay attention to this channel and shutdown when
// it closes
func (s *PipelineSegment) OnShutdown() <-chan interface{} {
	return s.signal
}

// Done MUST be called by a segment to signal it has completed shutdown
func (s *PipelineSegment) Done() {
	s.group.Done()
}

// IPipelineConfigReceiver is the interface a segment exposes when it wants
// notifying about configuration reload
type IPipelineConfigReceiver interface {
	getConfigReceiverStruct() *PipelineConfigReceiver
}

// PipelineConfigReceiver is included into a pipeline segment struct to provide
// configuration reload capabilities
type PipelineConfigReceiver struct {
	configChan <-chan *config.Config
}

func (s *PipelineConfigReceiver) getConfigReceiverStruct() *PipelineConfigReceiver {
	return s
}

// OnConfig provides a channel which receives new configuration structures when
// a configuration reload happens
func (s *PipelineConfigReceiver) OnConfig() <-chan *config.Config {
	return s.configChan
}

// IPipelineSnapshotProvider is implemented by segments that report status
type IPipelineSnapshotProvider interface {
	Snapshot() []*Snapshot
}
