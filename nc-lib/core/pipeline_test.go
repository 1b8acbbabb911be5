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
	"testing"
	"time"

	"github.com/nuodb/nuoca/nc-lib/config"
)

type testSegment struct {
	PipelineSegment
	PipelineConfigReceiver

	configs chan *config.Config
}

func (s *testSegment) Run() {
	defer s.Done()
	for {
		select {
		case <-s.OnShutdown():
			return
		case cfg := <-s.OnConfig():
			s.configs <- cfg
		}
	}
}

func (s *testSegment) Snapshot() []*Snapshot {
	snap := NewSnapshot("Test")
	snap.AddEntry("Status", "OK")
	return []*Snapshot{snap}
}

func TestPipelineLifecycle(t *testing.T) {
	pipeline := NewPipeline()
	segment := &testSegment{configs: make(chan *config.Config, 1)}
	pipeline.Add(segment)
	pipeline.Start()

	cfg := config.NewConfig()
	pipeline.SendConfig(cfg)

	select {
	case received := <-segment.configs:
		if received != cfg {
			t.Errorf("Segment received the wrong configuration")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Segment did not receive configuration")
	}

	snap := pipeline.Snapshot()
	sub := snap.Sub("Test")
	if sub == nil || sub.Entries["Status"] != "OK" {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}

	pipeline.Shutdown()

	done := make(chan struct{})
	go func() {
		pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Pipeline did not shut down")
	}
}

func TestOverridesApply(t *testing.T) {
	cfg := config.NewConfig()
	interval := 10 * time.Second
	start := int64(2000000000)
	verbose := true

	overrides := &Overrides{CollectionInterval: &interval, StartTime: &start, Verbose: &verbose}
	if err := overrides.Apply(cfg); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	general := cfg.General()
	if general.CollectionInterval != interval || general.StartTime != start || !general.Verbose {
		t.Errorf("Overrides were not applied: %+v", general)
	}

	short := 500 * time.Millisecond
	if err := (&Overrides{CollectionInterval: &short}).Apply(cfg); err == nil {
		t.Errorf("Sub-second interval override succeeded unexpectedly")
	}
}
