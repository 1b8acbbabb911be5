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

package scheduler

import (
	"container/heap"
	"time"
)

// Callback is called by Next() when a callback entry is due
type Callback func()

// Scheduler is a timer queue that fires a single timer for the earliest due
// entry. It is not safe for concurrent use and is intended to be driven from
// the select loop of a single routine.
type Scheduler struct {
	q     queue
	index map[interface{}]*entry
	timer *time.Timer
	next  time.Time
	now   func() time.Time
}

// NewScheduler returns a new, empty, scheduler
func NewScheduler() *Scheduler {
	s := &Scheduler{
		index: make(map[interface{}]*entry),
		timer: time.NewTimer(time.Hour),
		now:   time.Now,
	}
	s.Reschedule()
	return s
}

// Set schedules v to be returned by Next() after the given duration
// Setting a value already scheduled moves it
func (s *Scheduler) Set(v interface{}, d time.Duration) {
	s.set(v, s.now().Add(d), nil)
}

// SetAt schedules v to be returned by Next() at the given absolute time
func (s *Scheduler) SetAt(v interface{}, when time.Time) {
	s.set(v, when, nil)
}

// SetCallback schedules a callback that Next() calls, instead of returning,
// after the given duration
func (s *Scheduler) SetCallback(v interface{}, d time.Duration, callback Callback) {
	s.set(v, s.now().Add(d), callback)
}

func (s *Scheduler) set(v interface{}, when time.Time, callback Callback) {
	if item, ok := s.index[v]; ok {
		item.when = when
		item.callback = callback
		heap.Fix(&s.q, item.index)
	} else {
		item := &entry{value: v, callback: callback, when: when}
		s.index[v] = item
		heap.Push(&s.q, item)
	}

	// Only an entry earlier than the armed timer needs a reschedule
	if !s.next.IsZero() && !s.q.peek().when.Before(s.next) {
		return
	}
	s.Reschedule()
}

// Remove a scheduled value or callback, a no-op if it is not scheduled
func (s *Scheduler) Remove(v interface{}) {
	if item, ok := s.index[v]; ok {
		heap.Remove(&s.q, item.index)
		delete(s.index, v)
	}
}

// When returns the time v is due, and false if it is not scheduled
func (s *Scheduler) When(v interface{}) (time.Time, bool) {
	item, ok := s.index[v]
	if !ok {
		return time.Time{}, false
	}
	return item.when, true
}

// Len returns the number of scheduled entries
func (s *Scheduler) Len() int {
	return len(s.q)
}

// Next returns the next value that is due, or nil if none are due
// Due callbacks are called silently, so nil may be returned even though
// callbacks ran
func (s *Scheduler) Next() interface{} {
	now := s.now()
	for {
		item := s.q.peek()
		if item == nil || item.when.After(now) {
			return nil
		}
		heap.Pop(&s.q)
		delete(s.index, item.value)
		if item.callback == nil {
			return item.value
		}
		item.callback()
	}
}

// OnNext returns a channel that receives when the earliest entry is due
// Next may still return nil after it fires. With nothing scheduled a nil
// channel is returned, which blocks forever in a select.
func (s *Scheduler) OnNext() <-chan time.Time {
	if len(s.q) == 0 {
		return nil
	}
	return s.timer.C
}

// Reschedule arms the timer for the earliest entry, and must be called after
// OnNext fires and Next has been drained
func (s *Scheduler) Reschedule() {
	if !s.timer.Stop() && len(s.timer.C) != 0 {
		<-s.timer.C
	}
	item := s.q.peek()
	if item == nil {
		s.next = time.Time{}
		return
	}
	s.next = item.when
	s.timer.Reset(s.next.Sub(s.now()))
}
