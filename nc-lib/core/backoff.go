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
	"math"
	"time"
)

// expFactor is the factor for exponential backoff
const expFactor = 2

// DefaultBaseDelay is the delay used for an ExpBackoff with no base delay
const DefaultBaseDelay = 1 * time.Second

// ExpBackoff implements an exponential backoff helper
type ExpBackoff struct {
	name      string
	baseDelay time.Duration
	maxDelay  time.Duration

	expCount    int
	lastTrigger time.Time
	retryAt     time.Time
	now         func() time.Time
}

// NewExpBackoff creates a new ExpBackoff structure with the given base delay,
// which doubles on each trigger up to maxDelay
func NewExpBackoff(name string, baseDelay time.Duration, maxDelay time.Duration) *ExpBackoff {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &ExpBackoff{
		name:      name,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		now:       time.Now,
	}
}

// Trigger informs the ExpBackoff that a failure occurred and returns the delay
// before the next attempt
// The failure count resets if the last trigger was longer ago than the delay
// that would now be used, so a recovered target starts again from the base
func (e *ExpBackoff) Trigger() time.Duration {
	now := e.now()
	nextDelay := e.calculateDelay(e.expCount)

	if e.expCount != 0 && now.Sub(e.lastTrigger) > nextDelay {
		log.Debugf("[%s] Backoff had recovered, resetting failure count", e.name)
		e.expCount = 0
		nextDelay = e.calculateDelay(0)
	}

	e.lastTrigger = now
	e.expCount++
	e.retryAt = now.Add(nextDelay)

	log.Debugf("[%s] Backoff (%d failures): %v", e.name, e.expCount, nextDelay)
	return nextDelay
}

// Ready returns true if the delay returned by the last Trigger has passed
func (e *ExpBackoff) Ready() bool {
	return !e.now().Before(e.retryAt)
}

// Failures returns the number of consecutive failures
func (e *ExpBackoff) Failures() int {
	return e.expCount
}

// Reset clears the failure count after a success
func (e *ExpBackoff) Reset() {
	e.expCount = 0
	e.retryAt = time.Time{}
}

func (e *ExpBackoff) calculateDelay(expCount int) time.Duration {
	delay := time.Duration(float64(e.baseDelay) * math.Pow(expFactor, float64(expCount)))
	if delay > e.maxDelay || delay <= 0 {
		return e.maxDelay
	}
	return delay
}
