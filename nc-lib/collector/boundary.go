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
	"errors"
	"time"
)

// ErrStartTimeNotInFuture is returned when the configured start time has
// already passed
var ErrStartTimeNotInFuture = errors.New("start time must be in the future")

// firstBoundary returns the start of the first collection interval, which is
// the current second unless a start time is given
func firstBoundary(now time.Time, startTime int64) (time.Time, error) {
	if startTime == 0 {
		return time.Unix(now.Unix(), 0), nil
	}
	if now.Unix() >= startTime {
		return time.Time{}, ErrStartTimeNotInFuture
	}
	return time.Unix(startTime, 0), nil
}

// nextBoundary returns the start of the interval following previous. If that
// has already passed the boundaries that were missed are skipped, and the
// number skipped is returned.
func nextBoundary(previous time.Time, now time.Time, interval time.Duration) (time.Time, int64) {
	next := previous.Add(interval)
	if next.After(now) {
		return next, 0
	}
	missed := int64(now.Sub(previous) / interval)
	return previous.Add(time.Duration(missed+1) * interval), missed
}
