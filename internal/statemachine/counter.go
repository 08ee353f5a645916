/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package statemachine

import "sync/atomic"

// Default failure thresholds of the three machine counters.
// 状态机三个计数器的默认失败阈值。
const (
	DefaultMaxRestFailures    = 3
	DefaultMaxStartupFailures = 5
	DefaultMaxReboots         = 3
)

// FailureCounter tolerates a fixed number of failures before reporting
// that it failed too many times.
// FailureCounter 在报告失败次数过多之前容忍固定次数的失败。
type FailureCounter struct {
	count       atomic.Int64
	maxFailures int64
}

// OneBased creates a counter that tolerates up to max increments; the
// (max+1)-th increment trips it. max below 1 is treated as 1.
// OneBased 创建一个最多容忍 max 次递增的计数器，第 max+1 次递增时触发。
func OneBased(max int64) *FailureCounter {
	if max < 1 {
		max = 1
	}
	return &FailureCounter{maxFailures: max}
}

// Increment records one failure.
// Increment 记录一次失败。
func (c *FailureCounter) Increment() {
	c.count.Add(1)
}

// FailedTooManyTimes reports whether the count exceeds the configured max.
// FailedTooManyTimes 判断计数是否超过配置的最大值。
func (c *FailureCounter) FailedTooManyTimes() bool {
	return c.count.Load() > c.maxFailures
}

// ResetFailuresCounter sets the count back to zero.
// ResetFailuresCounter 将计数重置为零。
func (c *FailureCounter) ResetFailuresCounter() {
	c.count.Store(0)
}

// Count returns the current count.
func (c *FailureCounter) Count() int64 {
	return c.count.Load()
}

// Max returns the configured threshold.
func (c *FailureCounter) Max() int64 {
	return c.maxFailures
}
