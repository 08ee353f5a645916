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

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Transition describes one accepted, non-ignored transition.
// Transition 描述一次被接受且未被忽略的状态转换。
type Transition struct {
	Event  Event `json:"event"`
	Source State `json:"source"`
	Target State `json:"target"`
}

// IsReentry reports whether the transition stays in the same state.
func (t Transition) IsReentry() bool {
	return t.Source == t.Target
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", t.Source, t.Event, t.Target)
}

// Tracer observes transitions. Implementations must not mutate machine
// state other than by firing further events with the context they receive.
// Tracer 观察状态转换。实现不得直接修改状态机状态，只能使用收到的上下文触发后续事件。
type Tracer interface {
	OnTransition(ctx context.Context, t Transition)
}

// TracerFunc adapts a plain function to Tracer.
type TracerFunc func(ctx context.Context, t Transition)

// OnTransition implements Tracer.
func (f TracerFunc) OnTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

// TracerAggregator fans a transition out to every registered tracer in
// registration order. A panicking tracer is logged and skipped.
// TracerAggregator 按注册顺序将转换分发给所有已注册的追踪器。发生 panic 的追踪器会被记录并跳过。
type TracerAggregator struct {
	mu      sync.RWMutex
	tracers []Tracer
	logger  *zap.Logger
}

// NewTracerAggregator creates an empty aggregator.
// NewTracerAggregator 创建一个空的聚合器。
func NewTracerAggregator(logger *zap.Logger) *TracerAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TracerAggregator{logger: logger}
}

// AddTracer registers t. Tracers are never unregistered.
// AddTracer 注册 t。追踪器不会被注销。
func (a *TracerAggregator) AddTracer(t Tracer) {
	if t == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracers = append(a.tracers, t)
}

// Len returns the number of registered tracers.
func (a *TracerAggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tracers)
}

// OnTransition implements Tracer by notifying every registered tracer.
// OnTransition 通过通知所有已注册的追踪器来实现 Tracer。
func (a *TracerAggregator) OnTransition(ctx context.Context, t Transition) {
	a.mu.RLock()
	tracers := make([]Tracer, len(a.tracers))
	copy(tracers, a.tracers)
	a.mu.RUnlock()

	for i, tracer := range tracers {
		a.notify(ctx, i, tracer, t)
	}
}

func (a *TracerAggregator) notify(ctx context.Context, index int, tracer Tracer, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("State machine tracer panicked",
				zap.Int("tracer_index", index),
				zap.String("tracer", fmt.Sprintf("%T", tracer)),
				zap.Stringer("transition", t),
				zap.Any("panic", r),
			)
		}
	}()
	tracer.OnTransition(ctx, t)
}
