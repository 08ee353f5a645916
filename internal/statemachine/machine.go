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

// Package statemachine supervises the lifecycle of an externally managed
// search-engine process: start, health checks, failure accounting, removal
// and reset.
// statemachine 包监管外部搜索引擎进程的生命周期：启动、健康检查、失败计数、移除与重置。
//
// The transitions are declared as data (Table) and executed by
// github.com/qmuntal/stateless. All events of one machine are applied by a
// single writer; tracers are notified synchronously inside that critical
// section, trading throughput for strict ordering.
// 转换以数据（Table）形式声明，由 github.com/qmuntal/stateless 执行。
// 同一状态机的所有事件由单一写者依次应用；追踪器在该临界区内同步通知，以吞吐换取严格顺序。
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/qmuntal/stateless"
	"github.com/seatunnel/datanode/internal/otel_trace"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Process is the facade of the supervised engine process. The machine calls
// Remove when entering REMOVING and Reset when leaving REMOVED.
// Process 是被监管引擎进程的门面。状态机在进入 REMOVING 时调用 Remove，在离开 REMOVED 时调用 Reset。
type Process interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Remove(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Options configures a Machine. Zero values select the defaults.
// Options 配置状态机，零值表示使用默认值。
type Options struct {
	// InitialState defaults to WAITING_FOR_CONFIGURATION.
	InitialState State
	// Counters defaults to DefaultCounters().
	Counters *Counters
	// Table defaults to DefaultTable(Counters, process).
	Table *Table
	// FallbackEvent is fired when an event cannot be applied; defaults to HEALTH_CHECK_FAILED.
	FallbackEvent Event
	// Tracers are registered in order at construction.
	Tracers []Tracer
	Logger  *zap.Logger
}

type request struct {
	ctx      context.Context
	event    Event
	fallback Event
	done     chan error
}

// firing marks contexts handed to entry actions and tracers.
type firing struct {
	machine *Machine
	source  State
	event   Event
}

type firingKey struct{}

// Machine is the lifecycle state machine of one supervised process.
// Machine 是单个被监管进程的生命周期状态机。
type Machine struct {
	table    *Table
	counters *Counters
	fallback Event
	sm       *stateless.StateMachine
	tracers  *TracerAggregator
	logger   *otelzap.Logger

	state atomic.Value // State

	mu       sync.Mutex
	queue    []*request
	draining bool
}

// NewMachine builds and validates a machine for process.
// NewMachine 为 process 构建并校验状态机。
func NewMachine(process Process, opts *Options) (*Machine, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	initial := opts.InitialState
	if initial == "" {
		initial = StateWaitingForConfiguration
	}
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInitialState, initial)
	}

	counters := opts.Counters
	if counters == nil {
		counters = DefaultCounters()
	}

	table := opts.Table
	if table == nil {
		if process == nil {
			return nil, ErrNilProcess
		}
		table = DefaultTable(counters, process)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	fallback := opts.FallbackEvent
	if fallback == "" {
		fallback = EventHealthCheckFailed
	}
	if !fallback.IsValid() {
		return nil, fmt.Errorf("%w: unknown fallback event %q", ErrInvalidTable, fallback)
	}

	m := &Machine{
		table:    table,
		counters: counters,
		fallback: fallback,
		sm:       stateless.NewStateMachineWithMode(initial, stateless.FiringImmediate),
		tracers:  NewTracerAggregator(logger),
		logger:   otelzap.New(logger),
	}
	m.state.Store(initial)
	for _, t := range opts.Tracers {
		m.tracers.AddTracer(t)
	}
	m.configure()
	return m, nil
}

func (m *Machine) configure() {
	for _, state := range AllStates {
		st := state
		cfg := m.sm.Configure(st)
		cfg.OnEntry(func(ctx context.Context, _ ...any) error {
			return m.enter(ctx, st)
		})
		for _, edge := range m.table.Edges[st] {
			m.permit(cfg, st, edge)
		}
	}

	m.sm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		target := t.Destination.(State)
		m.state.Store(target)
		m.tracers.OnTransition(ctx, Transition{
			Event:  t.Trigger.(Event),
			Source: t.Source.(State),
			Target: target,
		})
	})
}

func (m *Machine) permit(cfg *stateless.StateConfiguration, source State, edge Edge) {
	switch {
	case edge.Outcome.Kind == OutcomeIgnore:
		cfg.Ignore(edge.Event)
	case edge.Outcome.Kind == OutcomeDynamic || edge.Counter != nil:
		// Edges with a counter go through the selector so the increment
		// happens exactly when the edge is taken.
		cfg.PermitDynamic(edge.Event, func(context.Context, ...any) (stateless.State, error) {
			if edge.Counter != nil {
				edge.Counter.Increment()
			}
			if edge.Outcome.Kind == OutcomeDynamic {
				return edge.Outcome.Resolve(), nil
			}
			return edge.Outcome.Target, nil
		})
	case edge.Outcome.Target == source:
		cfg.PermitReentry(edge.Event)
	default:
		cfg.Permit(edge.Event, edge.Outcome.Target)
	}
}

// enter runs the state entry action, then the action of the edge being taken.
func (m *Machine) enter(ctx context.Context, state State) error {
	if action := m.table.OnEntry[state]; action != nil {
		if err := action(ctx); err != nil {
			return err
		}
	}
	f, ok := ctx.Value(firingKey{}).(*firing)
	if !ok || f.machine != m {
		return nil
	}
	if edge, found := m.table.Lookup(f.source, f.event); found && edge.Action != nil {
		return edge.Action(ctx)
	}
	return nil
}

// State returns the current state without taking the machine lock.
// State 无锁返回当前状态。
func (m *Machine) State() State {
	return m.state.Load().(State)
}

// IsInState reports whether the machine currently is in state.
func (m *Machine) IsInState(state State) bool {
	return m.State() == state
}

// Counters returns a snapshot of the failure counters.
// Counters 返回失败计数器的快照。
func (m *Machine) Counters() CounterSnapshot {
	return m.counters.Snapshot()
}

// AddTracer registers an additional tracer.
// AddTracer 注册一个额外的追踪器。
func (m *Machine) AddTracer(t Tracer) {
	m.tracers.AddTracer(t)
}

// Graph renders the configured transitions in DOT format.
// Graph 以 DOT 格式输出已配置的转换。
func (m *Machine) Graph() string {
	return m.sm.ToGraph()
}

// Fire applies event, falling back to the default fallback event
// (HEALTH_CHECK_FAILED) when the event cannot be applied.
// Fire 应用 event；无法应用时回退为默认回退事件（HEALTH_CHECK_FAILED）。
func (m *Machine) Fire(ctx context.Context, event Event) error {
	return m.FireWithFallback(ctx, event, m.fallback)
}

// FireWithFallback applies event; if the event is rejected or one of its
// actions fails, fallback is applied instead. An error is returned only if
// the fallback fails too.
//
// Calls from outside the machine block until their event is applied. Calls
// made with a context received from an entry action or a tracer are queued
// behind the current transition and return immediately.
// FireWithFallback 应用 event；若事件被拒绝或其动作失败，则改为应用 fallback。仅当回退事件也失败时才返回错误。
// 外部调用会阻塞直到事件被应用；使用入口动作或追踪器收到的上下文发起的调用会排在当前转换之后并立即返回。
func (m *Machine) FireWithFallback(ctx context.Context, event, fallback Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := &request{ctx: ctx, event: event, fallback: fallback, done: make(chan error, 1)}
	f, nested := ctx.Value(firingKey{}).(*firing)
	nested = nested && f.machine == m

	m.mu.Lock()
	m.queue = append(m.queue, req)
	if m.draining {
		m.mu.Unlock()
		if nested {
			return nil
		}
		return <-req.done
	}
	m.draining = true
	m.mu.Unlock()

	m.drain()
	return <-req.done
}

func (m *Machine) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		req := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		req.done <- m.apply(req)
	}
}

func (m *Machine) apply(req *request) error {
	err := m.applyOne(req.ctx, req.event)
	if err == nil {
		return nil
	}

	m.logger.Ctx(req.ctx).Warn("Failed to apply event, firing fallback event",
		zap.String("event", string(req.event)),
		zap.String("fallback_event", string(req.fallback)),
		zap.String("state", string(m.State())),
		zap.Error(err),
	)
	fallbackErr := m.applyOne(req.ctx, req.fallback)
	if fallbackErr == nil {
		return nil
	}

	m.logger.Ctx(req.ctx).Error("Fallback event failed",
		zap.String("event", string(req.event)),
		zap.String("fallback_event", string(req.fallback)),
		zap.String("state", string(m.State())),
		zap.Error(fallbackErr),
	)
	return fmt.Errorf("%w: %w", ErrFallbackFailed, errors.Join(err, fallbackErr))
}

func (m *Machine) applyOne(ctx context.Context, event Event) (err error) {
	source := m.State()
	ctx, span := otel_trace.Start(ctx, "statemachine.fire", trace.WithAttributes(
		attribute.String("statemachine.event", string(event)),
		attribute.String("statemachine.source", string(source)),
	))
	ctx = context.WithValue(ctx, firingKey{}, &firing{machine: m, source: source, event: event})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
		// An entry action may fail after the engine already moved.
		if current, ok := m.sm.MustState().(State); ok {
			m.state.Store(current)
		}
		target := m.State()
		span.SetAttributes(attribute.String("statemachine.target", string(target)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err == nil {
			m.logger.Ctx(ctx).Debug("Event applied",
				zap.String("event", string(event)),
				zap.String("source", string(source)),
				zap.String("target", string(target)),
			)
		}
	}()

	return m.sm.FireCtx(ctx, event)
}
