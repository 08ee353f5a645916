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
)

// OutcomeKind tags the variant held by an Outcome.
// OutcomeKind 标识 Outcome 所持有的变体。
type OutcomeKind int

const (
	// OutcomeIgnore consumes the event without a transition.
	// OutcomeIgnore 消费事件但不发生转换。
	OutcomeIgnore OutcomeKind = iota
	// OutcomeGoTo moves to a fixed target state.
	// OutcomeGoTo 转换到固定的目标状态。
	OutcomeGoTo
	// OutcomeDynamic resolves the target when the event is fired.
	// OutcomeDynamic 在事件触发时计算目标状态。
	OutcomeDynamic
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIgnore:
		return "ignore"
	case OutcomeGoTo:
		return "goto"
	case OutcomeDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Resolver picks the target of a dynamic edge, usually from counter state.
// Resolver 选择动态边的目标状态，通常依据计数器状态。
type Resolver func() State

// Action is a side effect bound to entering a state.
// Action 是绑定到进入某状态时的副作用。
type Action func(ctx context.Context) error

// Outcome is the tagged union Ignore | GoTo(state) | Dynamic(resolver).
// Outcome 是带标签的联合类型：Ignore | GoTo(state) | Dynamic(resolver)。
type Outcome struct {
	Kind    OutcomeKind
	Target  State
	Resolve Resolver
}

// Ignore returns the outcome that swallows an event.
func Ignore() Outcome {
	return Outcome{Kind: OutcomeIgnore}
}

// GoTo returns the outcome that moves to target.
func GoTo(target State) Outcome {
	return Outcome{Kind: OutcomeGoTo, Target: target}
}

// Dynamic returns the outcome whose target is computed by resolve.
func Dynamic(resolve Resolver) Outcome {
	return Outcome{Kind: OutcomeDynamic, Resolve: resolve}
}

// Edge is one permitted (state, event) pair.
// Edge 表示一个允许的（状态，事件）组合。
type Edge struct {
	Event   Event
	Outcome Outcome

	// Counter is incremented each time the edge is taken, before a dynamic
	// target is resolved.
	// Counter 在每次走该边时递增，且先于动态目标的计算。
	Counter *FailureCounter

	// Action runs after the machine has entered the target through this edge.
	// Action 在状态机经由此边进入目标状态后执行。
	Action Action
}

// Table maps every state to its outgoing edges. OnEntry holds actions run
// whenever a state is entered, whatever the source, reentry included.
// Table 将每个状态映射到其出边。OnEntry 保存进入某状态时（不论来源，包括重入）执行的动作。
type Table struct {
	Edges   map[State][]Edge
	OnEntry map[State]Action
}

// Lookup returns the edge declared for event in state.
// Lookup 返回在 state 中为 event 声明的边。
func (t *Table) Lookup(state State, event Event) (Edge, bool) {
	for _, edge := range t.Edges[state] {
		if edge.Event == event {
			return edge, true
		}
	}
	return Edge{}, false
}

// Validate checks the table at construction time. Absent (state, event)
// pairs are allowed: firing them is rejected at runtime and routed to the
// fallback event.
// Validate 在构造时检查转换表。允许缺失的（状态，事件）组合：运行时触发它们会被拒绝并转为回退事件。
func (t *Table) Validate() error {
	if t == nil || len(t.Edges) == 0 {
		return fmt.Errorf("%w: no edges declared", ErrInvalidTable)
	}
	for state, edges := range t.Edges {
		if !state.IsValid() {
			return fmt.Errorf("%w: unknown state %q", ErrInvalidTable, state)
		}
		seen := make(map[Event]bool, len(edges))
		for _, edge := range edges {
			if !edge.Event.IsValid() {
				return fmt.Errorf("%w: unknown event %q in state %s", ErrInvalidTable, edge.Event, state)
			}
			if seen[edge.Event] {
				return fmt.Errorf("%w: event %s declared twice in state %s", ErrInvalidTable, edge.Event, state)
			}
			seen[edge.Event] = true

			switch edge.Outcome.Kind {
			case OutcomeIgnore:
				if edge.Action != nil || edge.Counter != nil {
					return fmt.Errorf("%w: ignored event %s in state %s cannot carry side effects", ErrInvalidTable, edge.Event, state)
				}
			case OutcomeGoTo:
				if !edge.Outcome.Target.IsValid() {
					return fmt.Errorf("%w: unknown target %q for %s in state %s", ErrInvalidTable, edge.Outcome.Target, edge.Event, state)
				}
			case OutcomeDynamic:
				if edge.Outcome.Resolve == nil || edge.Counter == nil {
					return fmt.Errorf("%w: dynamic edge %s in state %s needs a resolver and a counter", ErrInvalidTable, edge.Event, state)
				}
			default:
				return fmt.Errorf("%w: %s in state %s has outcome %s", ErrInvalidTable, edge.Event, state, edge.Outcome.Kind)
			}
		}
	}
	for state := range t.OnEntry {
		if !state.IsValid() {
			return fmt.Errorf("%w: entry action for unknown state %q", ErrInvalidTable, state)
		}
	}
	return nil
}

// Counters groups the three independent counters of one machine.
// Counters 汇总一个状态机的三个独立计数器。
type Counters struct {
	RestFailures    *FailureCounter
	StartupFailures *FailureCounter
	Reboots         *FailureCounter
}

// NewCounters creates the counters with the given thresholds.
// NewCounters 使用给定阈值创建计数器。
func NewCounters(maxRestFailures, maxStartupFailures, maxReboots int64) *Counters {
	return &Counters{
		RestFailures:    OneBased(maxRestFailures),
		StartupFailures: OneBased(maxStartupFailures),
		Reboots:         OneBased(maxReboots),
	}
}

// DefaultCounters creates the counters with the default thresholds.
func DefaultCounters() *Counters {
	return NewCounters(DefaultMaxRestFailures, DefaultMaxStartupFailures, DefaultMaxReboots)
}

// CounterSnapshot is a point-in-time copy of the counters for status reporting.
// CounterSnapshot 是用于状态上报的计数器快照。
type CounterSnapshot struct {
	RestFailures    int64 `json:"rest_failures" yaml:"rest_failures"`
	StartupFailures int64 `json:"startup_failures" yaml:"startup_failures"`
	Reboots         int64 `json:"reboots" yaml:"reboots"`
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		RestFailures:    c.RestFailures.Count(),
		StartupFailures: c.StartupFailures.Count(),
		Reboots:         c.Reboots.Count(),
	}
}

// thresholdResolver stays in within until counter trips, then goes to FAILED.
func thresholdResolver(counter *FailureCounter, within State) Resolver {
	return func() State {
		if counter.FailedTooManyTimes() {
			return StateFailed
		}
		return within
	}
}

// DefaultTable builds the lifecycle table of a search-engine data node.
// DefaultTable 构建搜索引擎数据节点的生命周期转换表。
func DefaultTable(counters *Counters, process Process) *Table {
	rest := counters.RestFailures
	startup := counters.StartupFailures
	reboots := counters.Reboots

	return &Table{
		Edges: map[State][]Edge{
			StateWaitingForConfiguration: {
				{Event: EventProcessPrepared, Outcome: GoTo(StatePrepared)},
				// Insecure startup skips configuration and starts the process directly.
				{Event: EventProcessStarted, Outcome: GoTo(StateStarting)},
				{Event: EventProcessStopped, Outcome: Ignore()},
				{Event: EventHealthCheckFailed, Outcome: Ignore()},
			},
			StatePrepared: {
				{Event: EventProcessStarted, Outcome: GoTo(StateStarting)},
				{Event: EventProcessStopped, Outcome: GoTo(StateTerminated)},
				{Event: EventProcessTerminated, Outcome: GoTo(StateTerminated)},
				{Event: EventHealthCheckFailed, Outcome: Ignore()},
			},
			StateStarting: {
				{Event: EventProcessStopped, Outcome: GoTo(StateTerminated)},
				{Event: EventProcessTerminated, Outcome: GoTo(StateTerminated)},
				{Event: EventHealthCheckOK, Outcome: GoTo(StateAvailable)},
				{Event: EventHealthCheckFailed, Outcome: Dynamic(thresholdResolver(startup, StateStarting)), Counter: startup},
			},
			StateAvailable: {
				{Event: EventProcessPrepared, Outcome: Ignore()},
				{Event: EventProcessStopped, Outcome: GoTo(StateTerminated)},
				{Event: EventProcessTerminated, Outcome: GoTo(StateTerminated)},
				{Event: EventHealthCheckOK, Outcome: GoTo(StateAvailable), Action: func(context.Context) error {
					rest.ResetFailuresCounter()
					reboots.ResetFailuresCounter()
					return nil
				}},
				// The first failed check already counts against the REST budget.
				{Event: EventHealthCheckFailed, Outcome: GoTo(StateNotResponding), Counter: rest},
				{Event: EventProcessRemove, Outcome: GoTo(StateRemoving), Action: process.Remove},
			},
			StateNotResponding: {
				{Event: EventProcessStopped, Outcome: GoTo(StateTerminated)},
				{Event: EventProcessTerminated, Outcome: GoTo(StateTerminated)},
				{Event: EventHealthCheckOK, Outcome: GoTo(StateAvailable)},
				{Event: EventHealthCheckFailed, Outcome: Dynamic(thresholdResolver(rest, StateNotResponding)), Counter: rest},
			},
			StateFailed: {
				{Event: EventProcessStopped, Outcome: GoTo(StateTerminated)},
				{Event: EventProcessTerminated, Outcome: GoTo(StateTerminated)},
				{Event: EventHealthCheckOK, Outcome: GoTo(StateAvailable)},
				{Event: EventHealthCheckFailed, Outcome: Ignore()},
			},
			StateTerminated: {
				{Event: EventProcessStarted, Outcome: GoTo(StateStarting), Counter: reboots},
				{Event: EventProcessStopped, Outcome: Ignore()},
				{Event: EventProcessTerminated, Outcome: Ignore()},
				{Event: EventHealthCheckFailed, Outcome: Ignore()},
			},
			StateRemoving: {
				{Event: EventProcessStopped, Outcome: GoTo(StateRemoved)},
				{Event: EventHealthCheckOK, Outcome: Ignore()},
				{Event: EventHealthCheckFailed, Outcome: GoTo(StateFailed)},
			},
			StateRemoved: {
				{Event: EventProcessStopped, Outcome: Ignore()},
				{Event: EventReset, Outcome: GoTo(StateWaitingForConfiguration), Action: process.Reset},
			},
		},
		OnEntry: map[State]Action{
			StateAvailable: func(context.Context) error {
				rest.ResetFailuresCounter()
				startup.ResetFailuresCounter()
				return nil
			},
		},
	}
}
