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

package restart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type countingStarter struct {
	starts atomic.Int32
	err    error
}

func (s *countingStarter) Start(context.Context) error {
	s.starts.Add(1)
	return s.err
}

// engine is a process facade whose Start reports PROCESS_STARTED to its machine.
type engine struct {
	machine *statemachine.Machine
	starts  atomic.Int32
}

func (e *engine) Start(ctx context.Context) error {
	e.starts.Add(1)
	return e.machine.Fire(ctx, statemachine.EventProcessStarted)
}

func (e *engine) Stop(ctx context.Context) error {
	return e.machine.Fire(ctx, statemachine.EventProcessStopped)
}

func (e *engine) Remove(context.Context) error { return nil }
func (e *engine) Reset(context.Context) error  { return nil }

func newSupervised(t *testing.T, cfg config.WatchdogConfig) (*engine, *Watchdog) {
	t.Helper()
	e := &engine{}
	m, err := statemachine.NewMachine(e, nil)
	require.NoError(t, err)
	e.machine = m
	w := NewWatchdog(e, cfg, nil)
	t.Cleanup(w.Close)
	m.AddTracer(w)
	return e, w
}

var terminated = statemachine.Transition{
	Event:  statemachine.EventProcessTerminated,
	Source: statemachine.StateAvailable,
	Target: statemachine.StateTerminated,
}

// TestWatchdog_RestartsUntilBudgetExhausted tests the restart budget against a real machine
// TestWatchdog_RestartsUntilBudgetExhausted 使用真实状态机测试重启次数上限
func TestWatchdog_RestartsUntilBudgetExhausted(t *testing.T) {
	e, w := newSupervised(t, config.WatchdogConfig{Enabled: true, MaxRestarts: 3})
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	require.Equal(t, statemachine.StateStarting, e.machine.State())

	for i := 1; i <= 3; i++ {
		require.NoError(t, e.machine.Fire(ctx, statemachine.EventProcessTerminated))
		assert.Equal(t, statemachine.StateStarting, e.machine.State(), "restart %d", i)
		assert.True(t, w.IsActive())
	}
	assert.Equal(t, int32(4), e.starts.Load())
	assert.Equal(t, int64(3), e.machine.Counters().Reboots)

	require.NoError(t, e.machine.Fire(ctx, statemachine.EventProcessTerminated))
	assert.Equal(t, statemachine.StateTerminated, e.machine.State())
	assert.False(t, w.IsActive())
	assert.Equal(t, int32(4), e.starts.Load())
}

func TestWatchdog_ManualStopDeactivates(t *testing.T) {
	e, w := newSupervised(t, config.WatchdogConfig{Enabled: true, MaxRestarts: 3})
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, statemachine.StateTerminated, e.machine.State())
	assert.False(t, w.IsActive())

	require.NoError(t, e.Start(ctx))
	assert.True(t, w.IsActive())
	require.NoError(t, e.machine.Fire(ctx, statemachine.EventProcessTerminated))
	assert.Equal(t, statemachine.StateStarting, e.machine.State())
}

func TestWatchdog_AvailableResetsBudget(t *testing.T) {
	e, w := newSupervised(t, config.WatchdogConfig{Enabled: true, MaxRestarts: 2})
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.machine.Fire(ctx, statemachine.EventProcessTerminated))
	require.NoError(t, e.machine.Fire(ctx, statemachine.EventProcessTerminated))
	assert.Equal(t, int64(2), w.Restarts())

	require.NoError(t, e.machine.Fire(ctx, statemachine.EventHealthCheckOK))
	assert.Equal(t, statemachine.StateAvailable, e.machine.State())
	assert.Zero(t, w.Restarts())
}

func TestWatchdog_DelayedRestart(t *testing.T) {
	e, _ := newSupervised(t, config.WatchdogConfig{Enabled: true, MaxRestarts: 3, RestartDelay: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.machine.Fire(ctx, statemachine.EventProcessTerminated))
	assert.Equal(t, statemachine.StateTerminated, e.machine.State())

	assert.Eventually(t, func() bool {
		return e.machine.State() == statemachine.StateStarting
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), e.starts.Load())
}

func TestWatchdog_DeactivatedDuringDelay(t *testing.T) {
	s := &countingStarter{}
	w := NewWatchdog(s, config.WatchdogConfig{MaxRestarts: 3, RestartDelay: 30 * time.Millisecond}, nil)
	defer w.Close()
	ctx := context.Background()

	w.OnTransition(ctx, terminated)
	w.OnTransition(ctx, statemachine.Transition{
		Event: statemachine.EventProcessStopped, Source: statemachine.StateStarting, Target: statemachine.StateTerminated,
	})

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, s.starts.Load())
}

func TestWatchdog_CloseCancelsPendingRestart(t *testing.T) {
	s := &countingStarter{}
	w := NewWatchdog(s, config.WatchdogConfig{MaxRestarts: 3, RestartDelay: time.Hour}, nil)

	w.OnTransition(context.Background(), terminated)
	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Zero(t, s.starts.Load())
}

func TestWatchdog_StartFailureCountsAgainstBudget(t *testing.T) {
	s := &countingStarter{err: errors.New("exec format error")}
	w := NewWatchdog(s, config.WatchdogConfig{MaxRestarts: 1}, nil)
	defer w.Close()

	w.OnTransition(context.Background(), terminated)
	w.OnTransition(context.Background(), terminated)
	assert.Equal(t, int32(1), s.starts.Load())
	assert.False(t, w.IsActive())
}

func TestNewWatchdog_DefaultBudget(t *testing.T) {
	w := NewWatchdog(&countingStarter{}, config.WatchdogConfig{}, nil)
	defer w.Close()
	assert.True(t, w.IsActive())
	assert.Equal(t, int64(DefaultMaxRestarts), w.budget.Max())
}

// For any budget and number of terminations, the watchdog restarts at most
// budget times and stays active exactly while terminations fit the budget.
// 对于任意重启上限与终止次数，看门狗最多重启上限次，且仅在终止次数不超过上限时保持激活。
func TestProperty_RestartBudget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxRestarts := rapid.Int64Range(1, 6).Draw(t, "maxRestarts")
		terminations := rapid.IntRange(0, 12).Draw(t, "terminations")

		s := &countingStarter{}
		w := NewWatchdog(s, config.WatchdogConfig{MaxRestarts: maxRestarts}, nil)
		defer w.Close()

		for i := 0; i < terminations; i++ {
			w.OnTransition(context.Background(), terminated)
		}

		want := int64(terminations)
		if want > maxRestarts {
			want = maxRestarts
		}
		if got := int64(s.starts.Load()); got != want {
			t.Fatalf("restarts: got %d, want %d", got, want)
		}
		if w.IsActive() != (int64(terminations) <= maxRestarts) {
			t.Fatalf("active=%v after %d terminations with budget %d", w.IsActive(), terminations, maxRestarts)
		}
	})
}
