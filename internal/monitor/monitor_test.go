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

package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	failing atomic.Bool
	pings   atomic.Int32
}

func (c *fakeChecker) Ping(context.Context) error {
	c.pings.Add(1)
	if c.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

type fakeMachine struct {
	mu     sync.Mutex
	state  statemachine.State
	events []statemachine.Event
}

func (m *fakeMachine) Fire(_ context.Context, e statemachine.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *fakeMachine) State() statemachine.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *fakeMachine) fired() []statemachine.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]statemachine.Event(nil), m.events...)
}

// TestHealthMonitor_CheckOnce tests event selection per state and check result
// TestHealthMonitor_CheckOnce 测试不同状态与探测结果下的事件选择
func TestHealthMonitor_CheckOnce(t *testing.T) {
	tests := []struct {
		state   statemachine.State
		failing bool
		want    statemachine.Event
		checked bool
	}{
		{statemachine.StateStarting, false, statemachine.EventHealthCheckOK, true},
		{statemachine.StateAvailable, true, statemachine.EventHealthCheckFailed, true},
		{statemachine.StateFailed, false, statemachine.EventHealthCheckOK, true},
		{statemachine.StateRemoving, true, statemachine.EventHealthCheckFailed, true},
		{statemachine.StateWaitingForConfiguration, false, "", false},
		{statemachine.StatePrepared, false, "", false},
		{statemachine.StateTerminated, true, "", false},
		{statemachine.StateRemoved, false, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			checker := &fakeChecker{}
			checker.failing.Store(tt.failing)
			machine := &fakeMachine{state: tt.state}
			m := NewHealthMonitor(checker, machine, config.HealthCheckConfig{Interval: time.Second, Timeout: time.Second}, nil)

			event, checked := m.CheckOnce(context.Background())
			assert.Equal(t, tt.checked, checked)
			assert.Equal(t, tt.want, event)
			if checked {
				assert.Equal(t, []statemachine.Event{tt.want}, machine.fired())
			} else {
				assert.Zero(t, checker.pings.Load())
				assert.Empty(t, machine.fired())
			}
		})
	}
}

func TestHealthMonitor_DrivesMachine(t *testing.T) {
	checker := &fakeChecker{}
	machine, err := statemachine.NewMachine(nopProcess{}, &statemachine.Options{InitialState: statemachine.StateStarting})
	require.NoError(t, err)
	m := NewHealthMonitor(checker, machine, config.HealthCheckConfig{Interval: 10 * time.Millisecond, Timeout: 5 * time.Millisecond}, nil)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return machine.State() == statemachine.StateAvailable
	}, 5*time.Second, 10*time.Millisecond)

	checker.failing.Store(true)
	assert.Eventually(t, func() bool {
		return machine.State() == statemachine.StateFailed
	}, 5*time.Second, 10*time.Millisecond)

	checker.failing.Store(false)
	assert.Eventually(t, func() bool {
		return machine.State() == statemachine.StateAvailable
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealthMonitor_StopIsIdempotent(t *testing.T) {
	m := NewHealthMonitor(&fakeChecker{}, &fakeMachine{}, config.HealthCheckConfig{}, nil)
	m.Stop()
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
	assert.Equal(t, config.DefaultHealthCheckInterval, m.interval)
	assert.Equal(t, config.DefaultHealthCheckInterval, m.timeout)
}

type nopProcess struct{}

func (nopProcess) Start(context.Context) error  { return nil }
func (nopProcess) Stop(context.Context) error   { return nil }
func (nopProcess) Remove(context.Context) error { return nil }
func (nopProcess) Reset(context.Context) error  { return nil }
