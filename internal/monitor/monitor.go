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

// Package monitor polls the engine's REST endpoint and reports the result as
// health check events.
// monitor 包轮询引擎的 REST 端点，并将结果以健康检查事件上报。
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"go.uber.org/zap"
)

// HealthChecker pings the engine.
// HealthChecker 探测引擎健康状态。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Machine receives health check events.
type Machine interface {
	Fire(ctx context.Context, event statemachine.Event) error
	State() statemachine.State
}

// HealthMonitor fires HEALTH_CHECK_OK or HEALTH_CHECK_FAILED on every tick
// while the machine is in a state where the engine should be running.
// HealthMonitor 在状态机处于引擎应运行的状态时，每次轮询触发 HEALTH_CHECK_OK 或 HEALTH_CHECK_FAILED。
type HealthMonitor struct {
	checker  HealthChecker
	machine  Machine
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHealthMonitor creates a health monitor.
// NewHealthMonitor 创建健康监控器。
func NewHealthMonitor(checker HealthChecker, machine Machine, cfg config.HealthCheckConfig, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultHealthCheckInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &HealthMonitor{
		checker:  checker,
		machine:  machine,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start starts the polling loop. Calling Start on a running monitor is a no-op.
// Start 启动轮询循环；监控器已运行时调用无效果。
func (m *HealthMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.running = true

	m.logger.Info("Health monitor started", zap.Duration("interval", m.interval))
	go m.loop(ctx, m.done)
	return nil
}

// Stop stops the polling loop and waits for it to exit.
// Stop 停止轮询循环并等待其退出。
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("Health monitor stopped")
}

func (m *HealthMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce pings the engine once and fires the matching event. It returns
// the fired event and false when no check was due in the current state.
// CheckOnce 探测一次引擎并触发对应事件；若当前状态无需检查，返回 false。
func (m *HealthMonitor) CheckOnce(ctx context.Context) (statemachine.Event, bool) {
	state := m.machine.State()
	if !state.ProcessExpected() {
		return "", false
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.checker.Ping(checkCtx)
	cancel()

	event := statemachine.EventHealthCheckOK
	if err != nil {
		event = statemachine.EventHealthCheckFailed
		m.logger.Debug("Health check failed", zap.String("state", string(state)), zap.Error(err))
	}
	if ctx.Err() != nil {
		return "", false
	}
	if err := m.machine.Fire(ctx, event); err != nil {
		m.logger.Error("Failed to apply health check event", zap.String("event", string(event)), zap.Error(err))
	}
	return event, true
}
