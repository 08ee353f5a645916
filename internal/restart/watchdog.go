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

// Package restart restarts the engine process after an unexpected exit.
// restart 包在引擎进程意外退出后自动重启它。
//
// This package provides:
// 此包提供：
// - Automatic restart on process termination / 进程终止时自动重启
// - Restart budget limiting / 重启次数限制
// - Deactivation on manual stop / 手动停止时停用
package restart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultMaxRestarts is the default restart budget / 默认重启次数上限
const DefaultMaxRestarts = 3

// Starter starts the engine process and reports PROCESS_STARTED.
// Starter 启动引擎进程并上报 PROCESS_STARTED。
type Starter interface {
	Start(ctx context.Context) error
}

// Watchdog is a state machine tracer that restarts the engine when it
// terminates unexpectedly, until its restart budget is exhausted.
// Watchdog 是一个状态机追踪器，在引擎意外终止时重启它，直到重启次数用尽。
type Watchdog struct {
	starter Starter
	delay   time.Duration
	budget  *statemachine.FailureCounter
	logger  *otelzap.Logger

	active atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// NewWatchdog creates an active watchdog from the watchdog configuration.
// NewWatchdog 根据看门狗配置创建处于激活状态的看门狗。
func NewWatchdog(starter Starter, cfg config.WatchdogConfig, logger *zap.Logger) *Watchdog {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRestarts := cfg.MaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = DefaultMaxRestarts
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watchdog{
		starter: starter,
		delay:   cfg.RestartDelay,
		budget:  statemachine.OneBased(maxRestarts),
		logger:  otelzap.New(logger),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.active.Store(true)
	return w
}

// IsActive reports whether the watchdog will restart the next termination.
// IsActive 判断看门狗是否会在下次终止时重启进程。
func (w *Watchdog) IsActive() bool {
	return w.active.Load()
}

// Restarts returns the number of restarts counted against the current budget.
func (w *Watchdog) Restarts() int64 {
	return w.budget.Count()
}

// OnTransition implements statemachine.Tracer.
func (w *Watchdog) OnTransition(ctx context.Context, tr statemachine.Transition) {
	switch {
	case tr.Event == statemachine.EventProcessStopped:
		if w.active.Swap(false) {
			w.logger.Ctx(ctx).Info("Engine stopped manually, watchdog deactivated")
		}
	case tr.Event == statemachine.EventProcessStarted:
		w.active.Store(true)
	case tr.Target == statemachine.StateAvailable:
		w.budget.ResetFailuresCounter()
	case tr.Event == statemachine.EventProcessTerminated && tr.Target == statemachine.StateTerminated:
		w.onTerminated(ctx)
	}
}

func (w *Watchdog) onTerminated(ctx context.Context) {
	if !w.active.Load() {
		return
	}

	w.budget.Increment()
	if w.budget.FailedTooManyTimes() {
		w.active.Store(false)
		w.logger.Ctx(ctx).Error("Engine terminated too many times, giving up restarts",
			zap.Int64("max_restarts", w.budget.Max()))
		return
	}

	attempt := w.budget.Count()
	if w.delay <= 0 {
		w.restart(ctx, attempt)
		return
	}

	w.logger.Ctx(ctx).Info("Engine terminated, restart scheduled",
		zap.Int64("attempt", attempt), zap.Duration("delay", w.delay))
	w.pending.Add(1)
	go func() {
		defer w.pending.Done()
		timer := time.NewTimer(w.delay)
		defer timer.Stop()
		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
		}
		// A manual stop during the delay cancels the restart.
		if !w.active.Load() {
			w.logger.Ctx(w.ctx).Info("Watchdog deactivated during restart delay, skipping restart")
			return
		}
		w.restart(w.ctx, attempt)
	}()
}

func (w *Watchdog) restart(ctx context.Context, attempt int64) {
	w.logger.Ctx(ctx).Info("Restarting engine", zap.Int64("attempt", attempt))
	if err := w.starter.Start(ctx); err != nil {
		w.logger.Ctx(ctx).Error("Failed to restart engine", zap.Int64("attempt", attempt), zap.Error(err))
	}
}

// Close cancels pending delayed restarts and waits for them to return.
// Close 取消待执行的延迟重启并等待其返回。
func (w *Watchdog) Close() {
	w.cancel()
	w.pending.Wait()
}
