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

// Package process spawns and terminates the search engine process on behalf
// of the data node.
// process 包代表数据节点启动和终止搜索引擎进程。
//
// This package provides:
// 此包提供：
// - Start and Stop with graceful timeout / 带优雅超时的启动与停止
// - Exit notification / 进程退出通知
// - Bounded stdout and stderr buffers / 有界的标准输出与标准错误缓冲
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"go.uber.org/zap"
)

// Status represents the status of the engine process
// Status 表示引擎进程的状态
type Status string

const (
	// StatusStopped indicates the process was never started
	// StatusStopped 表示进程尚未启动
	StatusStopped Status = "stopped"

	// StatusRunning indicates the process is running
	// StatusRunning 表示进程正在运行
	StatusRunning Status = "running"

	// StatusStopping indicates a stop was requested and the process has not exited yet
	// StatusStopping 表示已请求停止但进程尚未退出
	StatusStopping Status = "stopping"

	// StatusExited indicates the process has exited
	// StatusExited 表示进程已退出
	StatusExited Status = "exited"
)

// DefaultGracefulTimeout is used when the engine config carries no stop timeout
// DefaultGracefulTimeout 是引擎配置未设置停止超时时使用的默认值
const DefaultGracefulTimeout = 30 * time.Second

// waitDelay bounds how long Wait keeps copying output after the process exited.
const waitDelay = 2 * time.Second

// Info is a snapshot of the engine process for external use
// Info 是供外部使用的引擎进程快照
type Info struct {
	PID       int           `json:"pid"`
	Status    Status        `json:"status"`
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
	ExitCode  int           `json:"exit_code"`
	LastError string        `json:"last_error,omitempty"`
}

// Alive reports whether the process is running or still stopping.
func (i Info) Alive() bool {
	return i.Status == StatusRunning || i.Status == StatusStopping
}

// ExitHandler is called once per process after it exits. requested is true
// when the exit follows a call to Stop.
// ExitHandler 在每个进程退出后调用一次；若退出由 Stop 引起，requested 为 true。
type ExitHandler func(info Info, requested bool)

// Runner starts and stops one engine process at a time.
// Runner 同一时间启动和停止一个引擎进程。
type Runner struct {
	cfg    config.EngineConfig
	logger *zap.Logger

	stdout *LineBuffer
	stderr *LineBuffer

	mu        sync.Mutex
	cmd       *exec.Cmd
	done      chan struct{}
	requested bool
	info      Info
	onExit    ExitHandler
}

// NewRunner creates a runner for the given engine configuration.
// NewRunner 根据引擎配置创建 Runner。
func NewRunner(cfg config.EngineConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		logger: logger,
		stdout: NewLineBuffer(cfg.ProcessLogsBufferSize),
		stderr: NewLineBuffer(cfg.ProcessLogsBufferSize),
		info:   Info{Status: StatusStopped},
	}
}

// SetExitHandler registers the callback invoked when a process exits.
// SetExitHandler 注册进程退出时调用的回调。
func (r *Runner) SetExitHandler(h ExitHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExit = h
}

// Start spawns the engine process and returns once it is running. The
// process outlives ctx; use Stop to terminate it.
// Start 启动引擎进程并在其运行后返回。进程生命周期不受 ctx 约束，需调用 Stop 终止。
func (r *Runner) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.cfg.Command == "" {
		return ErrNoCommand
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("%w: pid %d", ErrProcessAlreadyRunning, r.info.PID)
	}

	cmd := exec.Command(r.cfg.Command, r.cfg.Args...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.WaitDelay = waitDelay
	setProcGroupAttr(cmd)

	if err := cmd.Start(); err != nil {
		r.info.Status = StatusExited
		r.info.LastError = err.Error()
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	r.cmd = cmd
	r.done = make(chan struct{})
	r.requested = false
	r.info = Info{PID: cmd.Process.Pid, Status: StatusRunning, StartTime: time.Now()}

	r.logger.Info("Engine process started",
		zap.String("command", r.cfg.Command),
		zap.Strings("args", r.cfg.Args),
		zap.Int("pid", r.info.PID),
	)

	go r.wait(cmd, r.done)
	return nil
}

func (r *Runner) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	r.mu.Lock()
	info := r.info
	info.Status = StatusExited
	info.Uptime = time.Since(info.StartTime)
	if cmd.ProcessState != nil {
		info.ExitCode = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		info.LastError = err.Error()
	} else if err != nil {
		info.LastError = exitErr.String()
	}
	requested := r.requested
	handler := r.onExit
	r.info = info
	r.cmd = nil
	r.mu.Unlock()

	close(done)

	r.logger.Info("Engine process exited",
		zap.Int("pid", info.PID),
		zap.Int("exit_code", info.ExitCode),
		zap.Bool("requested", requested),
		zap.Duration("uptime", info.Uptime),
	)
	if handler != nil {
		handler(info, requested)
	}
}

// Stop terminates the process: SIGTERM to its process group first, SIGKILL
// after the configured stop timeout or when ctx is done. Stopping a process
// that is not running is a no-op.
// Stop 终止进程：先向进程组发送 SIGTERM，超过停止超时或 ctx 结束后发送 SIGKILL。进程未运行时不做任何操作。
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cmd, done := r.cmd, r.done
	if cmd == nil {
		r.mu.Unlock()
		return nil
	}
	r.requested = true
	r.info.Status = StatusStopping
	pid := r.info.PID
	r.mu.Unlock()

	r.logger.Info("Stopping engine process", zap.Int("pid", pid))
	if err := terminate(cmd); err != nil {
		r.logger.Warn("Failed to send SIGTERM to engine process", zap.Int("pid", pid), zap.Error(err))
	}

	timeout := r.cfg.StopTimeout
	if timeout <= 0 {
		timeout = DefaultGracefulTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		r.logger.Warn("Graceful shutdown timed out, killing engine process",
			zap.Int("pid", pid), zap.Duration("timeout", timeout))
	case <-ctx.Done():
		r.logger.Warn("Stop cancelled, killing engine process", zap.Int("pid", pid), zap.Error(ctx.Err()))
	}

	if err := kill(cmd); err != nil {
		r.logger.Warn("Failed to send SIGKILL to engine process", zap.Int("pid", pid), zap.Error(err))
	}
	<-done
	return ctx.Err()
}

// IsRunning reports whether a process is currently alive.
// IsRunning 判断进程当前是否存活。
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Info returns a snapshot of the current or last process.
// Info 返回当前或上一个进程的快照。
func (r *Runner) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.info
	if info.Alive() {
		info.Uptime = time.Since(info.StartTime)
	}
	return info
}

// Stdout returns the buffered standard output lines.
func (r *Runner) Stdout() []string { return r.stdout.Lines() }

// Stderr returns the buffered standard error lines.
func (r *Runner) Stderr() []string { return r.stderr.Lines() }
