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

// Package datanode is the process facade of a search engine data node. It
// owns the engine process and the removal poller and reports what happens to
// them as state machine events.
// datanode 包是搜索引擎数据节点的进程门面，持有引擎进程与移除轮询器，并将其变化以状态机事件上报。
package datanode

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/process"
	"github.com/seatunnel/datanode/internal/removal"
	"github.com/seatunnel/datanode/internal/statemachine"
	"go.uber.org/zap"
)

// ProcessRunner spawns and terminates the engine process.
// ProcessRunner 启动和终止引擎进程。
type ProcessRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SetExitHandler(h process.ExitHandler)
	Info() process.Info
	Stdout() []string
	Stderr() []string
}

// Machine is the lifecycle state machine the node reports to.
// Machine 是节点上报事件的生命周期状态机。
type Machine interface {
	Fire(ctx context.Context, event statemachine.Event) error
	State() statemachine.State
	Counters() statemachine.CounterSnapshot
}

// RemovalListener is told when a removal has completed.
type RemovalListener interface {
	PublishRemoved(ctx context.Context)
}

// Options configures a Node.
// Options 配置 Node。
type Options struct {
	Node     config.NodeConfig
	Removal  config.RemovalConfig
	Runner   ProcessRunner
	Cluster  removal.Cluster
	Listener RemovalListener
	Logger   *zap.Logger
}

// Info is a snapshot of the node for status reporting.
// Info 是用于状态上报的节点快照。
type Info struct {
	NodeID     string                       `json:"node_id"`
	NodeName   string                       `json:"node_name"`
	State      statemachine.State           `json:"state"`
	Configured bool                         `json:"configured"`
	Removing   bool                         `json:"removing"`
	Process    process.Info                 `json:"process"`
	Counters   statemachine.CounterSnapshot `json:"counters"`
}

type machineHolder struct {
	Machine
}

// Node implements statemachine.Process on top of a process runner.
// Node 基于进程运行器实现 statemachine.Process。
type Node struct {
	node     config.NodeConfig
	interval time.Duration
	runner   ProcessRunner
	cluster  removal.Cluster
	listener RemovalListener
	logger   *zap.Logger

	machine    atomic.Pointer[machineHolder]
	configured atomic.Bool

	mu     sync.Mutex
	poller *removal.Poller
}

// New creates a node facade and registers its exit handler on the runner.
// New 创建节点门面并在运行器上注册退出回调。
func New(opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Removal.PollInterval
	if interval <= 0 {
		interval = config.DefaultRemovalPollInterval
	}
	n := &Node{
		node:     opts.Node,
		interval: interval,
		runner:   opts.Runner,
		cluster:  opts.Cluster,
		listener: opts.Listener,
		logger:   logger.With(zap.String("node", opts.Node.Name)),
	}
	n.runner.SetExitHandler(n.onExit)
	return n
}

// AttachMachine sets the state machine the node reports to. It must be
// called before any lifecycle method.
// AttachMachine 设置节点上报的状态机，必须在调用任何生命周期方法之前调用。
func (n *Node) AttachMachine(m Machine) {
	n.machine.Store(&machineHolder{Machine: m})
}

func (n *Node) fire(ctx context.Context, event statemachine.Event) error {
	holder := n.machine.Load()
	if holder == nil {
		return ErrNoMachine
	}
	return holder.Fire(ctx, event)
}

// Configure marks the engine as configured and reports PROCESS_PREPARED.
// Configure 将引擎标记为已配置并上报 PROCESS_PREPARED。
func (n *Node) Configure(ctx context.Context) error {
	n.configured.Store(true)
	return n.fire(ctx, statemachine.EventProcessPrepared)
}

// IsConfigured reports whether Configure has been called.
func (n *Node) IsConfigured() bool {
	return n.configured.Load()
}

// Start spawns the engine and reports PROCESS_STARTED.
// Start 启动引擎并上报 PROCESS_STARTED。
func (n *Node) Start(ctx context.Context) error {
	if err := n.runner.Start(ctx); err != nil {
		n.logger.Error("Failed to start engine process", zap.Error(err))
		return err
	}
	return n.fire(ctx, statemachine.EventProcessStarted)
}

// Stop reports PROCESS_STOPPED, then terminates the engine.
// Stop 上报 PROCESS_STOPPED 后终止引擎。
func (n *Node) Stop(ctx context.Context) error {
	if err := n.fire(ctx, statemachine.EventProcessStopped); err != nil {
		n.logger.Warn("Failed to report engine stop", zap.Error(err))
	}
	return n.runner.Stop(ctx)
}

// Remove excludes the node from shard allocation, then polls the cluster
// until its shards are relocated. No poller is started when the exclusion
// fails.
// Remove 将节点排除出分片分配，然后轮询集群直到分片迁移完成；排除失败时不启动轮询器。
func (n *Node) Remove(ctx context.Context) error {
	if err := removal.Exclude(ctx, n.cluster, n.node.Name); err != nil {
		n.logger.Error("Failed to exclude node from shard allocation", zap.Error(err))
		return err
	}
	n.logger.Info("Node excluded from shard allocation")

	poller := removal.NewPoller(n.interval, n.cluster, n, n.onRemoved, n.logger)

	n.mu.Lock()
	previous := n.poller
	n.poller = poller
	n.mu.Unlock()

	if previous != nil {
		previous.Shutdown()
	}
	n.logger.Info("Node removal started", zap.Duration("poll_interval", n.interval))
	poller.Start()
	return nil
}

func (n *Node) onRemoved(ctx context.Context) {
	n.mu.Lock()
	n.poller = nil
	n.mu.Unlock()

	// A failed health check during removal leaves REMOVING for FAILED, and
	// the stop then lands in TERMINATED. Only a real REMOVED is announced.
	if state := n.state(); state != statemachine.StateRemoved {
		n.logger.Warn("Shards relocated but node is not removed", zap.String("state", state.String()))
		return
	}
	n.logger.Info("Node removed from cluster")
	if n.listener != nil {
		n.listener.PublishRemoved(ctx)
	}
}

func (n *Node) state() statemachine.State {
	holder := n.machine.Load()
	if holder == nil {
		return ""
	}
	return holder.State()
}

// Reset terminates the engine, drops removal state and starts the engine
// again when it is configured or insecure startup is enabled.
// Reset 终止引擎、清除移除状态，并在已配置或启用不安全启动时重新启动引擎。
func (n *Node) Reset(ctx context.Context) error {
	if err := n.runner.Stop(ctx); err != nil {
		return err
	}
	n.stopPoller()

	switch {
	case n.configured.Load():
		if err := n.Configure(ctx); err != nil {
			return err
		}
		return n.Start(ctx)
	case n.node.InsecureStartup:
		return n.Start(ctx)
	default:
		return nil
	}
}

func (n *Node) stopPoller() {
	n.mu.Lock()
	poller := n.poller
	n.poller = nil
	n.mu.Unlock()
	if poller != nil {
		poller.Shutdown()
	}
}

func (n *Node) onExit(info process.Info, requested bool) {
	if requested {
		return
	}
	n.logger.Warn("Engine process terminated unexpectedly",
		zap.Int("pid", info.PID),
		zap.Int("exit_code", info.ExitCode),
		zap.String("error", info.LastError),
	)
	if err := n.fire(context.Background(), statemachine.EventProcessTerminated); err != nil {
		n.logger.Error("Failed to report engine termination", zap.Error(err))
	}
}

// Info returns a status snapshot of the node.
// Info 返回节点的状态快照。
func (n *Node) Info() Info {
	n.mu.Lock()
	removing := n.poller != nil
	n.mu.Unlock()

	info := Info{
		NodeID:     n.node.ID,
		NodeName:   n.node.Name,
		Configured: n.configured.Load(),
		Removing:   removing,
		Process:    n.runner.Info(),
	}
	if holder := n.machine.Load(); holder != nil {
		info.State = holder.State()
		info.Counters = holder.Counters()
	}
	return info
}

// Stdout returns the buffered engine standard output.
func (n *Node) Stdout() []string { return n.runner.Stdout() }

// Stderr returns the buffered engine standard error.
func (n *Node) Stderr() []string { return n.runner.Stderr() }

// Shutdown stops removal polling and the engine without reporting events.
// Shutdown 停止移除轮询与引擎，不上报事件。
func (n *Node) Shutdown(ctx context.Context) error {
	n.stopPoller()
	return n.runner.Stop(ctx)
}
