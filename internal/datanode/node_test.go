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

package datanode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seatunnel/datanode/internal/cluster"
	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/process"
	"github.com/seatunnel/datanode/internal/removal"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	startErr error
	onExit   process.ExitHandler
}

func (r *fakeRunner) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	if r.running {
		return process.ErrProcessAlreadyRunning
	}
	r.running = true
	r.starts++
	return nil
}

func (r *fakeRunner) Stop(context.Context) error {
	r.mu.Lock()
	r.stops++
	wasRunning := r.running
	r.running = false
	handler := r.onExit
	r.mu.Unlock()
	if wasRunning && handler != nil {
		handler(process.Info{Status: process.StatusExited}, true)
	}
	return nil
}

// crash simulates the engine exiting on its own.
func (r *fakeRunner) crash() {
	r.mu.Lock()
	r.running = false
	handler := r.onExit
	r.mu.Unlock()
	handler(process.Info{Status: process.StatusExited, ExitCode: 137}, false)
}

func (r *fakeRunner) SetExitHandler(h process.ExitHandler) { r.onExit = h }

func (r *fakeRunner) Info() process.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return process.Info{PID: 42, Status: process.StatusRunning}
	}
	return process.Info{Status: process.StatusStopped}
}

func (r *fakeRunner) Stdout() []string { return []string{"out"} }
func (r *fakeRunner) Stderr() []string { return []string{"err"} }

func (r *fakeRunner) counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

type fakeCluster struct {
	mu         sync.Mutex
	relocating []int
	exclude    string
	putErr     error
	puts       int
}

func (f *fakeCluster) Health(context.Context) (*cluster.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	if len(f.relocating) > 0 {
		n, f.relocating = f.relocating[0], f.relocating[1:]
	}
	return &cluster.Health{RelocatingShards: n}, nil
}

func (f *fakeCluster) GetSetting(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exclude, nil
}

func (f *fakeCluster) PutTransientSetting(_ context.Context, _ string, value *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.exclude = ""
	if value != nil {
		f.exclude = *value
	}
	return nil
}

func (f *fakeCluster) setRelocating(shards ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relocating = shards
}

func (f *fakeCluster) excluded() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exclude
}

type recordingListener struct {
	removed atomic.Int32
}

func (l *recordingListener) PublishRemoved(context.Context) { l.removed.Add(1) }

func (n *Node) currentPoller() *removal.Poller {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.poller
}

type fixture struct {
	node     *Node
	machine  *statemachine.Machine
	runner   *fakeRunner
	cluster  *fakeCluster
	listener *recordingListener
}

func newFixture(t *testing.T, nodeCfg config.NodeConfig) *fixture {
	t.Helper()
	f := &fixture{runner: &fakeRunner{}, cluster: &fakeCluster{}, listener: &recordingListener{}}
	f.node = New(Options{
		Node:     nodeCfg,
		Removal:  config.RemovalConfig{PollInterval: 10 * time.Millisecond},
		Runner:   f.runner,
		Cluster:  f.cluster,
		Listener: f.listener,
	})
	m, err := statemachine.NewMachine(f.node, nil)
	require.NoError(t, err)
	f.machine = m
	f.node.AttachMachine(m)
	t.Cleanup(func() { _ = f.node.Shutdown(context.Background()) })
	return f
}

func (f *fixture) available(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.node.Configure(ctx))
	require.NoError(t, f.node.Start(ctx))
	require.NoError(t, f.machine.Fire(ctx, statemachine.EventHealthCheckOK))
	require.Equal(t, statemachine.StateAvailable, f.machine.State())
}

// TestNode_Lifecycle tests configure, start and stop
// TestNode_Lifecycle 测试配置、启动与停止
func TestNode_Lifecycle(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	ctx := context.Background()

	require.NoError(t, f.node.Configure(ctx))
	assert.Equal(t, statemachine.StatePrepared, f.machine.State())
	assert.True(t, f.node.IsConfigured())

	require.NoError(t, f.node.Start(ctx))
	assert.Equal(t, statemachine.StateStarting, f.machine.State())

	require.NoError(t, f.node.Stop(ctx))
	assert.Equal(t, statemachine.StateTerminated, f.machine.State())
	starts, stops := f.runner.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestNode_UnexpectedExitReportsTermination(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.available(t)

	f.runner.crash()
	assert.Equal(t, statemachine.StateTerminated, f.machine.State())
}

func TestNode_StartFailure(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.runner.startErr = errors.New("permission denied")

	require.NoError(t, f.node.Configure(context.Background()))
	assert.EqualError(t, f.node.Start(context.Background()), "permission denied")
	assert.Equal(t, statemachine.StatePrepared, f.machine.State())
}

// TestNode_RemoveAndReset tests the full removal round trip
// TestNode_RemoveAndReset 测试完整的移除与重置流程
func TestNode_RemoveAndReset(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.cluster.relocating = []int{2, 1, 0}
	f.available(t)
	ctx := context.Background()

	require.NoError(t, f.machine.Fire(ctx, statemachine.EventProcessRemove))
	assert.Equal(t, statemachine.StateRemoving, f.machine.State())
	assert.True(t, f.node.Info().Removing)
	assert.Equal(t, "node-1", f.cluster.excluded())

	assert.Eventually(t, func() bool {
		return f.machine.State() == statemachine.StateRemoved && f.listener.removed.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
	_, stops := f.runner.counts()
	assert.Equal(t, 1, stops)
	assert.False(t, f.node.Info().Removing)

	require.NoError(t, f.machine.Fire(ctx, statemachine.EventReset))
	assert.Equal(t, statemachine.StateStarting, f.machine.State())
	starts, _ := f.runner.counts()
	assert.Equal(t, 2, starts)

	require.NoError(t, f.machine.Fire(ctx, statemachine.EventHealthCheckOK))
	assert.Equal(t, statemachine.StateAvailable, f.machine.State())
}

// TestNode_RemoveExcludeFailure tests that a rejected exclusion fails the
// removal instead of draining a node that still holds shards
// TestNode_RemoveExcludeFailure 测试排除设置被拒绝时移除失败，而不是停止仍持有分片的节点
func TestNode_RemoveExcludeFailure(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.cluster.putErr = errors.New("cluster_block_exception")
	f.available(t)

	require.NoError(t, f.machine.Fire(context.Background(), statemachine.EventProcessRemove))
	assert.Equal(t, statemachine.StateFailed, f.machine.State())
	assert.Nil(t, f.node.currentPoller())
	assert.False(t, f.node.Info().Removing)

	// Several poll intervals later the engine is still untouched.
	time.Sleep(100 * time.Millisecond)
	_, stops := f.runner.counts()
	assert.Zero(t, stops)
	assert.True(t, f.node.Info().Process.Alive())
	assert.Zero(t, f.listener.removed.Load())
	assert.Equal(t, statemachine.StateFailed, f.machine.State())
}

func TestNode_RemoveExcludeFailureThenRetry(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.cluster.putErr = errors.New("timeout")
	f.available(t)
	ctx := context.Background()

	require.NoError(t, f.machine.Fire(ctx, statemachine.EventProcessRemove))
	require.Equal(t, statemachine.StateFailed, f.machine.State())

	f.cluster.mu.Lock()
	f.cluster.putErr = nil
	f.cluster.mu.Unlock()
	require.NoError(t, f.machine.Fire(ctx, statemachine.EventHealthCheckOK))
	require.NoError(t, f.machine.Fire(ctx, statemachine.EventProcessRemove))
	assert.Equal(t, statemachine.StateRemoving, f.machine.State())
	assert.Equal(t, "node-1", f.cluster.excluded())

	assert.Eventually(t, func() bool {
		return f.machine.State() == statemachine.StateRemoved && f.listener.removed.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

// TestNode_RemovedOnlyAnnouncedFromRemoved tests that a removal interrupted by
// a failed health check does not publish REMOVED
// TestNode_RemovedOnlyAnnouncedFromRemoved 测试被健康检查失败打断的移除不会发布 REMOVED
func TestNode_RemovedOnlyAnnouncedFromRemoved(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.cluster.relocating = []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
	f.available(t)
	ctx := context.Background()

	require.NoError(t, f.machine.Fire(ctx, statemachine.EventProcessRemove))
	require.Equal(t, statemachine.StateRemoving, f.machine.State())
	require.NoError(t, f.machine.Fire(ctx, statemachine.EventHealthCheckFailed))
	require.Equal(t, statemachine.StateFailed, f.machine.State())

	f.cluster.setRelocating()
	assert.Eventually(t, func() bool {
		return f.node.currentPoller() == nil
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, statemachine.StateTerminated, f.machine.State())
	_, stops := f.runner.counts()
	assert.Equal(t, 1, stops)
	assert.Zero(t, f.listener.removed.Load())
}

func TestNode_ResetWithoutConfiguration(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	require.NoError(t, f.node.Reset(context.Background()))
	assert.Equal(t, statemachine.StateWaitingForConfiguration, f.machine.State())
	starts, _ := f.runner.counts()
	assert.Zero(t, starts)
}

func TestNode_ResetInsecureStartup(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1", InsecureStartup: true})
	require.NoError(t, f.node.Reset(context.Background()))
	assert.Equal(t, statemachine.StateStarting, f.machine.State())
}

func TestNode_RemoveReplacesPoller(t *testing.T) {
	f := newFixture(t, config.NodeConfig{Name: "node-1"})
	f.cluster.relocating = []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}

	require.NoError(t, f.node.Remove(context.Background()))
	first := f.node.currentPoller()
	require.NoError(t, f.node.Remove(context.Background()))
	assert.NotSame(t, first, f.node.currentPoller())

	select {
	case <-first.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replaced poller still running")
	}
}

func TestNode_WithoutMachine(t *testing.T) {
	n := New(Options{Node: config.NodeConfig{Name: "n"}, Runner: &fakeRunner{}})
	assert.ErrorIs(t, n.Configure(context.Background()), ErrNoMachine)
	assert.Empty(t, n.Info().State)
}

func TestNode_Info(t *testing.T) {
	f := newFixture(t, config.NodeConfig{ID: "id-1", Name: "node-1"})
	f.available(t)

	info := f.node.Info()
	assert.Equal(t, "id-1", info.NodeID)
	assert.Equal(t, "node-1", info.NodeName)
	assert.Equal(t, statemachine.StateAvailable, info.State)
	assert.True(t, info.Configured)
	assert.False(t, info.Removing)
	assert.Equal(t, 42, info.Process.PID)
	assert.Equal(t, []string{"out"}, f.node.Stdout())
	assert.Equal(t, []string{"err"}, f.node.Stderr())
}
