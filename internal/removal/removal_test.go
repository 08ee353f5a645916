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

package removal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seatunnel/datanode/internal/cluster"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu         sync.Mutex
	exclude    string
	getErr     error
	putErr     error
	gets       int
	puts       []*string
	relocating []int
	healthErr  error
}

func (f *fakeCluster) GetSetting(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if key != cluster.AllocationExcludeNameSetting {
		return "", nil
	}
	return f.exclude, f.getErr
}

func (f *fakeCluster) PutTransientSetting(_ context.Context, _ string, value *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, value)
	if f.putErr != nil {
		return f.putErr
	}
	if value == nil {
		f.exclude = ""
	} else {
		f.exclude = *value
	}
	return nil
}

func (f *fakeCluster) Health(context.Context) (*cluster.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	n := 0
	if len(f.relocating) > 0 {
		n = f.relocating[0]
		if len(f.relocating) > 1 {
			f.relocating = f.relocating[1:]
		}
	}
	return &cluster.Health{RelocatingShards: n}, nil
}

func (f *fakeCluster) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type fakeStopper struct {
	stops atomic.Int32
	err   error
}

func (s *fakeStopper) Stop(context.Context) error {
	s.stops.Add(1)
	return s.err
}

var (
	toAvailable = statemachine.Transition{Event: statemachine.EventHealthCheckOK, Source: statemachine.StateStarting, Target: statemachine.StateAvailable}
	toRemoving  = statemachine.Transition{Event: statemachine.EventProcessRemove, Source: statemachine.StateAvailable, Target: statemachine.StateRemoving}
)

// TestTracer_ClearsStaleExclusionOnce tests the first-available exclusion check
// TestTracer_ClearsStaleExclusionOnce 测试首次可用时的排除设置检查
func TestTracer_ClearsStaleExclusionOnce(t *testing.T) {
	fc := &fakeCluster{exclude: "node-1"}
	tr := NewTracer("node-1", fc, nil)
	ctx := context.Background()

	tr.OnTransition(ctx, toAvailable)
	assert.True(t, tr.AllocationExcludeChecked())
	assert.Equal(t, "", fc.exclude)
	require.Len(t, fc.puts, 1)
	assert.Nil(t, fc.puts[0])

	tr.OnTransition(ctx, toAvailable)
	assert.Equal(t, 1, fc.getCount())
}

func TestTracer_KeepsForeignExclusion(t *testing.T) {
	fc := &fakeCluster{exclude: "node-2"}
	tr := NewTracer("node-1", fc, nil)

	tr.OnTransition(context.Background(), toAvailable)
	assert.True(t, tr.AllocationExcludeChecked())
	assert.Equal(t, "node-2", fc.exclude)
	assert.Empty(t, fc.puts)
}

func TestTracer_RetriesCheckAfterFailure(t *testing.T) {
	fc := &fakeCluster{getErr: errors.New("connection refused")}
	tr := NewTracer("node-1", fc, nil)

	tr.OnTransition(context.Background(), toAvailable)
	assert.False(t, tr.AllocationExcludeChecked())

	fc.getErr = nil
	tr.OnTransition(context.Background(), toAvailable)
	assert.True(t, tr.AllocationExcludeChecked())
	assert.Equal(t, 2, fc.getCount())
}

// TestExclude tests the exclusion write that precedes every removal
// TestExclude 测试每次移除前的排除设置写入
func TestExclude(t *testing.T) {
	fc := &fakeCluster{exclude: "node-2"}

	require.NoError(t, Exclude(context.Background(), fc, "node-1"))
	assert.Equal(t, "node-1", fc.exclude)
	require.Len(t, fc.puts, 1)
	assert.Equal(t, "node-1", *fc.puts[0])

	fc.putErr = errors.New("forbidden")
	err := Exclude(context.Background(), fc, "node-1")
	assert.ErrorIs(t, err, ErrExcludeFailed)
	assert.ErrorContains(t, err, "forbidden")
}

func TestTracer_RemoveRearmsCheck(t *testing.T) {
	fc := &fakeCluster{}
	tr := NewTracer("node-1", fc, nil)
	ctx := context.Background()

	tr.OnTransition(ctx, toAvailable)
	require.True(t, tr.AllocationExcludeChecked())

	tr.OnTransition(ctx, toRemoving)
	assert.False(t, tr.AllocationExcludeChecked())
	assert.Empty(t, fc.puts)

	// Back to available after a reset: the node's own exclusion is lifted.
	require.NoError(t, Exclude(ctx, fc, "node-1"))
	tr.OnTransition(ctx, toAvailable)
	assert.True(t, tr.AllocationExcludeChecked())
	assert.Equal(t, "", fc.exclude)
}

func TestTracer_IgnoresOtherTransitions(t *testing.T) {
	fc := &fakeCluster{exclude: "node-1"}
	tr := NewTracer("node-1", fc, nil)

	tr.OnTransition(context.Background(), statemachine.Transition{
		Event: statemachine.EventHealthCheckFailed, Source: statemachine.StateAvailable, Target: statemachine.StateNotResponding,
	})
	assert.Zero(t, fc.getCount())
	assert.Empty(t, fc.puts)
}

// TestPoller_CheckOnce tests one poll round per relocation state
// TestPoller_CheckOnce 测试各迁移状态下的单次轮询
func TestPoller_CheckOnce(t *testing.T) {
	fc := &fakeCluster{relocating: []int{2, 0}}
	stopper := &fakeStopper{}
	var removed atomic.Int32
	p := NewPoller(time.Hour, fc, stopper, func(context.Context) { removed.Add(1) }, nil)
	ctx := context.Background()

	finished, err := p.CheckOnce(ctx)
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Zero(t, stopper.stops.Load())

	finished, err = p.CheckOnce(ctx)
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, int32(1), stopper.stops.Load())
	assert.Equal(t, int32(1), removed.Load())

	finished, err = p.CheckOnce(ctx)
	assert.True(t, finished)
	assert.ErrorIs(t, err, ErrPollerStopped)
	assert.Equal(t, int32(1), stopper.stops.Load())
}

func TestPoller_StopFailureKeepsPolling(t *testing.T) {
	fc := &fakeCluster{}
	stopper := &fakeStopper{err: errors.New("stuck")}
	p := NewPoller(time.Hour, fc, stopper, nil, nil)

	finished, err := p.CheckOnce(context.Background())
	assert.Error(t, err)
	assert.False(t, finished)

	fc.healthErr = errors.New("timeout")
	_, err = p.CheckOnce(context.Background())
	assert.EqualError(t, err, "timeout")
}

func TestPoller_Loop(t *testing.T) {
	fc := &fakeCluster{relocating: []int{3, 1, 0}}
	stopper := &fakeStopper{}
	removed := make(chan struct{})
	p := NewPoller(10*time.Millisecond, fc, stopper, func(ctx context.Context) {
		assert.NoError(t, ctx.Err())
		close(removed)
	}, nil)

	p.Start()
	p.Start()

	select {
	case <-removed:
	case <-time.After(5 * time.Second):
		t.Fatal("poller never reported removal")
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller loop did not exit")
	}
	assert.Equal(t, int32(1), stopper.stops.Load())
}

// TestPoller_ShutdownIdempotent tests repeated and concurrent Shutdown calls
// TestPoller_ShutdownIdempotent 测试重复与并发调用 Shutdown
func TestPoller_ShutdownIdempotent(t *testing.T) {
	p := NewPoller(time.Hour, &fakeCluster{relocating: []int{1}}, &fakeStopper{}, nil, nil)
	p.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
		}()
	}
	wg.Wait()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller loop did not exit")
	}
}
