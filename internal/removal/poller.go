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
	"sync"
	"time"

	"github.com/seatunnel/datanode/internal/cluster"
	"go.uber.org/zap"
)

// HealthReader reads cluster health.
type HealthReader interface {
	Health(ctx context.Context) (*cluster.Health, error)
}

// Stopper stops the engine process once its shards are gone.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Poller waits for the shards of a removed node to relocate, then stops the
// engine and reports the removal. A poller runs once; create a new one per removal.
// Poller 等待被移除节点的分片迁移完成，然后停止引擎并报告移除完成。轮询器只运行一次，每次移除需新建。
type Poller struct {
	interval  time.Duration
	cluster   HealthReader
	stopper   Stopper
	onRemoved func(ctx context.Context)
	logger    *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewPoller creates a removal poller. onRemoved may be nil.
// NewPoller 创建移除轮询器，onRemoved 可以为 nil。
func NewPoller(interval time.Duration, health HealthReader, stopper Stopper, onRemoved func(ctx context.Context), logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		interval:  interval,
		cluster:   health,
		stopper:   stopper,
		onRemoved: onRemoved,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the polling loop. Only the first call has an effect.
// Start 启动轮询循环，仅第一次调用生效。
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		go p.loop()
	})
}

func (p *Poller) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			finished, err := p.CheckOnce(p.ctx)
			if err != nil {
				p.logger.Warn("Removal check failed, will retry", zap.Error(err))
			}
			if finished {
				return
			}
		}
	}
}

// CheckOnce reads cluster health once. When no shard is relocating it stops
// the engine, reports the removal and shuts the poller down.
// CheckOnce 读取一次集群健康状态；若无分片迁移，则停止引擎、报告移除并关闭轮询器。
func (p *Poller) CheckOnce(ctx context.Context) (bool, error) {
	if p.ctx.Err() != nil {
		return true, ErrPollerStopped
	}

	health, err := p.cluster.Health(ctx)
	if err != nil {
		return false, err
	}
	if health == nil {
		return false, ErrNoHealth
	}
	if health.RelocatingShards > 0 {
		p.logger.Debug("Waiting for shards to relocate", zap.Int("relocating_shards", health.RelocatingShards))
		return false, nil
	}

	p.logger.Info("All shards relocated, stopping engine")
	if err := p.stopper.Stop(ctx); err != nil {
		return false, err
	}
	if p.onRemoved != nil {
		p.onRemoved(ctx)
	}
	p.Shutdown()
	return true, nil
}

// Shutdown stops the polling loop. It is safe to call more than once.
// Shutdown 停止轮询循环，可安全多次调用。
func (p *Poller) Shutdown() {
	p.stopOnce.Do(p.cancel)
}

// Done is closed when the polling loop has exited. It never closes if Start was not called.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
