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

// Package lifecycle publishes node lifecycle events to a Redis channel so
// that cluster management tooling can follow state changes and removals.
// lifecycle 包将节点生命周期事件发布到 Redis 频道，供集群管理工具跟踪状态变化与节点移除。
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Publisher is the subset of the redis client used to publish messages.
// Publisher 是用于发布消息的 Redis 客户端子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NewRedisClient connects to redis with tracing instrumentation and verifies
// the connection with a ping.
// NewRedisClient 连接 Redis 并启用追踪，随后通过 ping 验证连接。
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument redis client: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return client, nil
}

// Notifier publishes lifecycle events of one node. It is a state machine
// tracer for STATE_CHANGED events and publishes REMOVED on request.
// Notifier 发布单个节点的生命周期事件；作为状态机追踪器发布 STATE_CHANGED，并按需发布 REMOVED。
type Notifier struct {
	client   Publisher
	channel  string
	nodeID   string
	nodeName string
	logger   *otelzap.Logger
	now      func() time.Time
}

// NewNotifier creates a notifier publishing on channel.
// NewNotifier 创建在 channel 上发布事件的通知器。
func NewNotifier(client Publisher, channel string, node config.NodeConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = config.DefaultRedisChannel
	}
	return &Notifier{
		client:   client,
		channel:  channel,
		nodeID:   node.ID,
		nodeName: node.Name,
		logger:   otelzap.New(logger),
		now:      time.Now,
	}
}

// Publish sends ev after stamping it with the node identity and time.
// Publish 在填充节点标识与时间后发送 ev。
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	ev.NodeID = n.nodeID
	ev.NodeName = n.nodeName
	if ev.Timestamp.IsZero() {
		ev.Timestamp = n.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode lifecycle event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// PublishRemoved announces that the node has been removed from the cluster.
// PublishRemoved 宣告节点已从集群移除。
func (n *Notifier) PublishRemoved(ctx context.Context) {
	if err := n.Publish(ctx, Event{Type: EventRemoved}); err != nil {
		n.logger.Ctx(ctx).Error("Failed to publish removal event", zap.Error(err))
		return
	}
	n.logger.Ctx(ctx).Info("Published removal event", zap.String("channel", n.channel))
}

// OnTransition implements statemachine.Tracer.
func (n *Notifier) OnTransition(ctx context.Context, tr statemachine.Transition) {
	err := n.Publish(ctx, Event{
		Type:    EventStateChanged,
		Trigger: tr.Event,
		Source:  tr.Source,
		Target:  tr.Target,
	})
	if err != nil {
		n.logger.Ctx(ctx).Warn("Failed to publish state change", zap.Stringer("transition", tr), zap.Error(err))
	}
}
