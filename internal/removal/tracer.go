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

// Package removal drains a data node out of the search cluster: it keeps the
// allocation exclude setting in sync with the node lifecycle and polls the
// cluster until every shard has left the node.
// removal 包负责将数据节点从搜索集群中移出：保持分片分配排除设置与节点生命周期同步，
// 并轮询集群直到所有分片离开该节点。
package removal

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/seatunnel/datanode/internal/cluster"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// SettingsClient reads and writes cluster settings.
// SettingsClient 读写集群设置。
type SettingsClient interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutTransientSetting(ctx context.Context, key string, value *string) error
}

// Cluster is everything a removal needs from the search cluster.
// Cluster 是移除流程所需的集群能力。
type Cluster interface {
	SettingsClient
	HealthReader
}

// Exclude writes the node name into the allocation exclude setting so the
// cluster starts moving shards away. Removal must not proceed on error.
// Exclude 将节点名写入分片分配排除设置，使集群开始迁出分片；出错时不得继续移除。
func Exclude(ctx context.Context, client SettingsClient, nodeName string) error {
	name := nodeName
	if err := client.PutTransientSetting(ctx, cluster.AllocationExcludeNameSetting, &name); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExcludeFailed, nodeName, err)
	}
	return nil
}

// Tracer lifts a stale exclusion the first time the node becomes available,
// and re-arms that check whenever a removal starts.
// Tracer 在节点首次可用时解除残留的排除设置，并在每次开始移除时重新启用该检查。
type Tracer struct {
	nodeName string
	client   SettingsClient
	logger   *otelzap.Logger
	checked  atomic.Bool
}

// NewTracer creates a removal tracer for nodeName.
// NewTracer 为 nodeName 创建移除追踪器。
func NewTracer(nodeName string, client SettingsClient, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{nodeName: nodeName, client: client, logger: otelzap.New(logger)}
}

// AllocationExcludeChecked reports whether the stale exclusion check has succeeded
// since the last removal.
func (t *Tracer) AllocationExcludeChecked() bool {
	return t.checked.Load()
}

// OnTransition implements statemachine.Tracer.
func (t *Tracer) OnTransition(ctx context.Context, tr statemachine.Transition) {
	switch {
	case tr.Event == statemachine.EventProcessRemove:
		t.checked.Store(false)
	case tr.Target == statemachine.StateAvailable && !t.checked.Load():
		t.checkAllocationExclude(ctx)
	}
}

func (t *Tracer) checkAllocationExclude(ctx context.Context) {
	current, err := t.client.GetSetting(ctx, cluster.AllocationExcludeNameSetting)
	if err != nil {
		t.logger.Ctx(ctx).Warn("Failed to read allocation exclude setting", zap.Error(err))
		return
	}
	if current == t.nodeName {
		if err := t.client.PutTransientSetting(ctx, cluster.AllocationExcludeNameSetting, nil); err != nil {
			t.logger.Ctx(ctx).Warn("Failed to clear allocation exclude setting", zap.Error(err))
			return
		}
		t.logger.Ctx(ctx).Info("Cleared stale allocation exclusion", zap.String("node", t.nodeName))
	}
	t.checked.Store(true)
}
