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

package history

import (
	"context"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Recorder is a state machine tracer that stores every transition.
// Recorder 是记录每次转换的状态机追踪器。
type Recorder struct {
	repo   *Repository
	node   config.NodeConfig
	logger *otelzap.Logger
}

// NewRecorder creates a recorder for node.
func NewRecorder(repo *Repository, node config.NodeConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, node: node, logger: otelzap.New(logger)}
}

// OnTransition implements statemachine.Tracer. Storage errors are logged only.
func (r *Recorder) OnTransition(ctx context.Context, tr statemachine.Transition) {
	err := r.repo.Create(ctx, &TransitionRecord{
		NodeID:   r.node.ID,
		NodeName: r.node.Name,
		Event:    string(tr.Event),
		Source:   string(tr.Source),
		Target:   string(tr.Target),
	})
	if err != nil {
		r.logger.Ctx(ctx).Warn("Failed to record transition", zap.Stringer("transition", tr), zap.Error(err))
	}
}
