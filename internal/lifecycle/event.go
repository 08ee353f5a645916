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

package lifecycle

import (
	"time"

	"github.com/seatunnel/datanode/internal/statemachine"
)

// EventType classifies lifecycle events / 生命周期事件类型
type EventType string

const (
	// EventStateChanged is published for every applied transition
	// EventStateChanged 在每次状态转换后发布
	EventStateChanged EventType = "STATE_CHANGED"

	// EventRemoved is published once a node has drained all of its shards and stopped
	// EventRemoved 在节点迁出全部分片并停止后发布
	EventRemoved EventType = "REMOVED"
)

// Event is the message published on the lifecycle channel.
// Event 是发布到生命周期频道的消息。
type Event struct {
	Type      EventType          `json:"type"`
	NodeID    string             `json:"node_id"`
	NodeName  string             `json:"node_name"`
	Trigger   statemachine.Event `json:"trigger,omitempty"`
	Source    statemachine.State `json:"source,omitempty"`
	Target    statemachine.State `json:"target,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
