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

import "time"

// TransitionRecord is one applied state machine transition.
// TransitionRecord 表示一次已应用的状态机转换。
type TransitionRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	NodeID    string    `json:"node_id" gorm:"size:64;index"`           // 节点 ID / Node ID
	NodeName  string    `json:"node_name" gorm:"size:255"`              // 节点名称 / Node name
	Event     string    `json:"event" gorm:"size:40;index"`             // 触发事件 / Trigger event
	Source    string    `json:"source" gorm:"size:40"`                  // 源状态 / Source state
	Target    string    `json:"target" gorm:"size:40;index"`            // 目标状态 / Target state
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"` // 转换时间 / Transition time
}

// TableName specifies the table name for TransitionRecord.
// TableName 指定 TransitionRecord 的表名。
func (TransitionRecord) TableName() string {
	return "state_transitions"
}

// Filter represents filter criteria for listing transitions.
// Filter 表示查询转换记录的过滤条件。
type Filter struct {
	NodeID    string
	Event     string
	Target    string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}
