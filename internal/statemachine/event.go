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

package statemachine

// Event is an input fired at the state machine by a collaborator
// (health-check poller, process supervisor, removal request).
// Event 是协作者（健康检查轮询器、进程监管器、移除请求）向状态机触发的输入。
type Event string

const (
	EventProcessPrepared   Event = "PROCESS_PREPARED"
	EventProcessStarted    Event = "PROCESS_STARTED"
	EventProcessStopped    Event = "PROCESS_STOPPED"
	EventProcessTerminated Event = "PROCESS_TERMINATED"
	EventHealthCheckOK     Event = "HEALTH_CHECK_OK"
	EventHealthCheckFailed Event = "HEALTH_CHECK_FAILED"
	EventProcessRemove     Event = "PROCESS_REMOVE"
	EventReset             Event = "RESET"
)

// AllEvents lists every declared event in a stable order.
// AllEvents 按固定顺序列出所有已声明的事件。
var AllEvents = []Event{
	EventProcessPrepared,
	EventProcessStarted,
	EventProcessStopped,
	EventProcessTerminated,
	EventHealthCheckOK,
	EventHealthCheckFailed,
	EventProcessRemove,
	EventReset,
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return string(e)
}

// IsValid reports whether e is one of the declared events.
// IsValid 判断 e 是否为已声明的事件。
func (e Event) IsValid() bool {
	for _, known := range AllEvents {
		if e == known {
			return true
		}
	}
	return false
}
