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

// State is the lifecycle state of the supervised engine process.
// State 是被监管引擎进程的生命周期状态。
type State string

const (
	StateWaitingForConfiguration State = "WAITING_FOR_CONFIGURATION"
	StatePrepared                State = "PREPARED"
	StateStarting                State = "STARTING"
	StateAvailable               State = "AVAILABLE"
	StateNotResponding           State = "NOT_RESPONDING"
	StateFailed                  State = "FAILED"
	StateTerminated              State = "TERMINATED"
	StateRemoving                State = "REMOVING"
	StateRemoved                 State = "REMOVED"
)

// AllStates lists every declared state in a stable order.
// AllStates 按固定顺序列出所有已声明的状态。
var AllStates = []State{
	StateWaitingForConfiguration,
	StatePrepared,
	StateStarting,
	StateAvailable,
	StateNotResponding,
	StateFailed,
	StateTerminated,
	StateRemoving,
	StateRemoved,
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// IsValid reports whether s is one of the declared states.
// IsValid 判断 s 是否为已声明的状态。
func (s State) IsValid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// ProcessExpected reports whether an engine process is expected to be
// running in this state, i.e. whether health checks make sense.
// ProcessExpected 判断该状态下是否应有引擎进程在运行（即健康检查是否有意义）。
func (s State) ProcessExpected() bool {
	switch s {
	case StateStarting, StateAvailable, StateNotResponding, StateFailed, StateRemoving:
		return true
	default:
		return false
	}
}
