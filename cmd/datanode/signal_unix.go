//go:build !windows

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

package main

import (
	"os"
	"syscall"

	"github.com/seatunnel/datanode/internal/statemachine"
)

// operatorSignals maps signals to operator events: SIGUSR1 requests removal
// from the cluster and SIGUSR2 resets a removed node.
// operatorSignals 将信号映射为运维事件：SIGUSR1 请求从集群移除，SIGUSR2 重置已移除的节点。
var operatorSignals = map[os.Signal]statemachine.Event{
	syscall.SIGUSR1: statemachine.EventProcessRemove,
	syscall.SIGUSR2: statemachine.EventReset,
}
