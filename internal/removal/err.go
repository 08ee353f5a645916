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

import "errors"

var (
	// ErrPollerStopped indicates the poller was shut down
	// ErrPollerStopped 表示轮询器已关闭
	ErrPollerStopped = errors.New("removal: poller stopped")

	// ErrNoHealth indicates the cluster returned no health document
	// ErrNoHealth 表示集群未返回健康信息
	ErrNoHealth = errors.New("removal: empty cluster health")

	// ErrExcludeFailed indicates the node could not be excluded from shard allocation
	// ErrExcludeFailed 表示无法将节点排除出分片分配
	ErrExcludeFailed = errors.New("removal: allocation exclude failed")
)
