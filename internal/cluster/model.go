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

package cluster

// AllocationExcludeNameSetting excludes named nodes from shard allocation.
// AllocationExcludeNameSetting 将指定名称的节点排除在分片分配之外。
const AllocationExcludeNameSetting = "cluster.routing.allocation.exclude._name"

// Health is the subset of the cluster health response the supervisor reads.
// Health 是监管器读取的集群健康响应子集。
type Health struct {
	ClusterName        string `json:"cluster_name"`
	Status             string `json:"status"`
	NumberOfNodes      int    `json:"number_of_nodes"`
	ActiveShards       int    `json:"active_shards"`
	RelocatingShards   int    `json:"relocating_shards"`
	InitializingShards int    `json:"initializing_shards"`
	UnassignedShards   int    `json:"unassigned_shards"`
	TimedOut           bool   `json:"timed_out"`
}

// settingsResponse is the flat_settings form of GET /_cluster/settings.
type settingsResponse struct {
	Persistent map[string]any `json:"persistent"`
	Transient  map[string]any `json:"transient"`
}

// settingsRequest is the body of PUT /_cluster/settings. A nil value
// removes the setting.
type settingsRequest struct {
	Transient map[string]*string `json:"transient"`
}

type acknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}
