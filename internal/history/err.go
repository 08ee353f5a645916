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

import "errors"

// Transition history errors / 转换历史错误
var (
	// ErrNodeIDEmpty indicates the record carries no node id
	// ErrNodeIDEmpty 表示记录缺少节点 ID
	ErrNodeIDEmpty = errors.New("history: node id cannot be empty")

	// ErrEventInvalid indicates the record carries an undeclared event
	// ErrEventInvalid 表示记录中的事件未声明
	ErrEventInvalid = errors.New("history: invalid event")

	// ErrStateInvalid indicates the record carries an undeclared state
	// ErrStateInvalid 表示记录中的状态未声明
	ErrStateInvalid = errors.New("history: invalid state")

	// ErrRecordNotFound indicates no transition matched
	// ErrRecordNotFound 表示未找到匹配的转换记录
	ErrRecordNotFound = errors.New("history: record not found")
)
