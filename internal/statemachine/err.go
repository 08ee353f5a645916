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

import "errors"

// Error definitions for state machine operations.
var (
	// ErrInvalidTable indicates the transition table failed validation.
	ErrInvalidTable = errors.New("statemachine: invalid transition table")
	// ErrNilProcess indicates no process facade was supplied for the default table.
	ErrNilProcess = errors.New("statemachine: process facade is required")
	// ErrInvalidInitialState indicates the initial state is not declared.
	ErrInvalidInitialState = errors.New("statemachine: invalid initial state")
	// ErrActionPanicked indicates an entry action panicked while applying an event.
	ErrActionPanicked = errors.New("statemachine: transition action panicked")
	// ErrFallbackFailed indicates both an event and its fallback event were rejected.
	ErrFallbackFailed = errors.New("statemachine: fallback event failed")
)
