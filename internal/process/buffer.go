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

package process

import (
	"bytes"
	"sync"
)

// LineBuffer keeps the last N complete lines written to it. It is used as the
// stdout / stderr sink of the engine process.
// LineBuffer 保留写入的最后 N 行完整日志，用作引擎进程的 stdout / stderr 接收端。
type LineBuffer struct {
	mu      sync.Mutex
	lines   []string
	next    int
	full    bool
	partial []byte
}

// NewLineBuffer creates a buffer holding up to size lines. A size of zero
// discards everything.
// NewLineBuffer 创建最多保存 size 行的缓冲区；size 为 0 时丢弃所有内容。
func NewLineBuffer(size int) *LineBuffer {
	if size < 0 {
		size = 0
	}
	return &LineBuffer{lines: make([]string, size)}
}

// Write implements io.Writer. Incomplete trailing data is held until its newline arrives.
func (b *LineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) == 0 {
		return len(p), nil
	}

	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			b.partial = append(b.partial, data...)
			break
		}
		line := append(b.partial, data[:i]...)
		b.partial = b.partial[:0]
		b.push(bytes.TrimSuffix(line, []byte("\r")))
		data = data[i+1:]
	}
	return len(p), nil
}

func (b *LineBuffer) push(line []byte) {
	b.lines[b.next] = string(line)
	b.next++
	if b.next == len(b.lines) {
		b.next = 0
		b.full = true
	}
}

// Lines returns the buffered lines, oldest first.
// Lines 按从旧到新的顺序返回缓冲的日志行。
func (b *LineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]string, b.next)
		copy(out, b.lines[:b.next])
		return out
	}
	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}

// Reset drops every buffered line.
func (b *LineBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.lines {
		b.lines[i] = ""
	}
	b.next = 0
	b.full = false
	b.partial = b.partial[:0]
}
