/*
 * MIT License
 *
 * Copyright (c) 2025 linux.do
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package otel_trace

import (
	"context"
	"testing"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_BeforeInit(t *testing.T) {
	ctx, span := Start(context.Background(), "noop")
	require.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInit_Disabled(t *testing.T) {
	Init(context.Background(), config.TelemetryConfig{Enabled: false}, nil)
	assert.False(t, IsEnabled())

	_, span := Start(context.Background(), "disabled")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	Shutdown(context.Background())
}

func TestInit_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed here.
	Init(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
		ServiceName: "datanode-test",
		SampleRatio: 1,
	}, nil)
	t.Cleanup(func() {
		Init(context.Background(), config.TelemetryConfig{}, nil)
	})
	assert.True(t, IsEnabled())

	_, span := Start(context.Background(), "enabled")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Shutdown(ctx)
}
