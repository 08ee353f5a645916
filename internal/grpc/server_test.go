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

package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// newTestServer creates a health server on an in-memory listener.
// newTestServer 创建一个使用内存连接的健康检查服务器。
func newTestServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	listener := bufconn.Listen(bufSize)
	logger, _ := zap.NewDevelopment()

	server := NewServer(config.GRPCConfig{Service: "engine"}, logger)
	require.NoError(t, server.Serve(listener))
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return server, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

// TestServer_MirrorsAvailability tests the health status per transition target
// TestServer_MirrorsAvailability 测试健康状态随转换目标变化
func TestServer_MirrorsAvailability(t *testing.T) {
	server, client := newTestServer(t)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, "engine"))

	server.OnTransition(ctx, statemachine.Transition{
		Event: statemachine.EventHealthCheckOK, Source: statemachine.StateStarting, Target: statemachine.StateAvailable,
	})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, "engine"))

	server.OnTransition(ctx, statemachine.Transition{
		Event: statemachine.EventHealthCheckFailed, Source: statemachine.StateAvailable, Target: statemachine.StateNotResponding,
	})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, "engine"))
}

func TestServer_DrivenByMachine(t *testing.T) {
	server, client := newTestServer(t)
	m, err := statemachine.NewMachine(nopProcess{}, &statemachine.Options{
		InitialState: statemachine.StateStarting,
		Tracers:      []statemachine.Tracer{server},
	})
	require.NoError(t, err)

	require.NoError(t, m.Fire(context.Background(), statemachine.EventHealthCheckOK))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, server.Service()))

	require.NoError(t, m.Fire(context.Background(), statemachine.EventProcessStopped))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, server.Service()))
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer(config.GRPCConfig{Addr: "127.0.0.1:0"}, zap.NewNop())
	assert.Equal(t, config.DefaultGRPCService, server.Service())
	assert.Nil(t, server.Addr())

	require.NoError(t, server.Start(context.Background()))
	assert.NotNil(t, server.Addr())
	assert.ErrorIs(t, server.Serve(bufconn.Listen(bufSize)), ErrServerAlreadyRunning)

	server.Stop()
	assert.Nil(t, server.Addr())
	server.Stop()
}

type nopProcess struct{}

func (nopProcess) Start(context.Context) error  { return nil }
func (nopProcess) Stop(context.Context) error   { return nil }
func (nopProcess) Remove(context.Context) error { return nil }
func (nopProcess) Reset(context.Context) error  { return nil }
