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

// Package grpc exposes the engine availability through the standard gRPC
// health checking protocol.
// grpc 包通过标准 gRPC 健康检查协议暴露引擎可用性。
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/statemachine"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Errors for gRPC server operations
// gRPC 服务器操作的错误定义
var (
	// ErrServerAlreadyRunning indicates the server is already running.
	// ErrServerAlreadyRunning 表示服务器已在运行。
	ErrServerAlreadyRunning = errors.New("grpc: server is already running")
)

// Server serves grpc.health.v1.Health. The engine service reports SERVING
// only while the state machine is AVAILABLE.
// Server 提供 grpc.health.v1.Health 服务；仅当状态机处于 AVAILABLE 时引擎服务报告 SERVING。
type Server struct {
	service string
	addr    string
	health  *health.Server
	logger  *zap.Logger

	mu         sync.Mutex
	grpcServer *grpc.Server
	listener   net.Listener
}

// NewServer creates a health server. The engine service starts NOT_SERVING.
// NewServer 创建健康检查服务器，引擎服务初始状态为 NOT_SERVING。
func NewServer(cfg config.GRPCConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	service := cfg.Service
	if service == "" {
		service = config.DefaultGRPCService
	}
	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultGRPCAddr
	}
	s := &Server{
		service: service,
		addr:    addr,
		health:  health.NewServer(),
		logger:  logger,
	}
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Start listens on the configured address and serves in the background.
// Start 监听配置的地址并在后台提供服务。
func (s *Server) Start(ctx context.Context) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	if err := s.Serve(listener); err != nil {
		_ = listener.Close()
		return err
	}
	return nil
}

// Serve serves on listener in the background.
// Serve 在后台使用 listener 提供服务。
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grpcServer != nil {
		return ErrServerAlreadyRunning
	}

	s.grpcServer = grpc.NewServer(s.buildServerOptions()...)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.listener = listener

	s.logger.Info("gRPC health server starting",
		zap.String("addr", listener.Addr().String()),
		zap.String("service", s.service),
	)

	server := s.grpcServer
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("gRPC server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop marks every service NOT_SERVING and stops the server gracefully.
// Stop 将所有服务标记为 NOT_SERVING 并优雅停止服务器。
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.grpcServer
	s.grpcServer = nil
	s.listener = nil
	s.mu.Unlock()

	s.health.Shutdown()
	if server == nil {
		return
	}
	s.logger.Info("Stopping gRPC server")
	server.GracefulStop()
	s.logger.Info("gRPC server stopped")
}

// Addr returns the listening address, or nil when not serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Service returns the health service name of the engine.
func (s *Server) Service() string {
	return s.service
}

// OnTransition implements statemachine.Tracer.
func (s *Server) OnTransition(_ context.Context, tr statemachine.Transition) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if tr.Target == statemachine.StateAvailable {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(s.service, serving)
}

func (s *Server) buildServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			s.loggingUnaryInterceptor,
			s.recoveryUnaryInterceptor,
		),
		grpc.ChainStreamInterceptor(
			s.recoveryStreamInterceptor,
		),
	}
}

// loggingUnaryInterceptor logs unary calls / 记录一元调用日志
func (s *Server) loggingUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	peerAddr := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		peerAddr = p.Addr.String()
	}

	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("gRPC unary call failed",
			zap.String("method", info.FullMethod),
			zap.String("peer", peerAddr),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
	return resp, err
}

// recoveryUnaryInterceptor turns handler panics into Internal errors / 将处理器 panic 转为 Internal 错误
func (s *Server) recoveryUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("gRPC unary handler panic",
				zap.String("method", info.FullMethod),
				zap.Any("panic", r),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

func (s *Server) recoveryStreamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("gRPC stream handler panic",
				zap.String("method", info.FullMethod),
				zap.Any("panic", r),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(srv, ss)
}
