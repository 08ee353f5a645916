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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/seatunnel/datanode/internal/cluster"
	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/datanode"
	"github.com/seatunnel/datanode/internal/db"
	"github.com/seatunnel/datanode/internal/db/migrator"
	datanodegrpc "github.com/seatunnel/datanode/internal/grpc"
	"github.com/seatunnel/datanode/internal/history"
	"github.com/seatunnel/datanode/internal/lifecycle"
	"github.com/seatunnel/datanode/internal/monitor"
	"github.com/seatunnel/datanode/internal/otel_trace"
	"github.com/seatunnel/datanode/internal/process"
	"github.com/seatunnel/datanode/internal/removal"
	"github.com/seatunnel/datanode/internal/restart"
	"github.com/seatunnel/datanode/internal/statemachine"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

// Supervisor wires the engine process, the lifecycle state machine and its
// tracers together.
// Supervisor 将引擎进程、生命周期状态机及其追踪器组装在一起。
type Supervisor struct {
	config    *config.Config
	logger    *zap.Logger
	logCloser io.Closer

	cluster  *cluster.Client
	node     *datanode.Node
	machine  *statemachine.Machine
	monitor  *monitor.HealthMonitor
	watchdog *restart.Watchdog
	grpc     *datanodegrpc.Server
	redis    *redis.Client
	database *gorm.DB

	mu      sync.Mutex
	running bool
}

// NewSupervisor creates a supervisor. Nothing is started until Run.
// NewSupervisor 创建监管器，调用 Run 之前不会启动任何组件。
func NewSupervisor(cfg *config.Config, logger *zap.Logger, logCloser io.Closer) *Supervisor {
	return &Supervisor{
		config:    cfg,
		logger:    logger,
		logCloser: logCloser,
	}
}

// Run builds every component and starts the engine.
// Run 构建所有组件并启动引擎。
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("supervisor is already running")
	}
	s.running = true
	s.mu.Unlock()

	cfg := s.config
	fmt.Println("========================================")
	fmt.Println("  Data Node Supervisor Starting...")
	fmt.Println("  数据节点监管器正在启动...")
	fmt.Println("========================================")
	fmt.Printf("Version: %s, Commit: %s, Build: %s\n", Version, GitCommit, BuildTime)
	fmt.Printf("Node: %s (%s)\n", cfg.Node.Name, cfg.Node.ID)
	fmt.Printf("Cluster: %s\n", cfg.Cluster.URL)
	fmt.Printf("Log Level: %s\n", cfg.Log.Level)

	otel_trace.Init(ctx, cfg.Telemetry, s.logger)

	// Step 1: optional stores
	// 步骤 1：可选的存储
	fmt.Println("[1/6] Connecting stores... / 连接存储...")
	listener, recorder, err := s.openStores(ctx)
	if err != nil {
		return err
	}

	// Step 2: engine process facade
	// 步骤 2：引擎进程门面
	fmt.Println("[2/6] Preparing engine process... / 准备引擎进程...")
	s.cluster = cluster.NewClient(cfg.Cluster)
	runner := process.NewRunner(cfg.Engine, s.logger)
	opts := datanode.Options{
		Node:    cfg.Node,
		Removal: cfg.Removal,
		Runner:  runner,
		Cluster: s.cluster,
		Logger:  s.logger,
	}
	if listener != nil {
		opts.Listener = listener
	}
	s.node = datanode.New(opts)

	// Step 3: state machine and tracers
	// 步骤 3：状态机与追踪器
	fmt.Println("[3/6] Building state machine... / 构建状态机...")
	if err := s.buildMachine(listener, recorder); err != nil {
		return err
	}

	// Step 4: gRPC health endpoint
	// 步骤 4：gRPC 健康端点
	fmt.Println("[4/6] Starting gRPC health endpoint... / 启动 gRPC 健康端点...")
	if s.grpc != nil {
		if err := s.grpc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}

	// Step 5: health monitor
	// 步骤 5：健康监控
	fmt.Println("[5/6] Starting health monitor... / 启动健康监控...")
	s.monitor = monitor.NewHealthMonitor(s.cluster, s.machine, cfg.HealthCheck, s.logger)
	if err := s.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}

	// Step 6: engine
	// 步骤 6：启动引擎
	fmt.Println("[6/6] Starting engine... / 启动引擎...")
	if !cfg.Node.InsecureStartup {
		if err := s.node.Configure(ctx); err != nil {
			return fmt.Errorf("failed to configure engine: %w", err)
		}
	}
	if err := s.node.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	fmt.Println("========================================")
	fmt.Println("  Supervisor started successfully!")
	fmt.Println("  监管器启动成功！")
	fmt.Println("========================================")
	return nil
}

// openStores connects Redis and the history database when enabled.
func (s *Supervisor) openStores(ctx context.Context) (*lifecycle.Notifier, *history.Recorder, error) {
	cfg := s.config
	var notifier *lifecycle.Notifier
	if cfg.Redis.Enabled {
		client, err := lifecycle.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		s.redis = client
		notifier = lifecycle.NewNotifier(client, cfg.Redis.Channel, cfg.Node, s.logger)
		fmt.Printf("Lifecycle events published to %s / 生命周期事件发布到 %s\n", cfg.Redis.Channel, cfg.Redis.Channel)
	}

	var recorder *history.Recorder
	if cfg.Database.Enabled {
		database, err := db.Open(cfg.Database, s.logger)
		if err != nil {
			return nil, nil, err
		}
		s.database = database
		if err := migrator.Migrate(ctx, database, s.logger); err != nil {
			return nil, nil, err
		}
		recorder = history.NewRecorder(history.NewRepository(database), cfg.Node, s.logger)
		fmt.Printf("Transition history stored in %s / 状态转换历史存储于 %s\n", cfg.Database.Type, cfg.Database.Type)
	}
	return notifier, recorder, nil
}

// buildMachine creates the machine and registers the tracers in order:
// the stale exclusion check first, then restart, then reporting.
func (s *Supervisor) buildMachine(notifier *lifecycle.Notifier, recorder *history.Recorder) error {
	cfg := s.config
	counters := statemachine.NewCounters(
		cfg.StateMachine.MaxRestFailures,
		cfg.StateMachine.MaxStartupFailures,
		cfg.StateMachine.MaxReboots,
	)
	tracers := []statemachine.Tracer{
		removal.NewTracer(cfg.Node.Name, s.cluster, s.logger),
	}
	if cfg.Watchdog.Enabled {
		s.watchdog = restart.NewWatchdog(s.node, cfg.Watchdog, s.logger)
		tracers = append(tracers, s.watchdog)
	}
	if notifier != nil {
		tracers = append(tracers, notifier)
	}
	if recorder != nil {
		tracers = append(tracers, recorder)
	}
	if cfg.GRPC.Enabled {
		s.grpc = datanodegrpc.NewServer(cfg.GRPC, s.logger)
		tracers = append(tracers, s.grpc)
	}

	machine, err := statemachine.NewMachine(s.node, &statemachine.Options{
		Counters: counters,
		Tracers:  tracers,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build state machine: %w", err)
	}
	s.machine = machine
	s.node.AttachMachine(machine)
	return nil
}

// Fire forwards an operator event to the machine.
// Fire 将运维事件转发给状态机。
func (s *Supervisor) Fire(ctx context.Context, event statemachine.Event) {
	if s.machine == nil {
		return
	}
	if err := s.machine.Fire(ctx, event); err != nil {
		s.logger.Warn("Operator event failed", zap.String("event", event.String()), zap.Error(err))
		return
	}
	s.logger.Info("Operator event applied",
		zap.String("event", event.String()),
		zap.String("state", s.machine.State().String()))
}

// Shutdown stops the engine and releases every component.
// Shutdown 停止引擎并释放所有组件。
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	fmt.Println("========================================")
	fmt.Println("  Shutting down supervisor...")
	fmt.Println("  正在关闭监管器...")
	fmt.Println("========================================")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Step 1: no more health events
	// 步骤 1：停止健康检查
	fmt.Println("[1/5] Stopping health monitor... / 停止健康监控...")
	if s.monitor != nil {
		s.monitor.Stop()
	}

	// Step 2: engine; PROCESS_STOPPED deactivates the watchdog before the exit
	// 步骤 2：停止引擎，PROCESS_STOPPED 会先停用看门狗
	fmt.Println("[2/5] Stopping engine... / 停止引擎...")
	if s.node != nil {
		if s.machine != nil {
			if err := s.node.Stop(ctx); err != nil {
				fmt.Printf("Warning: Error stopping engine: %v / 警告：停止引擎时出错：%v\n", err, err)
			}
		}
		if err := s.node.Shutdown(ctx); err != nil {
			fmt.Printf("Warning: Error releasing engine: %v / 警告：释放引擎时出错：%v\n", err, err)
		}
	}
	if s.watchdog != nil {
		s.watchdog.Close()
	}

	// Step 3: gRPC endpoint
	// 步骤 3：关闭 gRPC 端点
	fmt.Println("[3/5] Stopping gRPC endpoint... / 停止 gRPC 端点...")
	if s.grpc != nil {
		s.grpc.Stop()
	}

	// Step 4: stores
	// 步骤 4：关闭存储
	fmt.Println("[4/5] Closing stores... / 关闭存储...")
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			fmt.Printf("Warning: Error closing redis: %v / 警告：关闭 Redis 时出错：%v\n", err, err)
		}
	}
	if err := db.Close(s.database); err != nil {
		fmt.Printf("Warning: Error closing database: %v / 警告：关闭数据库时出错：%v\n", err, err)
	}

	// Step 5: telemetry and logs
	// 步骤 5：刷新追踪与日志
	fmt.Println("[5/5] Flushing telemetry... / 刷新追踪数据...")
	otel_trace.Shutdown(ctx)
	_ = s.logger.Sync()
	if s.logCloser != nil {
		_ = s.logCloser.Close()
	}

	fmt.Println("========================================")
	fmt.Println("  Supervisor shutdown complete")
	fmt.Println("  监管器关闭完成")
	fmt.Println("========================================")
}
