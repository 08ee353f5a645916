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

package config

import "time"

// Config represents the data node supervisor configuration
// Config 表示数据节点监管器配置
type Config struct {
	Node         NodeConfig         `mapstructure:"node" yaml:"node"`
	Engine       EngineConfig       `mapstructure:"engine" yaml:"engine"`
	StateMachine StateMachineConfig `mapstructure:"statemachine" yaml:"statemachine"`
	HealthCheck  HealthCheckConfig  `mapstructure:"health_check" yaml:"health_check"`
	Removal      RemovalConfig      `mapstructure:"removal" yaml:"removal"`
	Watchdog     WatchdogConfig     `mapstructure:"watchdog" yaml:"watchdog"`
	Cluster      ClusterConfig      `mapstructure:"cluster" yaml:"cluster"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Redis        RedisConfig        `mapstructure:"redis" yaml:"redis"`
	GRPC         GRPCConfig         `mapstructure:"grpc" yaml:"grpc"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// NodeConfig identifies this data node
// NodeConfig 标识当前数据节点
type NodeConfig struct {
	// ID is the unique identifier of the node (auto-generated if empty)
	// ID 是节点的唯一标识符（为空时自动生成）
	ID string `mapstructure:"id" yaml:"id"`

	// Name is the node name known to the search cluster, used for allocation exclusion
	// Name 是搜索集群中的节点名，用于分片分配排除
	Name string `mapstructure:"name" yaml:"name"`

	// InsecureStartup starts the engine without waiting for configuration
	// InsecureStartup 不等待配置直接启动引擎
	InsecureStartup bool `mapstructure:"insecure_startup" yaml:"insecure_startup"`
}

// EngineConfig describes how the search engine process is launched
// EngineConfig 描述如何启动搜索引擎进程
type EngineConfig struct {
	Command               string        `mapstructure:"command" yaml:"command"`
	Args                  []string      `mapstructure:"args" yaml:"args"`
	WorkDir               string        `mapstructure:"work_dir" yaml:"work_dir"`
	Env                   []string      `mapstructure:"env" yaml:"env"`
	StopTimeout           time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
	ProcessLogsBufferSize int           `mapstructure:"process_logs_buffer_size" yaml:"process_logs_buffer_size"`
}

// StateMachineConfig holds the failure thresholds of the lifecycle state machine
// StateMachineConfig 保存生命周期状态机的失败阈值
type StateMachineConfig struct {
	MaxRestFailures    int64 `mapstructure:"max_rest_failures" yaml:"max_rest_failures"`
	MaxStartupFailures int64 `mapstructure:"max_startup_failures" yaml:"max_startup_failures"`
	MaxReboots         int64 `mapstructure:"max_reboots" yaml:"max_reboots"`
}

// HealthCheckConfig contains health check polling settings
// HealthCheckConfig 包含健康检查轮询设置
type HealthCheckConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RemovalConfig contains node removal settings
// RemovalConfig 包含节点移除设置
type RemovalConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// WatchdogConfig contains auto restart settings
// WatchdogConfig 包含自动重启设置
type WatchdogConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxRestarts  int64         `mapstructure:"max_restarts" yaml:"max_restarts"`
	RestartDelay time.Duration `mapstructure:"restart_delay" yaml:"restart_delay"`
}

// ClusterConfig contains the search cluster REST endpoint
// ClusterConfig 包含搜索集群 REST 端点
type ClusterConfig struct {
	URL      string        `mapstructure:"url" yaml:"url"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DatabaseConfig contains transition history storage settings
// DatabaseConfig 包含状态转换历史存储设置
type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Type            string `mapstructure:"type" yaml:"type"`               // sqlite, mysql, postgres
	SQLitePath      string `mapstructure:"sqlite_path" yaml:"sqlite_path"` // SQLite 文件路径
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"password"`
	Database        string `mapstructure:"database" yaml:"database"`
	MaxIdleConn     int    `mapstructure:"max_idle_conn" yaml:"max_idle_conn"`
	MaxOpenConn     int    `mapstructure:"max_open_conn" yaml:"max_open_conn"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level" yaml:"log_level"`
}

// RedisConfig contains lifecycle event publishing settings
// RedisConfig 包含生命周期事件发布设置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size"`
	Channel  string `mapstructure:"channel" yaml:"channel"`
}

// GRPCConfig contains the health endpoint settings
// GRPCConfig 包含健康检查端点设置
type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Service string `mapstructure:"service" yaml:"service"`
}

// TelemetryConfig contains OpenTelemetry tracing settings
// TelemetryConfig 包含 OpenTelemetry 追踪设置
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // json, console
	File       string `mapstructure:"file" yaml:"file"`     // empty means stdout
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}
