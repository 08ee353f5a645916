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

// Package config provides configuration management for the data node supervisor.
// config 包提供数据节点监管器的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Environment variables (DATANODE_ prefix) / 环境变量（DATANODE_ 前缀）
// 2. Configuration file / 配置文件
// 3. Default values / 默认值
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath            = "/etc/datanode/config.yaml"
	DefaultHealthCheckInterval   = 5 * time.Second
	DefaultHealthCheckTimeout    = 3 * time.Second
	DefaultRemovalPollInterval   = 10 * time.Second
	DefaultStopTimeout           = 30 * time.Second
	DefaultProcessLogsBufferSize = 500
	DefaultWatchdogMaxRestarts   = 3
	DefaultClusterURL            = "http://127.0.0.1:9200"
	DefaultClusterTimeout        = 10 * time.Second
	DefaultGRPCAddr              = ":9091"
	DefaultGRPCService           = "datanode.engine"
	DefaultRedisChannel          = "datanode:lifecycle"
	DefaultLogLevel              = "info"
	DefaultLogMaxSize            = 100 // MB
	DefaultLogMaxBackups         = 3
	DefaultLogMaxAge             = 7 // days

	envPrefix     = "DATANODE"
	envConfigPath = "DATANODE_CONFIG_PATH"
)

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath == "" {
		configPath = os.Getenv(envConfigPath)
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		// A missing file falls back to defaults / 配置文件不存在时使用默认值
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(yamlData)); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.fillIdentity()
	return &cfg, nil
}

// fillIdentity generates the node id and name when they are not configured.
func (c *Config) fillIdentity() {
	if c.Node.ID == "" {
		c.Node.ID = uuid.NewString()
	}
	if c.Node.Name == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.Node.Name = host
		} else {
			c.Node.Name = "datanode-" + c.Node.ID[:8]
		}
	}
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("node.id", "")
	v.SetDefault("node.name", "")
	v.SetDefault("node.insecure_startup", false)

	v.SetDefault("engine.command", "")
	v.SetDefault("engine.args", []string{})
	v.SetDefault("engine.env", []string{})
	v.SetDefault("engine.stop_timeout", DefaultStopTimeout)
	v.SetDefault("engine.process_logs_buffer_size", DefaultProcessLogsBufferSize)

	v.SetDefault("statemachine.max_rest_failures", 3)
	v.SetDefault("statemachine.max_startup_failures", 5)
	v.SetDefault("statemachine.max_reboots", 3)

	v.SetDefault("health_check.interval", DefaultHealthCheckInterval)
	v.SetDefault("health_check.timeout", DefaultHealthCheckTimeout)

	v.SetDefault("removal.poll_interval", DefaultRemovalPollInterval)

	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.max_restarts", DefaultWatchdogMaxRestarts)
	v.SetDefault("watchdog.restart_delay", time.Duration(0))

	v.SetDefault("cluster.url", DefaultClusterURL)
	v.SetDefault("cluster.timeout", DefaultClusterTimeout)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/datanode.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel", DefaultRedisChannel)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.addr", DefaultGRPCAddr)
	v.SetDefault("grpc.service", DefaultGRPCService)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "datanode")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
	v.SetDefault("log.compress", true)
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	if c.Node.Name == "" {
		return fmt.Errorf("%w: node.name is required", ErrInvalidConfig)
	}

	if !c.Node.InsecureStartup && c.Engine.Command == "" {
		return fmt.Errorf("%w: engine.command is required", ErrInvalidConfig)
	}
	if c.Engine.ProcessLogsBufferSize < 0 {
		return fmt.Errorf("%w: engine.process_logs_buffer_size must not be negative", ErrInvalidConfig)
	}

	if c.StateMachine.MaxRestFailures < 1 || c.StateMachine.MaxStartupFailures < 1 || c.StateMachine.MaxReboots < 1 {
		return fmt.Errorf("%w: statemachine thresholds must be at least 1", ErrInvalidConfig)
	}

	if c.HealthCheck.Interval < 100*time.Millisecond {
		return fmt.Errorf("%w: health_check.interval must be at least 100ms", ErrInvalidConfig)
	}
	if c.HealthCheck.Timeout <= 0 || c.HealthCheck.Timeout > c.HealthCheck.Interval {
		return fmt.Errorf("%w: health_check.timeout must be positive and not exceed the interval", ErrInvalidConfig)
	}

	if c.Removal.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("%w: removal.poll_interval must be at least 100ms", ErrInvalidConfig)
	}

	if c.Watchdog.Enabled && c.Watchdog.MaxRestarts < 1 {
		return fmt.Errorf("%w: watchdog.max_restarts must be at least 1", ErrInvalidConfig)
	}

	if c.Cluster.URL == "" {
		return fmt.Errorf("%w: cluster.url is required", ErrInvalidConfig)
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite", "mysql", "postgres":
		default:
			return fmt.Errorf("%w: unsupported database.type %q (sqlite, mysql, postgres)", ErrInvalidConfig, c.Database.Type)
		}
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: telemetry.sample_ratio must be within [0, 1]", ErrInvalidConfig)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("%w: invalid log level %s (must be debug, info, warn, or error)", ErrInvalidConfig, c.Log.Level)
	}

	return nil
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Node.ID: %s, Node.Name: %s, Cluster.URL: %s, HealthCheck.Interval: %v, Log.Level: %s}",
		c.Node.ID,
		c.Node.Name,
		c.Cluster.URL,
		c.HealthCheck.Interval,
		c.Log.Level,
	)
}

// ToYAML serializes the configuration to YAML format with secrets masked
// ToYAML 将配置序列化为 YAML 格式，敏感信息会被屏蔽
func (c *Config) ToYAML() ([]byte, error) {
	masked := *c
	masked.Cluster.Password = mask(c.Cluster.Password)
	masked.Database.Password = mask(c.Database.Password)
	masked.Redis.Password = mask(c.Redis.Password)
	return yaml.Marshal(&masked)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}
