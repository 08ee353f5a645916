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

// Command datanode supervises one search engine data node: it runs the engine
// process, drives its lifecycle state machine and takes it out of the cluster
// on request.
// datanode 命令监管单个搜索引擎数据节点：运行引擎进程、驱动其生命周期状态机，并按请求将其移出集群。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/seatunnel/datanode/internal/config"
	"github.com/seatunnel/datanode/internal/logger"
	"github.com/seatunnel/datanode/internal/statemachine"
	"github.com/spf13/cobra"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// rootCmd runs the supervisor
// rootCmd 运行监管器
var rootCmd = &cobra.Command{
	Use:   "datanode",
	Short: "Data node supervisor for a search engine cluster member",
	Long: `datanode runs a search engine process and tracks its lifecycle.
datanode 运行搜索引擎进程并跟踪其生命周期。

- Health checks drive the lifecycle state machine / 健康检查驱动生命周期状态机
- Unexpected exits are restarted by the watchdog / 意外退出由看门狗重启
- SIGUSR1 removes the node from the cluster, SIGUSR2 resets it / SIGUSR1 将节点移出集群，SIGUSR2 重置节点`,
	SilenceUsage: true,
	RunE:         runSupervisor,
}

// versionCmd shows version information
// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information / 打印版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Data Node Supervisor\n")
		fmt.Printf("  Version:    %s\n", Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Go Version: %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// graphCmd prints the transition table as DOT
// graphCmd 以 DOT 格式打印状态转换表
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the lifecycle state machine as DOT / 以 DOT 格式打印生命周期状态机",
	RunE: func(cmd *cobra.Command, args []string) error {
		machine, err := statemachine.NewMachine(idleProcess{}, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), machine.Graph())
		return nil
	},
}

// configCmd prints the effective configuration
// configCmd 打印生效的配置
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML / 以 YAML 打印生效的配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// idleProcess lets the graph command build a machine without an engine.
type idleProcess struct{}

func (idleProcess) Start(context.Context) error  { return nil }
func (idleProcess) Stop(context.Context) error   { return nil }
func (idleProcess) Remove(context.Context) error { return nil }
func (idleProcess) Reset(context.Context) error  { return nil }

// configFile is the path to the configuration file
// configFile 是配置文件的路径
var configFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(configCmd)
}

// runSupervisor is the main entry point of the supervisor
// runSupervisor 是监管器的主入口
func runSupervisor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closer := logger.New(cfg.Log)
	supervisor := NewSupervisor(cfg, log, closer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(stopChan)

	operatorChan := make(chan os.Signal, 1)
	for sig := range operatorSignals {
		signal.Notify(operatorChan, sig)
	}
	defer signal.Stop(operatorChan)

	if err := supervisor.Run(ctx); err != nil {
		supervisor.Shutdown()
		return err
	}

	for {
		select {
		case sig := <-stopChan:
			fmt.Printf("\nReceived signal: %v / 收到信号：%v\n", sig, sig)
			supervisor.Shutdown()
			return nil
		case sig := <-operatorChan:
			supervisor.Fire(ctx, operatorSignals[sig])
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
