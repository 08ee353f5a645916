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

// Package cluster is a minimal REST client for the search cluster the
// supervised node belongs to: cluster settings and cluster health.
// cluster 包是被监管节点所属搜索集群的精简 REST 客户端：集群设置与集群健康。
package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/seatunnel/datanode/internal/config"
)

const defaultTimeout = 10 * time.Second

// Client talks to the cluster REST API.
// Client 调用集群 REST API。
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a client from configuration.
// NewClient 根据配置创建客户端。
func NewClient(cfg config.ClusterConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = config.DefaultClusterURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetSetting returns the effective value of a cluster setting, transient
// taking precedence over persistent. An unset setting yields "".
// GetSetting 返回集群设置的生效值，transient 优先于 persistent；未设置时返回空字符串。
func (c *Client) GetSetting(ctx context.Context, key string) (string, error) {
	var resp settingsResponse
	if err := c.do(ctx, http.MethodGet, "/_cluster/settings?flat_settings=true", nil, &resp); err != nil {
		return "", err
	}
	if v, ok := resp.Transient[key]; ok {
		return settingValue(v), nil
	}
	if v, ok := resp.Persistent[key]; ok {
		return settingValue(v), nil
	}
	return "", nil
}

// PutTransientSetting writes a transient cluster setting; a nil value clears it.
// PutTransientSetting 写入 transient 集群设置；value 为 nil 时清除该设置。
func (c *Client) PutTransientSetting(ctx context.Context, key string, value *string) error {
	req := settingsRequest{Transient: map[string]*string{key: value}}
	var resp acknowledgedResponse
	if err := c.do(ctx, http.MethodPut, "/_cluster/settings", req, &resp); err != nil {
		return err
	}
	if !resp.Acknowledged {
		return fmt.Errorf("%w: %s", ErrNotAcknowledged, key)
	}
	return nil
}

// Health returns the cluster health.
// Health 返回集群健康状态。
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/_cluster/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ping checks that the node answers on its REST port.
// Ping 检查节点 REST 端口是否响应。
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %s", ErrUnexpectedStatus, method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func settingValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
