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

// Package history persists the transitions of the data node state machine.
// history 包持久化数据节点状态机的转换记录。
package history

import (
	"context"
	"errors"
	"time"

	"github.com/seatunnel/datanode/internal/statemachine"
	"gorm.io/gorm"
)

// Repository provides data access operations for TransitionRecord entities.
// Repository 提供 TransitionRecord 实体的数据访问操作。
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository instance.
// NewRepository 创建一个新的 Repository 实例。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a transition record after validating it.
// Create 校验并保存一条转换记录。
func (r *Repository) Create(ctx context.Context, record *TransitionRecord) error {
	if record.NodeID == "" {
		return ErrNodeIDEmpty
	}
	if !statemachine.Event(record.Event).IsValid() {
		return ErrEventInvalid
	}
	if !statemachine.State(record.Source).IsValid() || !statemachine.State(record.Target).IsValid() {
		return ErrStateInvalid
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// List retrieves transitions matching filter, newest first, with pagination.
// Returns the page of records and the total count.
// List 按过滤条件分页获取转换记录（最新在前），返回记录列表和总数。
func (r *Repository) List(ctx context.Context, filter *Filter) ([]*TransitionRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&TransitionRecord{})

	// Apply filters - 应用过滤条件
	if filter != nil {
		if filter.NodeID != "" {
			query = query.Where("node_id = ?", filter.NodeID)
		}
		if filter.Event != "" {
			query = query.Where("event = ?", filter.Event)
		}
		if filter.Target != "" {
			query = query.Where("target = ?", filter.Target)
		}
		if filter.StartTime != nil {
			query = query.Where("created_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			query = query.Where("created_at <= ?", *filter.EndTime)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination - 应用分页
	if filter != nil && filter.PageSize > 0 {
		offset := 0
		if filter.Page > 0 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var records []*TransitionRecord
	if err := query.Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Latest returns the most recent transition of a node.
// Latest 返回节点最近一次转换。
func (r *Repository) Latest(ctx context.Context, nodeID string) (*TransitionRecord, error) {
	var record TransitionRecord
	err := r.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("created_at DESC").Order("id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Prune deletes transitions older than before and returns how many were removed.
// Prune 删除早于 before 的转换记录，返回删除条数。
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&TransitionRecord{})
	return result.RowsAffected, result.Error
}
