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

// Package migrator creates the tables of the data node supervisor.
package migrator

import (
	"context"
	"fmt"

	"github.com/seatunnel/datanode/internal/history"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 执行数据库表迁移
func Migrate(ctx context.Context, database *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := database.WithContext(ctx).AutoMigrate(
		&history.TransitionRecord{}, // 状态转换历史表 / State transition history table
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	log.Info("Database migrated")
	return nil
}
