// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库接入层，覆盖连接管理、模型迁移
与事务重试。

# 概述

本包负责按驱动名打开数据库（SQLite 用于本地与测试，PostgreSQL 用于
生产）、执行模型自动迁移，并通过 PoolManager 统一管理连接池参数与
后台探活。

# 核心类型

  - Open / Migrate：按驱动打开连接并迁移全部模型。
  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()
    以及 WithTransaction / WithTransactionRetry 事务封装。
  - CacheEntry / Conversation / Message / UsageStat：持久化模型，
    分别承载二级缓存落盘、会话历史与按天聚合的调用统计。

# 使用示例

	db, err := database.Open("sqlite", "teamflow.db", logger)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, logger); err != nil {
		return err
	}
	pool, err := database.NewPoolManager(db, database.DefaultPoolConfig(), logger)
*/
package database
