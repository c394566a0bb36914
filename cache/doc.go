// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供两级缓存：进程内 LRU 一级缓存加可插拔的持久层二级缓存。

# 概述

Manager 统一封装读写路径：读取先查内存，未命中再查持久层，持久层
命中的值会用默认 TTL 回填到内存；写入对两级执行 write-through。
持久层通过 Store 接口插拔，内置 Redis（go-redis）与数据库（GORM）
两种实现。

# 核心类型

  - Manager：两级缓存管理器，提供 Get/Set/Delete、GetJSON/SetJSON、
    GetOrCompute（singleflight 合并并发计算）、SweepExpired 与 Stats。
  - MemoryCache：容量受限、条目级 TTL 的 LRU 缓存。
  - Store：持久层接口；RedisStore 依赖 Redis 自身的键过期，
    DBStore 落盘到 cache_entries 表并依赖周期清理。

# 错误语义

未命中统一返回 ErrCacheMiss（errors.Is 可判定）；其余故障包装为
*CacheError，携带操作名与键。持久层读取故障不会冒泡，只降级为
未命中并记录告警日志。

# 使用示例

	store, err := cache.NewRedisStore(cache.DefaultRedisConfig(), logger)
	if err != nil {
		return err
	}
	mgr := cache.NewManager(cache.DefaultConfig(), store, logger)
	defer mgr.Close()

	val, cached, err := mgr.GetOrCompute(ctx, key, 5*time.Minute, compute)
*/
package cache
