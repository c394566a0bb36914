package cache

import (
	"errors"
	"fmt"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// ErrInvalidTTL TTL 为负数
var ErrInvalidTTL = errors.New("ttl must not be negative")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// CacheError 缓存操作错误
//
// 除未命中外的所有缓存故障都包装为 CacheError，携带操作名与键，
// 底层原因通过 Unwrap 暴露给 errors.Is/As。
type CacheError struct {
	Op  string // 操作名：get/set/delete/sweep/stats
	Key string // 相关缓存键，批量操作时可为空
	Err error  // 底层错误
}

// Error 实现 error 接口
func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap 返回底层错误
func (e *CacheError) Unwrap() error {
	return e.Err
}
