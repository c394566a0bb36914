package database

import (
	"time"
)

// =============================================================================
// 🗄️ 持久化模型
// =============================================================================

// CacheEntry 持久层缓存条目
//
// 作为二级缓存的落盘形态，Key 全局唯一，ExpiresAt 带索引以便
// 周期清理时按过期时间扫描。AccessedAt/AccessCount 记录读取热度。
type CacheEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"uniqueIndex:idx_cache_key;size:128;not null" json:"key"` // 缓存键（哈希后）
	Value       []byte    `json:"value"`                                                  // 序列化后的缓存值
	ExpiresAt   time.Time `gorm:"index:idx_cache_expires;not null" json:"expires_at"`     // 过期时间
	CreatedAt   time.Time `json:"created_at"`
	AccessedAt  time.Time `json:"accessed_at"`  // 最近读取时间
	AccessCount int64     `json:"access_count"` // 累计读取次数
}

// TableName 指定表名
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// Expired 判断条目在给定时刻是否已过期
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Conversation 会话记录
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"` // UUID
	Title     string    `gorm:"size:255" json:"title"`
	UserID    string    `gorm:"index:idx_conv_user;size:64" json:"user_id"`
	Messages  []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

// Message 会话中的单条消息
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"index:idx_msg_conv;size:64;not null" json:"conversation_id"`
	Role           string    `gorm:"size:32;not null" json:"role"` // system/user/assistant/tool
	Content        string    `gorm:"type:text" json:"content"`
	Team           string    `gorm:"size:32" json:"team,omitempty"` // 处理该消息的团队
	Cached         bool      `json:"cached"`                        // 是否命中响应缓存
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// UsageStat 按天聚合的调用统计
type UsageStat struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Date         string    `gorm:"uniqueIndex:idx_usage_date_provider;size:16;not null" json:"date"` // YYYY-MM-DD
	Provider     string    `gorm:"uniqueIndex:idx_usage_date_provider;size:32;not null" json:"provider"`
	Requests     int64     `json:"requests"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CacheHits    int64     `json:"cache_hits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UsageStat) TableName() string {
	return "usage_stats"
}

// AllModels 返回需要迁移的全部模型
func AllModels() []any {
	return []any{
		&CacheEntry{},
		&Conversation{},
		&Message{},
		&UsageStat{},
	}
}
