// =============================================================================
// 📦 TeamFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		LLM:        DefaultLLMConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Cache:      DefaultCacheConfig(),
		Stream:     DefaultStreamConfig(),
		Supervisor: DefaultSupervisorConfig(),
		Tools:      DefaultToolsConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100.0 / 60.0,
		RateLimitBurst:  20,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "deepseek",
		DeepSeek: ProviderConfig{
			BaseURL: "https://api.deepseek.com/v1",
			Model:   "deepseek-chat",
		},
		Cohere: ProviderConfig{
			BaseURL: "https://api.cohere.com",
			Model:   "command-r",
		},
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "teamflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL:     5 * time.Minute,
		MemoryCapacity: 1024,
		SweepInterval:  10 * time.Minute,
		KeyPrefix:      "teamflow:",
	}
}

// DefaultStreamConfig 返回默认流式配置
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollTimeout: 1 * time.Second,
		BufferSize:  256,
		Timeout:     5 * time.Minute,
	}
}

// DefaultSupervisorConfig 返回默认编排配置
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MaxSteps:     20,
		TeamMaxSteps: 10,
		CacheEnabled: true,
		CacheTTL:     0,
	}
}

// DefaultToolsConfig 返回默认工具配置
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		SearchBaseURL:    "https://api.tavily.com",
		SearchMaxResults: 5,
		ScrapeTimeout:    30 * time.Second,
		OutputDir:        "output",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "teamflow",
		SampleRate:   1.0,
	}
}
