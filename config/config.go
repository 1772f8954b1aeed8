// Package config 加载服务配置：内置默认值 → YAML 文件 → 环境变量，后者覆盖前者。
//
// 环境变量以 RECSERVE_ 为前缀，双下划线表示层级：
//
//	RECSERVE_SERVER__ADDR=:9000            -> server.addr
//	RECSERVE_RECOMMEND__DEFAULT_K=20       -> recommend.default_k
//	RECSERVE_RECOMMEND__POPULAR_FALLBACK_IDS=a,b,c
//
// 配置文件路径由 -config 参数或 RECSERVE_CONFIG 指定，不指定时只用默认值和环境变量。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/recserve/core"
)

// 环境变量
const (
	EnvPrefix     = "RECSERVE_"
	ConfigPathEnv = "RECSERVE_CONFIG"
)

// Config 是服务的完整配置。
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Store     StoreConfig     `koanf:"store"`
	Tables    TablesConfig    `koanf:"tables"`
	Remote    RemoteConfig    `koanf:"remote"`
	Recommend RecommendConfig `koanf:"recommend"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
	// RateLimit 是推荐接口每个 IP 每分钟的请求上限，0 表示不限制
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig 选择离线表与交互历史的存储。
//   - memory：离线表在启动时从文件加载到进程内存，历史保存在进程内
//   - redis：离线表由 load 命令写入 Redis，多个进程共享；历史保存在 Redis 有序集合
type StoreConfig struct {
	Backend string      `koanf:"backend" validate:"required,oneof=memory redis"`
	Redis   RedisConfig `koanf:"redis"`

	PersonalPrefix string `koanf:"personal_prefix"`
	SimilarPrefix  string `koanf:"similar_prefix"`
	HistoryPrefix  string `koanf:"history_prefix"`
	PopularKey     string `koanf:"popular_key"`

	// HistoryKeep 是每个用户保留的历史条数
	HistoryKeep int64 `koanf:"history_keep" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// TableSource 描述一个离线表文件。
//
// 表是长格式：每行一个 (key, item, order)，按 key 分组、按 order 排序后得到每个 key 的列表。
// 例如个性化表 user_id / track_id / track_seq，相似物品表 item_id_1 / item_id_2 / score。
// 热门表没有 key 列，KeyColumn 留空。
type TableSource struct {
	Path        string `koanf:"path"`
	Format      string `koanf:"format" validate:"omitempty,oneof=parquet csv json yaml"`
	KeyColumn   string `koanf:"key_column"`
	ItemColumn  string `koanf:"item_column"`
	OrderColumn string `koanf:"order_column"`
	Descending  bool   `koanf:"descending"`
	// Limit 是每个 key 保留的条数，0 表示全部
	Limit int `koanf:"limit" validate:"gte=0"`
}

// Enabled 报告是否配置了文件。
func (t TableSource) Enabled() bool { return t.Path != "" }

type TablesConfig struct {
	Personal TableSource `koanf:"personal"`
	Popular  TableSource `koanf:"popular"`
	Similar  TableSource `koanf:"similar"`
	History  TableSource `koanf:"history"`
}

// RemoteConfig 配置远程历史/相似物品服务；URL 为空时使用本地数据。
type RemoteConfig struct {
	HistoryURL       string        `koanf:"history_url" validate:"omitempty,url"`
	SimilarURL       string        `koanf:"similar_url" validate:"omitempty,url"`
	Timeout          time.Duration `koanf:"timeout" validate:"gte=0"`
	SimilarCacheSize int           `koanf:"similar_cache_size" validate:"gte=0"`
	Breaker          BreakerConfig `koanf:"breaker"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

type RecommendConfig struct {
	DefaultK      int           `koanf:"default_k" validate:"gt=0"`
	MaxK          int           `koanf:"max_k" validate:"gt=0"`
	HistoryLength int           `koanf:"history_length" validate:"gt=0"`
	SimilarK      int           `koanf:"similar_k" validate:"gte=0"`
	SourceTimeout time.Duration `koanf:"source_timeout" validate:"gt=0"`
	LookupTimeout time.Duration `koanf:"lookup_timeout" validate:"gt=0"`
	MaxConcurrent int           `koanf:"max_concurrent" validate:"gte=0"`
	// OnlineWhen 是在线召回的开关表达式（CEL），为空时总是启用
	OnlineWhen string `koanf:"online_when"`
	// PopularFallbackIDs 是热门表缺失时使用的固定列表
	PopularFallbackIDs []string `koanf:"popular_fallback_ids"`
}

// Default 返回内置默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Backend:        "memory",
			Redis:          RedisConfig{Addr: "localhost:6379"},
			PersonalPrefix: "personal",
			SimilarPrefix:  "similar",
			HistoryPrefix:  "history",
			PopularKey:     "popular",
			HistoryKeep:    100,
		},
		Tables: TablesConfig{
			Personal: TableSource{KeyColumn: "user_id", ItemColumn: "item_id", OrderColumn: "rank"},
			Popular:  TableSource{ItemColumn: "item_id", OrderColumn: "rank"},
			Similar:  TableSource{KeyColumn: "item_id_1", ItemColumn: "item_id_2", OrderColumn: "score", Descending: true},
			History:  TableSource{KeyColumn: "user_id", ItemColumn: "item_id", OrderColumn: "ts", Descending: true},
		},
		Remote: RemoteConfig{
			Timeout:          core.DefaultLookupTimeout,
			SimilarCacheSize: 10000,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Recommend: RecommendConfig{
			DefaultK:      core.DefaultK,
			MaxK:          core.DefaultMaxK,
			HistoryLength: core.DefaultHistoryLength,
			SimilarK:      core.DefaultSimilarK,
			SourceTimeout: core.DefaultSourceTimeout,
			LookupTimeout: core.DefaultLookupTimeout,
			MaxConcurrent: 8,
		},
	}
}

// Load 按 默认值 → 文件 → 环境变量 的顺序加载配置并校验。
// path 为空时使用 RECSERVE_CONFIG；两者都为空时不读文件。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc: RECSERVE_RECOMMEND__DEFAULT_K -> recommend.default_k
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// sliceConfigPaths 是环境变量中以逗号分隔的列表字段
var sliceConfigPaths = []string{
	"recommend.popular_fallback_ids",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate 校验字段取值与字段之间的约束。
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required for the redis backend")
	}
	if c.Recommend.DefaultK > c.Recommend.MaxK {
		return fmt.Errorf("recommend.default_k (%d) exceeds recommend.max_k (%d)", c.Recommend.DefaultK, c.Recommend.MaxK)
	}
	for name, t := range map[string]TableSource{
		"personal": c.Tables.Personal,
		"popular":  c.Tables.Popular,
		"similar":  c.Tables.Similar,
		"history":  c.Tables.History,
	} {
		if t.Enabled() && t.ItemColumn == "" {
			return fmt.Errorf("tables.%s.item_column is required", name)
		}
		if t.Enabled() && name != "popular" && t.KeyColumn == "" {
			return fmt.Errorf("tables.%s.key_column is required", name)
		}
	}
	return nil
}
