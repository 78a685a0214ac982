package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,例如 CATALOGHARVEST_HARVEST_CONCURRENCY
const EnvPrefix = "CATALOGHARVEST"

// Sink类型
const (
	SinkJSON     = "json"
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
	SinkMongo    = "mongo"
)

// Config 应用程序配置
type Config struct {
	Harvest models.HarvestConfig `mapstructure:"harvest"`
	Input   InputConfig          `mapstructure:"input"`
	Output  OutputConfig         `mapstructure:"output"`
	Sink    SinkConfig           `mapstructure:"sink"`
	Metrics MetricsConfig        `mapstructure:"metrics"`
	Session SessionConfig        `mapstructure:"session"`
	Logging LoggingConfig        `mapstructure:"logging"`
}

// InputConfig 类目与认证信息来源
type InputConfig struct {
	CategoryTree string   `mapstructure:"category_tree"` // session命令保存的category_tree.json
	CategoryHTML string   `mapstructure:"category_html"` // 保存的类目页面
	KeysFile     string   `mapstructure:"keys_file"`     // 每行一个类目
	Keys         []string `mapstructure:"keys"`          // 直接指定的类目
	HeadersFile  string   `mapstructure:"headers_file"`
	CookiesFile  string   `mapstructure:"cookies_file"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir  string `mapstructure:"dir"`
	File string `mapstructure:"file"`
}

// SinkConfig 持久化配置
type SinkConfig struct {
	Kinds    []string       `mapstructure:"kinds"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

// PostgresConfig PostgreSQL配置
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// MongoConfig MongoDB配置
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SessionConfig 浏览器会话捕获配置
type SessionConfig struct {
	HomeURL      string        `mapstructure:"home_url"`
	Headless     bool          `mapstructure:"headless"`
	Wait         time.Duration `mapstructure:"wait"`
	DomainFilter string        `mapstructure:"domain_filter"`
	MinFreeMB    uint64        `mapstructure:"min_free_mb"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
// 优先级: 默认值 < 配置文件 < 环境变量 (.env 会先被载入环境)
func LoadConfig(configPath string) (*Config, error) {
	// .env不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".catalogharvest"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.applyEnvFallbacks()
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 采集
	v.SetDefault("harvest.base_url", "https://www.bigbasket.com")
	v.SetDefault("harvest.listing_type", "pc")
	v.SetDefault("harvest.concurrency", 5)
	v.SetDefault("harvest.pace_min", "3s")
	v.SetDefault("harvest.pace_max", "6s")
	v.SetDefault("harvest.request_timeout", "30s")
	v.SetDefault("harvest.user_agent", DefaultUserAgent)

	// 输入
	v.SetDefault("input.category_tree", "")
	v.SetDefault("input.category_html", "")
	v.SetDefault("input.keys_file", "")
	v.SetDefault("input.keys", []string{})
	v.SetDefault("input.headers_file", "")
	v.SetDefault("input.cookies_file", "")

	// 输出
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.file", "all_processed_products.json")

	// 持久化
	v.SetDefault("sink.kinds", []string{SinkJSON})
	v.SetDefault("sink.postgres.dsn", "")
	v.SetDefault("sink.postgres.table", "harvested_products")
	v.SetDefault("sink.redis.addr", "")
	v.SetDefault("sink.redis.password", "")
	v.SetDefault("sink.redis.db", 0)
	v.SetDefault("sink.redis.prefix", "catalogharvest")
	v.SetDefault("sink.mongo.uri", "")
	v.SetDefault("sink.mongo.database", "catalogharvest")
	v.SetDefault("sink.mongo.collection", "products")

	// 指标
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	// 会话捕获
	v.SetDefault("session.home_url", "https://www.bigbasket.com/")
	v.SetDefault("session.headless", false)
	v.SetDefault("session.wait", "15s")
	v.SetDefault("session.domain_filter", "bigbasket.com")
	v.SetDefault("session.min_free_mb", 512)

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// applyEnvFallbacks 未配置连接串时使用通用环境变量
func (c *Config) applyEnvFallbacks() {
	if c.Sink.Postgres.DSN == "" {
		c.Sink.Postgres.DSN = os.Getenv("DATABASE_URL")
	}
	if c.Sink.Redis.Addr == "" {
		c.Sink.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if c.Sink.Mongo.URI == "" {
		c.Sink.Mongo.URI = os.Getenv("MONGO_URI")
	}
}

// GetHarvestConfig 从配置中提取采集配置
func (c *Config) GetHarvestConfig() models.HarvestConfig {
	return c.Harvest
}

// GetLogConfig 转换为日志配置
func (c *Config) GetLogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// OutputPath 合并后的结果文件路径
func (c *Config) OutputPath() string {
	return filepath.Join(c.Output.Dir, c.Output.File)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Harvest.Validate(); err != nil {
		return err
	}
	if len(c.Sink.Kinds) == 0 {
		return fmt.Errorf("至少需要一个持久化目标")
	}
	for _, kind := range c.Sink.Kinds {
		switch kind {
		case SinkJSON:
		case SinkPostgres:
			if c.Sink.Postgres.DSN == "" {
				return fmt.Errorf("postgres持久化需要sink.postgres.dsn")
			}
		case SinkRedis:
			if c.Sink.Redis.Addr == "" {
				return fmt.Errorf("redis持久化需要sink.redis.addr")
			}
		case SinkMongo:
			if c.Sink.Mongo.URI == "" {
				return fmt.Errorf("mongo持久化需要sink.mongo.uri")
			}
		default:
			return fmt.Errorf("未知的持久化目标: %s (可选: json|postgres|redis|mongo)", kind)
		}
	}
	return nil
}

// CLIOverrides 命令行参数,零值表示未指定
type CLIOverrides struct {
	Keys         []string
	KeysFile     string
	CategoryTree string
	CategoryHTML string
	HeadersFile  string
	CookiesFile  string
	OutputDir    string
	Concurrency  int
	PaceMin      time.Duration
	PaceMax      time.Duration
	Sinks        []string
	MetricsAddr  string
	LogLevel     string
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if len(o.Keys) > 0 {
		c.Input.Keys = o.Keys
	}
	if o.KeysFile != "" {
		c.Input.KeysFile = o.KeysFile
	}
	if o.CategoryTree != "" {
		c.Input.CategoryTree = o.CategoryTree
	}
	if o.CategoryHTML != "" {
		c.Input.CategoryHTML = o.CategoryHTML
	}
	if o.HeadersFile != "" {
		c.Input.HeadersFile = o.HeadersFile
	}
	if o.CookiesFile != "" {
		c.Input.CookiesFile = o.CookiesFile
	}
	if o.OutputDir != "" {
		c.Output.Dir = o.OutputDir
	}
	if o.Concurrency > 0 {
		c.Harvest.Concurrency = o.Concurrency
	}
	if o.PaceMin > 0 {
		c.Harvest.PaceMin = o.PaceMin
	}
	if o.PaceMax > 0 {
		c.Harvest.PaceMax = o.PaceMax
	}
	if len(o.Sinks) > 0 {
		c.Sink.Kinds = o.Sinks
	}
	if o.MetricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = o.MetricsAddr
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}
