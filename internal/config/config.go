package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 存储驱动
const (
	StoreMongo  = "mongo"
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Telegram 更新接收模式
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config 应用程序配置
type Config struct {
	TelegramToken string // Telegram Bot API Token
	LogLevel      string // 日志级别
	LogFormat     string // 日志格式 text/json
	Telegram      TelegramConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Ledger        LedgerConfig
}

// TelegramConfig 更新接收与消息发送配置
type TelegramConfig struct {
	Mode              string // polling 或 webhook
	WebhookURL        string // webhook 模式下向 Telegram 注册的公网地址
	WebhookSecret     string // X-Telegram-Bot-Api-Secret-Token
	Debug             bool
	WorkerCount       int // polling 模式处理协程数
	WorkerQueueSize   int // polling 模式任务队列大小
	SendRatePerSecond int // 出站消息速率上限
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr           string        // 监听地址
	HandlerTimeout time.Duration // 单个事件的处理时限（存储 + 通知）
}

// StoreConfig 存储配置
type StoreConfig struct {
	Driver      string // mongo/mysql/memory
	MongoURI    string // MongoDB连接URI
	MongoDBName string // MongoDB数据库名称
	MySQLDSN    string // MySQL DSN
}

// RedisConfig 余额缓存配置（Addr 为空时不启用）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig 账务事件发布配置（Brokers 为空时不启用）
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LedgerConfig 记账相关配置
type LedgerConfig struct {
	Timezone string // 账单时间显示时区
}

// 配置项与环境变量的对应关系
var envBindings = map[string]string{
	"telegram.token":          "TELEGRAM_TOKEN",
	"telegram.mode":           "TELEGRAM_MODE",
	"telegram.webhook_url":    "TELEGRAM_WEBHOOK_URL",
	"telegram.webhook_secret": "TELEGRAM_WEBHOOK_SECRET",
	"telegram.debug":          "TELEGRAM_DEBUG",
	"telegram.worker_count":   "WORKER_COUNT",
	"telegram.queue_size":     "WORKER_QUEUE_SIZE",
	"telegram.send_rate":      "SEND_RATE_PER_SECOND",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"http.addr":               "HTTP_ADDR",
	"http.handler_timeout":    "HANDLER_TIMEOUT",
	"store.driver":            "STORE_DRIVER",
	"store.mongo_uri":         "MONGO_URI",
	"store.mongo_db_name":     "MONGO_DB_NAME",
	"store.mysql_dsn":         "MYSQL_DSN",
	"redis.addr":              "REDIS_ADDR",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"redis.ttl":               "CACHE_TTL",
	"kafka.brokers":           "KAFKA_BROKERS",
	"kafka.topic":             "KAFKA_TOPIC",
	"ledger.timezone":         "LEDGER_TIMEZONE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.mode", ModePolling)
	v.SetDefault("telegram.worker_count", 8)
	v.SetDefault("telegram.queue_size", 256)
	v.SetDefault("telegram.send_rate", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.handler_timeout", 10*time.Second)
	v.SetDefault("store.driver", StoreMongo)
	v.SetDefault("store.mongo_db_name", "ledger_bot")
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("kafka.topic", "ledger.operations")
	v.SetDefault("ledger.timezone", "UTC")
}

// Load 从环境变量（以及可选的 yaml 配置文件）加载配置
// configFile 为空时只读取环境变量
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		TelegramToken: strings.TrimSpace(v.GetString("telegram.token")),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		Telegram: TelegramConfig{
			Mode:              strings.ToLower(strings.TrimSpace(v.GetString("telegram.mode"))),
			WebhookURL:        strings.TrimSpace(v.GetString("telegram.webhook_url")),
			WebhookSecret:     v.GetString("telegram.webhook_secret"),
			Debug:             v.GetBool("telegram.debug"),
			WorkerCount:       v.GetInt("telegram.worker_count"),
			WorkerQueueSize:   v.GetInt("telegram.queue_size"),
			SendRatePerSecond: v.GetInt("telegram.send_rate"),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			HandlerTimeout: v.GetDuration("http.handler_timeout"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
			MongoURI:    strings.TrimSpace(v.GetString("store.mongo_uri")),
			MongoDBName: v.GetString("store.mongo_db_name"),
			MySQLDSN:    strings.TrimSpace(v.GetString("store.mysql_dsn")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Kafka: KafkaConfig{
			Brokers: parseList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Ledger: LedgerConfig{
			Timezone: v.GetString("ledger.timezone"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置组合是否有效
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("invalid TELEGRAM_MODE %q (want polling or webhook)", c.Telegram.Mode)
	}

	switch c.Store.Driver {
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for store driver mongo")
		}
	case StoreMySQL:
		if c.Store.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for store driver mysql")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}

	if c.HTTP.HandlerTimeout <= 0 {
		return fmt.Errorf("HANDLER_TIMEOUT must be > 0, got %s", c.HTTP.HandlerTimeout)
	}
	if c.Telegram.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be >= 1, got %d", c.Telegram.WorkerCount)
	}
	if c.Telegram.WorkerQueueSize < 1 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be >= 1, got %d", c.Telegram.WorkerQueueSize)
	}
	if c.Telegram.SendRatePerSecond < 1 {
		return fmt.Errorf("SEND_RATE_PER_SECOND must be >= 1, got %d", c.Telegram.SendRatePerSecond)
	}
	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		return fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", c.Ledger.Timezone, err)
	}

	return nil
}

// Location 返回账单显示时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseList 解析逗号分隔的列表，支持 "a:9092,b:9092" 或配置文件中的数组
func parseList(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			result = append(result, part)
		}
	}
	return result
}
