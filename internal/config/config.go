package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 进程级配置，启动时加载一次，运行期间只读
type Config struct {
	Environment string
	LogLevel    string

	Server   ServerConfig
	Database DatabaseConfig
	Shopify  ShopifyConfig
	Queue    QueueConfig
	Schedule ScheduleConfig
	Storage  StorageConfig
	Channels ChannelConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver string // postgres | sqlite
	DSN    string
	LogSQL bool
}

type ShopifyConfig struct {
	ShopDomain     string
	AccessToken    string
	APIVersion     string
	LocationID     int64 // 0 表示使用第一个仓位
	RequestPause   time.Duration
	RequestTimeout time.Duration
	ReadRPS        float64
	ReadBurst      int
	PushStock      bool
}

type QueueConfig struct {
	Backend      string // db | kafka
	Workers      int
	JobDeadline  time.Duration
	PollInterval time.Duration
	Lease        time.Duration

	// 仅 db 队列: 已完成任务的保留时长
	Retention   time.Duration
	CleanupSpec string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

type ScheduleConfig struct {
	StockEnabled       bool
	StockSpec          string
	CollectionEnabled  bool
	CollectionSpec     string
	OrderEnabled       bool
	OrderSpec          string
	FulfillmentEnabled bool
	FulfillmentSpec    string
}

type StorageConfig struct {
	Provider  string // local | s3
	BasePath  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	CDNDomain string
}

type ChannelConfig struct {
	WishCode    string
	ShopifyCode string
}

// Load 读取 .env 与环境变量
func Load() (*Config, error) {
	// .env 可选
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("DB_DRIVER"),
			DSN:    v.GetString("DB_DSN"),
			LogSQL: v.GetBool("DB_LOG_SQL"),
		},
		Shopify: ShopifyConfig{
			ShopDomain:     strings.TrimSpace(v.GetString("SHOPIFY_SHOP_DOMAIN")),
			AccessToken:    strings.TrimSpace(v.GetString("SHOPIFY_ACCESS_TOKEN")),
			APIVersion:     v.GetString("SHOPIFY_API_VERSION"),
			LocationID:     v.GetInt64("SHOPIFY_LOCATION_ID"),
			RequestPause:   v.GetDuration("SHOPIFY_REQUEST_PAUSE"),
			RequestTimeout: v.GetDuration("SHOPIFY_REQUEST_TIMEOUT"),
			ReadRPS:        v.GetFloat64("SHOPIFY_READ_RPS"),
			ReadBurst:      v.GetInt("SHOPIFY_READ_BURST"),
			PushStock:      v.GetBool("SHOPIFY_PUSH_STOCK"),
		},
		Queue: QueueConfig{
			Backend:      v.GetString("QUEUE_BACKEND"),
			Workers:      v.GetInt("QUEUE_WORKERS"),
			JobDeadline:  v.GetDuration("QUEUE_JOB_DEADLINE"),
			PollInterval: v.GetDuration("QUEUE_POLL_INTERVAL"),
			Lease:        v.GetDuration("QUEUE_LEASE"),
			Retention:    v.GetDuration("QUEUE_RETENTION"),
			CleanupSpec:  v.GetString("QUEUE_CLEANUP_SPEC"),
			KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_TOPIC"),
			KafkaGroupID: v.GetString("KAFKA_GROUP_ID"),
		},
		Schedule: ScheduleConfig{
			StockEnabled:       v.GetBool("SCHEDULE_STOCK_ENABLED"),
			StockSpec:          v.GetString("SCHEDULE_STOCK_SPEC"),
			CollectionEnabled:  v.GetBool("SCHEDULE_COLLECTION_ENABLED"),
			CollectionSpec:     v.GetString("SCHEDULE_COLLECTION_SPEC"),
			OrderEnabled:       v.GetBool("SCHEDULE_ORDER_ENABLED"),
			OrderSpec:          v.GetString("SCHEDULE_ORDER_SPEC"),
			FulfillmentEnabled: v.GetBool("SCHEDULE_FULFILLMENT_ENABLED"),
			FulfillmentSpec:    v.GetString("SCHEDULE_FULFILLMENT_SPEC"),
		},
		Storage: StorageConfig{
			Provider:  v.GetString("STORAGE_PROVIDER"),
			BasePath:  v.GetString("STORAGE_BASE_PATH"),
			Bucket:    v.GetString("AWS_BUCKET"),
			Region:    v.GetString("AWS_REGION"),
			AccessKey: v.GetString("AWS_ACCESS_KEY_ID"),
			SecretKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			CDNDomain: v.GetString("AWS_CDN_DOMAIN"),
		},
		Channels: ChannelConfig{
			WishCode:    v.GetString("CHANNEL_WISH_CODE"),
			ShopifyCode: v.GetString("CHANNEL_SHOPIFY_CODE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_DSN", "host=localhost user=postgres password=postgres dbname=shopify_sync port=5432 sslmode=disable")

	v.SetDefault("SHOPIFY_API_VERSION", "2024-01")
	v.SetDefault("SHOPIFY_REQUEST_PAUSE", "510ms")
	v.SetDefault("SHOPIFY_REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHOPIFY_READ_RPS", 2.0)
	v.SetDefault("SHOPIFY_READ_BURST", 40)
	v.SetDefault("SHOPIFY_PUSH_STOCK", false)

	v.SetDefault("QUEUE_BACKEND", "db")
	v.SetDefault("QUEUE_WORKERS", 2)
	v.SetDefault("QUEUE_JOB_DEADLINE", "15m")
	v.SetDefault("QUEUE_POLL_INTERVAL", "2s")
	v.SetDefault("QUEUE_LEASE", "20m")
	v.SetDefault("QUEUE_RETENTION", "168h")
	v.SetDefault("QUEUE_CLEANUP_SPEC", "0 15 3 * * *")
	v.SetDefault("KAFKA_TOPIC", "shopify-listing-jobs")
	v.SetDefault("KAFKA_GROUP_ID", "shopify-listing-worker")

	v.SetDefault("SCHEDULE_STOCK_ENABLED", true)
	v.SetDefault("SCHEDULE_STOCK_SPEC", "0 0 */1 * * *")
	v.SetDefault("SCHEDULE_COLLECTION_ENABLED", true)
	v.SetDefault("SCHEDULE_COLLECTION_SPEC", "0 30 */6 * * *")
	v.SetDefault("SCHEDULE_ORDER_ENABLED", true)
	v.SetDefault("SCHEDULE_ORDER_SPEC", "0 */15 * * * *")
	v.SetDefault("SCHEDULE_FULFILLMENT_ENABLED", false)
	v.SetDefault("SCHEDULE_FULFILLMENT_SPEC", "0 0 */2 * * *")

	v.SetDefault("STORAGE_PROVIDER", "local")
	v.SetDefault("STORAGE_BASE_PATH", "exports")

	v.SetDefault("CHANNEL_WISH_CODE", "wish")
	v.SetDefault("CHANNEL_SHOPIFY_CODE", "shopify")
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.Shopify.ShopDomain == "" {
		return fmt.Errorf("SHOPIFY_SHOP_DOMAIN is required")
	}
	if c.Shopify.AccessToken == "" {
		return fmt.Errorf("SHOPIFY_ACCESS_TOKEN is required")
	}
	if c.Shopify.RequestPause < 510*time.Millisecond {
		return fmt.Errorf("SHOPIFY_REQUEST_PAUSE must be at least 510ms, got %s", c.Shopify.RequestPause)
	}
	switch c.Queue.Backend {
	case "db":
	case "kafka":
		if len(c.Queue.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for kafka queue backend")
		}
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND %q", c.Queue.Backend)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive")
	}
	switch c.Storage.Provider {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
