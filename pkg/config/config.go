package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Stellar  StellarConfig  `mapstructure:"stellar"`
	Multisig MultisigConfig `mapstructure:"multisig"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver"` // "postgres", "sqlite" (单节点) or "memory" (测试/演示)
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"`      // sqlite 文件路径
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // 为空时使用进程内锁与缓存 (单实例开发模式)
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type StellarConfig struct {
	HorizonURL        string        `mapstructure:"horizon_url"`
	NetworkPassphrase string        `mapstructure:"network_passphrase"`
	Timeout           time.Duration `mapstructure:"timeout"` // Horizon 调用的超时上限
}

type MultisigConfig struct {
	SubmitLockTTL    time.Duration `mapstructure:"submit_lock_ttl"`
	BroadcastTimeout time.Duration `mapstructure:"broadcast_timeout"`
	StatusCacheTTL   time.Duration `mapstructure:"status_cache_ttl"`
	ExpireCron       string        `mapstructure:"expire_cron"` // 为空时不启动过期扫描
	UpdateRetries    uint          `mapstructure:"update_retries"`
	// WorkerConcurrency > 0 且配置了 Redis 时启动 asynq worker，过期扫描由 worker 执行
	WorkerConcurrency int `mapstructure:"worker_concurrency"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置 (例如 STELLAR_HORIZON_URL 覆盖 stellar.horizon_url)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")
	viper.SetDefault("app.grpc_port", "50051")

	viper.SetDefault("db.driver", "postgres")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "multisig_user")
	viper.SetDefault("db.password", "multisig_password")
	viper.SetDefault("db.name", "multisig_db")
	viper.SetDefault("db.path", "multisig.db")
	viper.SetDefault("db.log_level", "warn")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("stellar.horizon_url", "https://horizon-testnet.stellar.org")
	viper.SetDefault("stellar.network_passphrase", "Test SDF Network ; September 2015")
	viper.SetDefault("stellar.timeout", 10*time.Second)

	viper.SetDefault("multisig.submit_lock_ttl", 60*time.Second)
	viper.SetDefault("multisig.broadcast_timeout", 30*time.Second)
	viper.SetDefault("multisig.status_cache_ttl", 5*time.Second)
	viper.SetDefault("multisig.expire_cron", "@every 1m")
	viper.SetDefault("multisig.update_retries", 5)
	viper.SetDefault("multisig.worker_concurrency", 2)
}
