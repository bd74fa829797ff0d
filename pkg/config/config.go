package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Pi     PiConfig     `mapstructure:"pi"`
	Payout PayoutConfig `mapstructure:"payout"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	// AdminKey 后台接口鉴权用的 API Key (X-API-Key)
	AdminKey string `mapstructure:"admin_key"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// PiConfig Pi 平台与链上相关配置
type PiConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"` // Pi Platform API, e.g. https://api.minepi.com/v2
	APIKey     string `mapstructure:"api_key"`      // Server API Key (通常通过环境变量 PI_API_KEY 传入)
	// WalletSecret 应用钱包密钥: 支持 "S..." 格式的 seed 或 BIP-39 助记词
	WalletSecret string `mapstructure:"wallet_secret"`
	// KeystorePath 加密 Keystore 文件路径，配置后优先于 wallet_secret
	KeystorePath     string `mapstructure:"keystore_path"`
	KeystorePassword string `mapstructure:"keystore_password"`
	// Networks 网络名 -> Horizon 节点映射，覆盖内置默认值
	Networks map[string]NetworkConfig `mapstructure:"networks"`
}

type NetworkConfig struct {
	HorizonURL string `mapstructure:"horizon_url"`
	Passphrase string `mapstructure:"passphrase"`
}

type PayoutConfig struct {
	// MaxAmount 单笔付款上限 (测试网默认 1 Pi)
	MaxAmount string `mapstructure:"max_amount"`
	// ReconcileCron 对账任务调度表达式
	ReconcileCron string `mapstructure:"reconcile_cron"`
	// ChainReadRetries / ChainReadDelaySec 创建支付后读取平台记录的重试策略
	ChainReadRetries  int `mapstructure:"chain_read_retries"`
	ChainReadDelaySec int `mapstructure:"chain_read_delay_sec"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "payout_user")
	viper.SetDefault("db.password", "payout_password")
	viper.SetDefault("db.name", "payout_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "payout_events")

	viper.SetDefault("pi.api_base_url", "https://api.minepi.com/v2")

	viper.SetDefault("payout.max_amount", "1")
	viper.SetDefault("payout.reconcile_cron", "@every 5m")
	viper.SetDefault("payout.chain_read_retries", 5)
	viper.SetDefault("payout.chain_read_delay_sec", 2)
}
