package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"payout-core/internal/chain"
	"payout-core/internal/handler"
	"payout-core/internal/model"
	"payout-core/internal/platform"
	"payout-core/internal/server"
	"payout-core/internal/service"
	"payout-core/internal/service/mq"

	"payout-core/pkg/config"
	"payout-core/pkg/database"
	"payout-core/pkg/keystore"
	"payout-core/pkg/logger"
	"payout-core/pkg/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 构造 DSN
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)

	// ---------------------------------------------------------
	// 🔐 应用钱包密钥加载
	// 优先从加密 Keystore 文件加载，没有再退回配置里的明文密钥
	// ---------------------------------------------------------
	var secret string
	keystorePath := config.Global.Pi.KeystorePath

	if keystorePath != "" {
		if _, err := os.Stat(keystorePath); err == nil {
			logger.Info("发现本地 Keystore 文件，尝试加载...", zap.String("path", keystorePath))

			password := config.Global.Pi.KeystorePassword
			if password == "" {
				logger.Fatal("加载 Keystore 失败: 未提供密码 (环境变量 PI_KEYSTORE_PASSWORD)")
			}

			loaded, err := keystore.LoadSecret(keystorePath, password)
			if err != nil {
				logger.Fatal("解密 Keystore 失败: 密码错误或文件损坏", zap.Error(err))
			}
			secret = loaded
			logger.Info("✅ 成功从 Keystore 加载钱包密钥")
		}
	}

	if secret == "" {
		// Fallback: 明文密钥 (仅限开发环境)
		if config.Global.Pi.WalletSecret != "" {
			logger.Warn("⚠️  未找到 Keystore 文件，使用配置文件中的明文钱包密钥 (仅限开发环境使用，生产环境极不安全!)")
			secret = config.Global.Pi.WalletSecret
		} else {
			logger.Fatal("启动失败: 未找到 Keystore 文件，且未配置 PI_WALLET_SECRET。请先运行 'payout-cli wallet init' 初始化钱包。")
		}
	}

	kp, err := wallet.FromSecret(secret)
	if err != nil {
		logger.Fatal("解析钱包密钥失败", zap.Error(err))
	}
	logger.Info("应用钱包加载成功 (内存中)", zap.String("address", kp.Address()))

	// 3. 连接数据库
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 开发环境自动建表，生产环境走 cmd/migrate
	if config.Global.App.Env != "production" {
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("AutoMigrate 失败", zap.Error(err))
		}
	}

	// 4. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 5. 平台客户端
	if config.Global.Pi.APIKey == "" {
		logger.Fatal("启动失败: 未配置 PI_API_KEY")
	}
	gateway := platform.NewClient(config.Global.Pi.APIBaseURL, config.Global.Pi.APIKey)

	// 6. 链上交易构造器
	overrides := make(map[string]chain.Network, len(config.Global.Pi.Networks))
	for name, n := range config.Global.Pi.Networks {
		overrides[name] = chain.Network{HorizonURL: n.HorizonURL, Passphrase: n.Passphrase}
	}
	builder := chain.NewBuilder(
		kp,
		gateway,
		overrides,
		config.Global.Payout.ChainReadRetries,
		time.Duration(config.Global.Payout.ChainReadDelaySec)*time.Second,
	)

	// 7. 本地状态表 + 付款编排器
	maxAmount, err := decimal.NewFromString(config.Global.Payout.MaxAmount)
	if err != nil {
		logger.Fatal("payout.max_amount 配置非法", zap.Error(err))
	}
	ledger := service.NewSQLStatusLedger(db, config.Global.Kafka.Topic)
	payoutService := service.NewPayoutService(gateway, builder, ledger, maxAmount)

	// 8. 初始化消息队列
	mqType := config.Global.Redis.MQType
	var producer mq.Producer

	if mqType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers, config.Global.Kafka.Topic)
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
	}

	// 9. 启动消息中继服务 (outbox -> MQ)
	relayService := service.NewRelayService(db, producer)
	go relayService.Start(context.Background())

	// 10. 启动定时对账任务
	reconcileService := service.NewReconcileService(rdb, payoutService, config.Global.Payout.ReconcileCron)
	if err := reconcileService.Start(); err != nil {
		logger.Fatal("对账任务启动失败", zap.Error(err))
	}
	defer reconcileService.Stop()

	// 11. HTTP Router
	payoutHandler := handler.NewPayoutHandler(payoutService, ledger)
	r := server.NewHTTPRouter(payoutHandler, config.Global.App.AdminKey, gateway)

	// 12. 启动应用 (阻塞)
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)
	app.Run()

	// 13. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	producer.Close()
	rdb.Close()
	logger.Info("系统已退出")
}
