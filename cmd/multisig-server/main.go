package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"multisig-core/internal/handler"
	"multisig-core/internal/model"
	"multisig-core/internal/repository"
	"multisig-core/internal/server"
	"multisig-core/internal/service"
	"multisig-core/internal/service/mq"
	"multisig-core/internal/service/multisig"
	"multisig-core/internal/service/policy"
	"multisig-core/internal/worker"
	"multisig-core/pkg/cache"
	"multisig-core/pkg/config"
	"multisig-core/pkg/database"
	"multisig-core/pkg/envelope"
	"multisig-core/pkg/logger"
	"multisig-core/pkg/utils/lock"
)

// @title Multisig Coordinator API
// @version 1.0
// @description Collects signatures for Stellar multisig transactions and submits them once the threshold is met.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func() error

	// 2. 存储
	db, repo := openRepository(cfg)
	if db != nil {
		closers = append(closers, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}

	// 3. Redis (可选): 未配置时使用进程内锁与缓存，只适合单实例部署
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
		closers = append(closers, rdb.Close)
	} else {
		logger.Warn("未配置 Redis: 广播锁与缓存仅在本进程内生效，不要多实例部署")
	}

	var locker lock.DistributedLock = lock.NewLocalLock()
	localCache, err := cache.NewMemoryCache(10_000)
	if err != nil {
		logger.Fatal("初始化本地缓存失败", zap.Error(err))
	}
	closers = append(closers, func() error { localCache.Close(); return nil })
	var statusCache cache.Cache = localCache
	if rdb != nil {
		locker = lock.NewRedisLock(rdb)
		statusCache = cache.NewMultiLevelCache(localCache, cache.NewRedisCache(rdb), cfg.Multisig.StatusCacheTTL)
	}

	// 4. 核心引擎
	codec, err := envelope.NewCodec(cfg.Stellar.NetworkPassphrase)
	if err != nil {
		logger.Fatal("初始化信封编解码失败", zap.Error(err))
	}
	ledger := policy.NewHorizonClient(cfg.Stellar.HorizonURL, cfg.Stellar.Timeout)
	engine := multisig.NewEngine(repo, ledger, codec, locker,
		multisig.WithSubmitLockTTL(cfg.Multisig.SubmitLockTTL),
		multisig.WithBroadcastTimeout(cfg.Multisig.BroadcastTimeout),
	)

	// 5. 事件中继 (只有 SQL 存储才有 outbox)
	if db != nil {
		if producer := newProducer(cfg, rdb); producer != nil {
			closers = append(closers, producer.Close)
			go service.NewRelayService(db, producer).Start(ctx)
		}
	}

	// 6. 异步任务 + 定时过期扫描
	var enqueuer service.TaskEnqueuer
	if rdb != nil && cfg.Multisig.WorkerConcurrency > 0 {
		workerServer := worker.NewServer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Multisig.WorkerConcurrency, engine)
		if err := workerServer.Start(); err != nil {
			logger.Fatal("Worker 启动失败", zap.Error(err))
		}
		closers = append(closers, func() error { workerServer.Stop(); return nil })

		client := worker.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		closers = append(closers, client.Close)
		enqueuer = client
	}
	if cfg.Multisig.ExpireCron != "" {
		cronService := service.NewCronService(cfg.Multisig.ExpireCron, locker, enqueuer, engine)
		if err := cronService.Start(); err != nil {
			logger.Fatal("定时任务启动失败", zap.String("spec", cfg.Multisig.ExpireCron), zap.Error(err))
		}
		closers = append(closers, func() error { cronService.Stop(); return nil })
	}

	// 7. HTTP + gRPC
	r := server.NewHTTPRouter(server.Handlers{
		Transaction: handler.NewTransactionHandler(engine),
		Account:     handler.NewAccountHandler(engine, statusCache, cfg.Multisig.StatusCacheTTL),
	})
	grpcServer, grpcHealth := server.NewGRPCServer()

	app, err := server.New(server.Config{
		HttpPort: cfg.App.HttpPort,
		GrpcPort: cfg.App.GrpcPort,
	}, r, grpcServer, grpcHealth)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}

	// 运行 (阻塞)
	if err := app.Run(ctx); err != nil {
		logger.Error("应用异常退出", zap.Error(err))
	}
	stop()

	// 8. 退出后资源清理 (逆序关闭: 先停任务，再关连接)
	var closeErr error
	for i := len(closers) - 1; i >= 0; i-- {
		closeErr = multierr.Append(closeErr, closers[i]())
	}
	if closeErr != nil {
		logger.Error("资源关闭失败", zap.Error(closeErr))
	}
	logger.Info("系统已退出")
}

func openRepository(cfg config.Config) (*gorm.DB, repository.PendingTransactionRepository) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DB.Driver {
	case "memory":
		logger.Warn("使用内存存储: 进程退出后数据丢失")
		return nil, repository.NewMemoryRepository()
	case "sqlite":
		db, err = database.ConnectSQLite(cfg.DB.Path, cfg.DB.LogLevel)
	default:
		db, err = database.ConnectPostgres(database.PostgresDSN(cfg.DB), cfg.DB.LogLevel)
	}
	if err != nil {
		logger.Fatal("数据库连接失败", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}

	// 生产环境 Postgres 使用 cmd/migrate 管理 Schema
	if cfg.DB.Driver == "sqlite" || cfg.App.Env == "development" {
		logger.Info("自动迁移 Schema (GORM AutoMigrate)...", zap.String("driver", cfg.DB.Driver))
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	}
	return db, repository.NewGormRepository(db, cfg.Multisig.UpdateRetries)
}

func newProducer(cfg config.Config, rdb *redis.Client) mq.Producer {
	switch cfg.Redis.MQType {
	case "kafka":
		logger.Info("使用 Kafka 作为消息队列", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers)
	default:
		if rdb == nil {
			logger.Warn("未配置 Redis 与 Kafka: 生命周期事件只保存在 outbox 表中")
			return nil
		}
		logger.Info("使用 Redis Streams 作为消息队列")
		return mq.NewRedisProducer(rdb, 100_000)
	}
}
