package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"familytree_go/internal/graph"
	"familytree_go/internal/handler"
	"familytree_go/internal/repository"
	"familytree_go/internal/service"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger := service.NewLogger(&service.LoggerConfig{
		Level: service.LogLevel(os.Getenv("LOG_LEVEL")),
	})

	// 初始化数据库连接
	driver := os.Getenv("DB_DRIVER")
	var dsn string
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		dsn = os.Getenv("DB_PATH")
		if dsn == "" {
			dsn = "familytree.db"
		}
	case "postgres":
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
		)
	}

	db, err := repository.InitDB(driver, dsn)
	if err != nil {
		logger.Fatal("failed to initialize database: %v", err)
	}

	cache := service.NewCache()
	members := repository.NewMemberRepository(db)
	relatives := repository.NewRelativeRepository(db)
	profiles := repository.NewProfileRepository(db, cache)
	ringtonePrefs := repository.NewRingtoneRepository(db)

	// 初始化redis（实时信号与跨进程指令都走redis频道）
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisCache := service.NewRedisCache(redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
	defer redisCache.Close()

	// 初始化对象存储：配置了R2走R2，否则落本地磁盘
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var storage service.ObjectStorage
	if endpoint := os.Getenv("R2_ENDPOINT"); endpoint != "" {
		storage, err = service.NewR2Storage(ctx, &service.R2Config{
			Endpoint:        endpoint,
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("R2_BUCKET"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 storage: %v", err)
		}
	} else {
		storage, err = service.NewLocalStorage("uploads", "/uploads")
		if err != nil {
			logger.Fatal("failed to initialize local storage: %v", err)
		}
	}
	uploadService := service.NewUploadService(storage, logger)

	// 配偶联动锁本地持久化
	lockPath := os.Getenv("SPOUSE_LOCK_PATH")
	if lockPath == "" {
		lockPath = "spouse_locks.json"
	}
	locks := graph.NewSpouseLock(lockPath, logger)

	// 铃声偏好与试听，播放指令经redis下发给实时层
	player := service.NewRedisRingtonePlayer(redisCache.Client(), "ringtone:commands", logger)
	ringtones := service.NewRingtoneService(ringtonePrefs, cache, player, uploadService, logger)

	// 来电流程：redis频道 -> 事件总线 -> 响铃/通知
	bus := service.NewEventBus(logger)
	bridge := service.NewRedisBridge(redisCache.Client(), bus, "realtime:calls", logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("realtime bridge stopped: %v", err)
		}
	}()

	notifier := service.NewRedisNotifier(redisCache.Client(), "notify:local", logger)
	join := func(ctx context.Context, tag string, callerID uint) error {
		// 通话房间由外部实时服务承载，这里只下发接入指令
		data, _ := json.Marshal(map[string]interface{}{"tag": tag, "caller_id": callerID})
		return redisCache.Client().Publish(ctx, "call:join", data).Err()
	}
	calls := service.NewCallFlow(profiles, notifier, ringtones, join, logger)
	calls.BindEvents(bus)

	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Static("/uploads", "uploads")

	h := handler.New(&handler.Config{
		DB:        db,
		Members:   members,
		Relatives: relatives,
		Locks:     locks,
		Upload:    uploadService,
		Ringtones: ringtones,
		Calls:     calls,
		Logger:    logger,
		JWTSecret: os.Getenv("JWT_SECRET"),
	})
	h.Register(r)

	// 启动服务器
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("server is running on port %s", port)
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("failed to start server: %v", err)
	}
}
