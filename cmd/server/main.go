package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stylize.backend/internal/config"
	"stylize.backend/internal/infrastructure/blockchain"
	"stylize.backend/internal/infrastructure/queue"
	"stylize.backend/internal/infrastructure/repositories"
	"stylize.backend/internal/interfaces/http/handlers"
	"stylize.backend/internal/interfaces/http/middleware"
	"stylize.backend/internal/usecases"
	"stylize.backend/pkg/jwt"
	"stylize.backend/pkg/logger"
	"stylize.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	dialChain = blockchain.NewEVMClient
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("database not reachable: %v (endpoints will return errors)", err)
	}

	amountWei, err := cfg.Payment.AmountWei()
	if err != nil {
		return fmt.Errorf("invalid PAYMENT_AMOUNT: %w", err)
	}

	chainClient, err := dialChain(cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial chain rpc: %w", err)
	}
	defer chainClient.Close()

	verifier := blockchain.NewVerifier(
		chainClient,
		cfg.Chain.MinConfirmations,
		cfg.Chain.ReceiptPollEvery,
		cfg.Chain.ReceiptWaitTimeout,
	)

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	nonceStore := redis.NewNonceStore(cfg.JWT.NonceTTL)
	jobQueue := queue.NewRedisQueue(redis.GetClient())

	requestRepo := repositories.NewGenerationRequestRepository(db)
	userRepo := repositories.NewUserRepository(db)

	generationUsecase := usecases.NewGenerationUsecase(requestRepo, verifier, jobQueue, usecases.PaymentSettings{
		Address:   cfg.Payment.Address,
		AmountETH: cfg.Payment.AmountETH,
		AmountWei: amountWei,
	})
	authUsecase := usecases.NewAuthUsecase(userRepo, nonceStore, jwtService, cfg.Server.AdminAddresses)

	authHandler := handlers.NewAuthHandler(authUsecase)
	generationHandler := handlers.NewGenerationHandler(generationUsecase)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		authHandler:       authHandler,
		generationHandler: generationHandler,
		authMiddleware:    middleware.AuthMiddleware(jwtService),
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down server...")
	}()

	log.Printf("stylize backend starting on port %s", cfg.Server.Port)
	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
