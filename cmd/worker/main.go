package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stylize.backend/internal/config"
	"stylize.backend/internal/infrastructure/imagegen"
	"stylize.backend/internal/infrastructure/jobs"
	"stylize.backend/internal/infrastructure/queue"
	"stylize.backend/internal/infrastructure/repositories"
	"stylize.backend/internal/usecases"
	"stylize.backend/pkg/logger"
	"stylize.backend/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	logger.Init(cfg.Server.Env)
	logger.Info(context.Background(), "Worker logger initialized", zap.String("env", cfg.Server.Env))

	if err := redis.Init(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.Database.URL(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{PrepareStmt: false})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	amountWei, err := cfg.Payment.AmountWei()
	if err != nil {
		return fmt.Errorf("invalid PAYMENT_AMOUNT: %w", err)
	}

	requestRepo := repositories.NewGenerationRequestRepository(db)
	jobQueue := queue.NewRedisQueue(redis.GetClient())
	generator := imagegen.NewClient(cfg.ImageGen.BaseURL, cfg.ImageGen.APIKey, cfg.ImageGen.Model)

	// The worker only drives post-admission transitions; verification
	// stays in the server, so no chain client is dialed here.
	generationUsecase := usecases.NewGenerationUsecase(requestRepo, nil, jobQueue, usecases.PaymentSettings{
		Address:   cfg.Payment.Address,
		AmountETH: cfg.Payment.AmountETH,
		AmountWei: amountWei,
	})

	worker := jobs.NewStylizeWorker(jobQueue, generator, generationUsecase)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down worker...")
		worker.Stop()
		cancel()
	}()

	worker.Start(ctx)
	return nil
}
