// Точка входа imghost — минимального сервиса хостинга изображений.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/bigkaa/goimghost/internal/api/handlers"
	"github.com/bigkaa/goimghost/internal/api/middleware"
	"github.com/bigkaa/goimghost/internal/config"
	"github.com/bigkaa/goimghost/internal/server"
	"github.com/bigkaa/goimghost/internal/service"
	"github.com/bigkaa/goimghost/internal/storage/blobstore"
	"github.com/bigkaa/goimghost/internal/storage/index"
)

func main() {
	// .env — удобство локальной разработки; отсутствие файла не ошибка
	_ = godotenv.Load()

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("imghost запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
		slog.String("data_dir", cfg.DataDir),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилище blob'ов
	store, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации BlobStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. In-memory индекс метаданных
	idx := index.New(logger)
	if err := idx.BuildFromDir(cfg.DataDir); err != nil {
		logger.Error("Ошибка построения индекса", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ImagesTotal.Set(float64(idx.Count()))

	// 3. Сервисы
	uploadSvc := service.NewUploadService(store, idx, logger)
	retrieveSvc := service.NewRetrieveService(store, idx, logger)
	deleteSvc := service.NewDeleteService(store, idx, logger)

	// 4. Фоновые процессы
	ctx := context.Background()

	// 4.1 Reconcile — сверка индекса с диском (fsnotify + тикер)
	reconcileSvc := service.NewReconcileService(idx, cfg.DataDir, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	// 4.2 Sweep — очистка брошенных pending-записей и осиротевших blob'ов
	sweepSvc := service.NewSweepService(store, idx, cfg.SweepInterval, cfg.PendingMaxAge, logger)
	sweepSvc.Start(ctx)

	// 5. Handlers
	imagesHandler := handlers.NewImagesHandler(cfg, uploadSvc, retrieveSvc, deleteSvc)
	pagesHandler := handlers.NewPagesHandler(cfg, retrieveSvc, idx, logger)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, idx)

	// 6. Basic auth middleware для мутирующих endpoints
	auth := middleware.NewBasicAuth(cfg.AdminUser, cfg.AdminPassword, logger)

	// 7. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, imagesHandler, pagesHandler, healthHandler, auth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	reconcileSvc.Stop()
	sweepSvc.Stop()

	logger.Info("imghost остановлен")
}
