package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"dataroomdrive/internal/auth"
	"dataroomdrive/internal/config"
	"dataroomdrive/internal/handler"
	"dataroomdrive/internal/notify"
	"dataroomdrive/internal/repository"
	"dataroomdrive/internal/service"
	"dataroomdrive/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Redis нужен очистке для межэкземплярной блокировки; без него
	// сервис работает, но параллельные проходы не дедуплицируются
	var rdb *redis.Client
	if appConfig.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     appConfig.Redis.Addr,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: redis unavailable: %v", err)
		}
	}

	// Инициализация S3 клиента: хранилище опционально, без него очистка
	// не трогает объекты
	var storage s3.Storage
	if s3Config, err := s3.NewConfig(".s3.env"); err != nil {
		log.Printf("Warning: storage disabled: %v", err)
	} else {
		s3Client, err := s3.NewClient(s3Config)
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		storage = s3Client
	}

	// Секрет проверки токенов сессии
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	auth.Init(authConfig)

	notifier := notify.NewNotifier(appConfig.Trash.WebhookURL)

	// Инициализация репозиториев
	folderRepo := repository.NewFolderRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	dataroomRepo := repository.NewDataroomRepository(db)

	// Инициализация сервисов
	permissionService := service.NewPermissionService(teamRepo, dataroomRepo)
	folderService := service.NewFolderService(folderRepo, docRepo)
	trashService := service.NewTrashService(db, folderRepo, docRepo, trashRepo, teamRepo, appConfig.Trash.RetentionDays)
	restoreService := service.NewRestoreService(db, folderRepo, docRepo, trashRepo)
	purgeService := service.NewPurgeService(db, folderRepo, docRepo, trashRepo, dataroomRepo, teamRepo, storage, rdb, notifier)

	// Инициализация хендлеров
	folderHandler := handler.NewFolderHandler(folderService, trashService, permissionService)
	trashHandler := handler.NewTrashHandler(trashService, restoreService, purgeService, permissionService)
	cronHandler := handler.NewCronHandler(purgeService, appConfig.Trash.CronSecret)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Cron-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1/teams/{teamId}/datarooms/{dataroomId}", func(r chi.Router) {
		r.Get("/folders", folderHandler.GetContent)
		r.Post("/folders", folderHandler.CreateFolder)
		r.Delete("/folders/{id}", folderHandler.DeleteFolder)
		r.Post("/documents", folderHandler.CreateDocument)
		r.Delete("/documents/{id}", folderHandler.DeleteDocument)

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.GetTrash)
			r.Post("/restore-bulk", trashHandler.RestoreBulk)
			r.Get("/settings", trashHandler.GetSettings)
			r.Put("/settings", trashHandler.UpdateSettings)
			r.Put("/manage/{trashId}/restore", trashHandler.RestoreItem)
			r.Delete("/manage/{trashId}", trashHandler.DeletePermanently)
		})
	})

	r.Post("/api/cron/auto-purge-trash", cronHandler.AutoPurgeTrash)

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("Error closing redis connection: %v", err)
		}
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
