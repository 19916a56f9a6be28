package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"github.com/user/silant-monitoring-api/internal/config"
	"github.com/user/silant-monitoring-api/internal/handlers"
	"github.com/user/silant-monitoring-api/internal/middleware"
	"github.com/user/silant-monitoring-api/internal/models"
	"github.com/user/silant-monitoring-api/internal/repository"
	"github.com/user/silant-monitoring-api/internal/services/auth"
	"github.com/user/silant-monitoring-api/internal/services/importer"
	"github.com/user/silant-monitoring-api/internal/services/report"
	"golang.org/x/time/rate"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Подключение к БД (миграции выполняются при подключении)
	db, err := repository.NewPostgresDB(cfg.Database)
	if err != nil {
		log.Fatalf("Ошибка подключения к БД: %v", err)
	}

	// Инициализация репозитория
	repo := repository.NewRepository(db)

	// Секрет для JWT
	if cfg.Auth.JWTSecret != "" {
		auth.SetSecret(cfg.Auth.JWTSecret)
	}

	// Инициализация сервисов
	importService := importer.NewService(repo)
	reportGenerator := report.NewGenerator(cfg.Reports.FontsDir)

	// Инициализация cron-задач
	c := cron.New(cron.WithLocation(time.UTC))

	// Сводка по парку — ежедневно в 06:00 UTC
	_, err = c.AddFunc("0 6 * * *", func() {
		log.Println("[Cron] Ежедневная сводка по парку...")
		manager := &models.User{Role: models.RoleManager}
		status, err := repo.GetFleetStatus(manager)
		if err != nil {
			log.Printf("[Cron] Ошибка получения сводки: %v", err)
			return
		}
		log.Printf("[Cron] Машин: %d, в сервисе: %d, требуют ТО: %d, открытых рекламаций: %d",
			status.Machines, status.InService, status.RequireMaintenance, status.OpenReclamations)
	})
	if err != nil {
		log.Fatalf("Ошибка добавления cron-задачи сводки: %v", err)
	}

	c.Start()
	defer c.Stop()

	// Инициализация HTTP-сервера
	router := gin.Default()

	// CORS middleware
	router.Use(middleware.CORS())

	// Кэш GET-ответов для справочников и дашборда
	store := gocache.New(5*time.Minute, 10*time.Minute)

	// Auth handlers
	authHandler := auth.NewAuthHandler(repo)

	// API handlers
	h := handlers.NewHandler(repo, importService, reportGenerator)

	// Маршруты API
	api := router.Group("/api")
	{
		// Авторизация (логин ограничен по частоте запросов с одного IP)
		api.POST("/auth/login", middleware.RateLimit(rate.Every(time.Second), 5), authHandler.Login)
		api.GET("/auth/me", middleware.Auth(), authHandler.GetCurrentUser)

		// Публичный поиск машины по заводскому номеру (без авторизации)
		api.GET("/public/machines/:serial", h.GetPublicMachine)

		// Машины
		machines := api.Group("/machines")
		machines.Use(middleware.Auth())
		{
			machines.GET("", h.GetMachines)
			machines.GET("/excel", h.ExportMachinesExcel)
			machines.GET("/:id", h.GetMachine)
			machines.GET("/:id/pdf", h.GetMachinePassportPDF)
			machines.GET("/:id/components", h.GetComponents)
			machines.GET("/:id/maintenance", h.GetMaintenanceHistory)

			// Карточку машины редактирует только менеджер
			machines.POST("", middleware.RequireManager(), h.CreateMachine)
			machines.PUT("/:id", middleware.RequireManager(), h.UpdateMachine)
			machines.DELETE("/:id", middleware.RequireManager(), h.DeleteMachine)
		}

		// ТО
		services := api.Group("/technical-services")
		services.Use(middleware.Auth())
		{
			services.GET("", h.GetTechnicalServices)
			services.POST("", h.CreateTechnicalService)
			services.PUT("/:id", h.UpdateTechnicalService)
			services.DELETE("/:id", h.DeleteTechnicalService)
		}

		// Рекламации
		reclamations := api.Group("/reclamations")
		reclamations.Use(middleware.Auth())
		{
			reclamations.GET("", h.GetReclamations)
			reclamations.POST("", h.CreateReclamation)
			reclamations.PUT("/:id", h.UpdateReclamation)
			reclamations.DELETE("/:id", h.DeleteReclamation)
		}

		// Компоненты
		components := api.Group("/components")
		components.Use(middleware.Auth())
		{
			components.POST("", h.CreateComponent)
			components.PUT("/:id", h.UpdateComponent)
			components.DELETE("/:id", h.DeleteComponent)
		}

		// История обслуживания
		maintenances := api.Group("/maintenances")
		maintenances.Use(middleware.Auth())
		{
			maintenances.POST("", h.CreateMaintenance)
			maintenances.PUT("/:id", h.UpdateMaintenance)
			maintenances.DELETE("/:id", h.DeleteMaintenance)
		}

		// Справочники: чтение кэшируется, изменение только для менеджера
		references := api.Group("/references")
		references.Use(middleware.Auth())
		{
			references.GET("/:kind", middleware.Cache(store, 5*time.Minute), h.GetReferences)
			references.POST("/:kind", middleware.RequireManager(), h.CreateReference)
			references.PUT("/:kind/:id", middleware.RequireManager(), h.UpdateReference)
			references.DELETE("/:kind/:id", middleware.RequireManager(), h.DeleteReference)
		}

		// Dashboard (сводка по доступным машинам)
		api.GET("/dashboard", middleware.Auth(), middleware.Cache(store, time.Minute), h.GetDashboard)

		// Импорт данных из Excel (только для менеджера)
		api.POST("/import", middleware.Auth(), middleware.RequireManager(), h.ImportData)

		// Пользователи (только для менеджера)
		users := api.Group("/users")
		users.Use(middleware.Auth(), middleware.RequireManager())
		{
			users.GET("", h.GetUsers)
			users.POST("", h.CreateUser)
			users.PUT("/:id", h.UpdateUser)
		}
	}

	// Запуск сервера
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	log.Printf("Сервер запущен на порту %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
		os.Exit(1)
	}
}
