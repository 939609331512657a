package main

import (
	"database/sql"
	"log"
	"time"

	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/application"
	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/config"
	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/email"
	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/infrastructure/repository"
	handlers "github.com/cristiansanta/Backend-Encuestas-sub000/internal/interfaces/http"
	"github.com/cristiansanta/Backend-Encuestas-sub000/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDBConnString())
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Error pinging database: %v", err)
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
		ExposeHeaders:    "Content-Length",
		MaxAge:           86400,
	}))

	// Email Client
	var mailer application.SurveyMailer
	emailClient, err := email.NewClient(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPassword,
		cfg.SMTPFromName,
		cfg.SMTPFromEmail,
	)
	if err != nil {
		log.Printf("Warning: Email client initialization failed: %v", err)
		// Continuar sin email
	} else {
		mailer = emailClient
	}

	// Integridad de enlaces de acceso
	codec := application.NewHashCodec(cfg.AppKey)
	tokenRepo := repository.NewAccessTokenRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	notificationRepo := repository.NewSurveyNotificationRepository(db)

	integrityService := application.NewLinkIntegrityService(codec, tokenRepo)
	issuer := application.NewLinkIssuer(codec, cfg.BaseURL)
	notificationService := application.NewNotificationService(issuer, surveyRepo, notificationRepo, tokenRepo, mailer)
	rateLimiter := application.NewRateLimiter(1*time.Minute, 30)
	accessHandler := handlers.NewSurveyAccessHandler(integrityService, notificationService, rateLimiter)

	// Scheduler de expiración de registros de acceso
	tokenScheduler := scheduler.NewTokenScheduler(tokenRepo)
	tokenScheduler.Start()
	defer tokenScheduler.Stop()

	api := app.Group("/api")

	// Rutas de acceso a encuestas
	encuestas := api.Group("/encuestas")
	encuestas.Get("/:surveyId/acceso", accessHandler.ValidateAccess)
	encuestas.Get("/:surveyId/accesos", accessHandler.ListAccesses)
	encuestas.Post("/:surveyId/enviar", accessHandler.SendLink)
	encuestas.Post("/:surveyId/reenviar", accessHandler.ResendLink)

	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
