package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/campusface/enrollbackend/config"
	"github.com/campusface/enrollbackend/database"
	"github.com/campusface/enrollbackend/handlers"
	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/repository"
	"github.com/campusface/enrollbackend/services"
	"github.com/campusface/enrollbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.GalleriesPath, cfg.UploadsPath, cfg.BackupsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}
	if err := database.SeedDefaults(db); err != nil {
		log.Fatalf("FATAL: Failed to seed default departments and batches: %v", err)
	}

	galleryRepo := repository.NewGalleryRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	reportRepo := repository.NewQualityReportRepository(db)
	userRepo := repository.NewUserRepository(db)

	store, err := media.NewLocalGalleryStore(cfg.GalleriesPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize gallery store: %v", err)
	}

	gate := media.NewGate(media.Thresholds{
		MinSharpness:    cfg.MinSharpness,
		MaxYawDegrees:   cfg.MaxYawDegrees,
		MaxPitchDegrees: cfg.MaxPitchDegrees,
		MaxRollDegrees:  cfg.MaxRollDegrees,
		MinLumaMean:     cfg.MinLumaMean,
		MaxLumaMean:     cfg.MaxLumaMean,
		MinLumaStdDev:   cfg.MinLumaStdDev,
		MinFacePixels:   cfg.MinFacePixels,
		MinLandmarkConf: cfg.MinLandmarkConf,
	})

	locks := workers.NewPathLocker()

	recognition := services.NewRecognitionService(galleryRepo, store, cfg.SimilarityThreshold)

	log.Printf("Initializing enrollment worker pool (Workers: %d, Queue Size: %d)...", cfg.NumEnrollWorkers, cfg.EnrollQueueSize)
	enrollProcessor := workers.NewEnrollProcessor(cfg, gate, store, galleryRepo, reportRepo, locks, recognition, cfg.EnrollQueueSize, cfg.NumEnrollWorkers)
	defer enrollProcessor.Stop()

	reconciler := workers.NewReconciler(galleryRepo, store, locks)
	backup := workers.NewBackupJob(cfg.DatabasePath, cfg.BackupsPath, cfg.BackupKeep)

	scheduler := workers.NewScheduler()
	if err := scheduler.AddJob("gallery-reconcile", cfg.ReconcileInterval, func() error {
		_, err := reconciler.ReconcileAll()
		return err
	}); err != nil {
		log.Fatalf("FATAL: Failed to register reconcile job: %v", err)
	}
	if err := scheduler.AddJob("database-backup", cfg.BackupInterval, backup.Run); err != nil {
		log.Fatalf("FATAL: Failed to register backup job: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("FATAL: Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// the HTTP recognition path shares one detector and embedder instance
	probeDetector := media.NewFaceDetector(cfg.FaceDetectorModelPath, cfg.DetectorConfThreshold)
	defer probeDetector.Close()
	probeEmbedder := media.NewEmbeddingModel(cfg.EmbeddingModelPath, cfg.EmbeddingModelName)
	defer probeEmbedder.Close()

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing galleries in: %s", cfg.GalleriesPath)
	log.Printf("Reconciliation every %v, backups every %v", cfg.ReconcileInterval, cfg.BackupInterval)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{getEnvOrDefault("CORS_ORIGIN", "http://localhost:5173")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(corsHandler.Handler)

	jwtSecret := []byte(cfg.JWTSecret)
	authHandler := handlers.NewAuthHandler(userRepo, jwtSecret)
	studentHandler := handlers.NewStudentHandler(studentRepo)
	enrollmentHandler := handlers.NewEnrollmentHandler(cfg, enrollProcessor, studentRepo, galleryRepo, store, locks, recognition)
	galleryHandler := handlers.NewGalleryHandler(galleryRepo, store, reconciler, recognition)
	reportHandler := handlers.NewReportHandler(reportRepo)
	recognitionHandler := handlers.NewRecognitionHandler(probeDetector, probeEmbedder, recognition)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/setup", authHandler.Setup)

		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(userRepo, jwtSecret))

			r.Route("/students", func(r chi.Router) {
				r.Post("/", studentHandler.Create)
				r.Get("/", studentHandler.List)
				r.Get("/{regNo}", studentHandler.Get)
			})

			r.Route("/enrollments", func(r chi.Router) {
				r.Post("/video", enrollmentHandler.UploadVideo)
				r.Post("/photos", enrollmentHandler.UploadPhotos)
			})

			r.Route("/galleries", func(r chi.Router) {
				r.Get("/", galleryHandler.List)
				r.Post("/reconcile", galleryHandler.Reconcile)
				r.Get("/{regNo}", galleryHandler.Get)
				r.Delete("/{id}", galleryHandler.Delete)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", reportHandler.Search)
				r.Get("/{id}", reportHandler.Get)
			})

			r.Post("/recognize", recognitionHandler.Recognize)
		})
	})

	port := getEnvOrDefault("PORT", "8080")
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
